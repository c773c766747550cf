// internal/model/click.go
package model

import "time"

type Click struct {
	ID        int64     `db:"id" json:"id"`
	MailerID  string    `db:"mailer_id" json:"mailerId"`
	ClickedAt time.Time `db:"clicked_at" json:"clickedAt"`
}

// DatedCount is a click count for a day or a month bucket.
type DatedCount struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}
