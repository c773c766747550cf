// internal/model/campaign.go
package model

import "time"

// Campaign is a tracked sending effort. Its ID is the opaque "mailer id"
// embedded in tracking beacons and used to key logs and clicks.
type Campaign struct {
	ID        string    `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
