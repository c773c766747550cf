// internal/model/delivery_outcome.go
package model

import "time"

const (
	LogMessageSent    = "Email sent successfully"
	LogMessageNotSent = "Email not sent"
)

// DeliveryOutcome is the record of one attempted (or rejected before attempt) send.
type DeliveryOutcome struct {
	ID                  int       `db:"id" json:"-"`
	MailerID            string    `db:"mailer_id" json:"mailerId"`
	RecipientEmail      string    `db:"recipient_email" json:"recipient_email"`
	RecipientName       string    `db:"recipient_name" json:"recipient_name"`
	RecipientDepartment string    `db:"recipient_department" json:"recipient_department"`
	Success             bool      `db:"success" json:"success"`
	LogMessage          string    `db:"log_message" json:"log_message"`
	SentAt              time.Time `db:"sent_at" json:"sent_at"`
}
