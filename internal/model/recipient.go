// internal/model/recipient.go
package model

// Recipient is one row of a batch's recipient table.
type Recipient struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Department string `json:"department"`
}
