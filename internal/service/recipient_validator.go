// internal/service/recipient_validator.go
package service

import (
	"net/mail"
	"strings"
	"unicode"

	"github.com/unclebandit/smart-mailer/internal/model"
)

// Rejection reasons recorded in the delivery log.
const (
	ReasonEmailMissing      = "email missing"
	ReasonEmailInvalid      = "email invalid"
	ReasonNameMissing       = "name missing"
	ReasonDepartmentMissing = "department missing"
)

const forbiddenEmailChars = " \t\r\n<>()[],;:\\\""

// ValidateRecipient normalizes the recipient's email in place and applies the
// rules in order. The first failing rule's reason is returned.
func ValidateRecipient(r *model.Recipient) (bool, string) {
	r.Email = NormalizeEmail(r.Email)

	if r.Email == "" {
		return false, ReasonEmailMissing
	}
	if !IsValidEmail(r.Email) {
		return false, ReasonEmailInvalid
	}
	if strings.TrimSpace(r.Name) == "" {
		return false, ReasonNameMissing
	}
	if strings.TrimSpace(r.Department) == "" {
		return false, ReasonDepartmentMissing
	}
	return true, ""
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail accepts a bare local@domain address whose domain contains a dot.
func IsValidEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, forbiddenEmailChars) || strings.IndexFunc(email, unicode.IsControl) >= 0 {
		return false
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || strings.Contains(domain, "@") {
		return false
	}
	if !strings.Contains(domain, ".") ||
		strings.HasPrefix(domain, ".") ||
		strings.HasSuffix(domain, ".") ||
		strings.Contains(domain, "..") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email
}
