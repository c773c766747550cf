package cli

import (
	"bytes"
	"sort"
	"strings"

	"github.com/unclebandit/smart-mailer/internal/service"
)

// Preview is what a batch will target, computed locally before submitting.
type Preview struct {
	Total        int
	Targeted     int
	ByDepartment map[string]int
}

// PreviewRecipients applies the department filter to the CSV the same way the
// server does.
func PreviewRecipients(csv []byte, departments []string) (*Preview, error) {
	recipients, err := service.ParseRecipients(bytes.NewReader(csv))
	if err != nil {
		return nil, err
	}
	filter := service.ParseDepartmentFilter(strings.Join(departments, ","))

	p := &Preview{Total: len(recipients), ByDepartment: map[string]int{}}
	for _, r := range recipients {
		if !filter.Includes(r.Department) {
			continue
		}
		p.Targeted++
		p.ByDepartment[r.Department]++
	}
	return p, nil
}

// Departments returns the targeted departments in stable order.
func (p *Preview) Departments() []string {
	out := make([]string, 0, len(p.ByDepartment))
	for d := range p.ByDepartment {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// SplitSubject pulls the first "Subject: ..." line out of a template file.
// The line is removed from the body; an absent line yields an empty subject.
func SplitSubject(content []byte) (string, []byte) {
	var subject string
	var body strings.Builder
	for _, line := range strings.SplitAfter(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if subject == "" && strings.HasPrefix(strings.ToLower(trimmed), "subject:") {
			subject = strings.TrimSpace(trimmed[len("subject:"):])
			continue
		}
		body.WriteString(line)
	}
	return subject, []byte(body.String())
}
