package service_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/smart-mailer/internal/errors"
	"github.com/unclebandit/smart-mailer/internal/model"
	"github.com/unclebandit/smart-mailer/internal/service"
)

func TestParseRecipients(t *testing.T) {
	csv := "email,name,department,phone\n" +
		"  ann@example.com , Ann ,HR,123\n" +
		"bob@example.com,Bob,Sales,456\n"

	got, err := service.ParseRecipients(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, []model.Recipient{
		{Email: "ann@example.com", Name: "Ann", Department: "HR"},
		{Email: "bob@example.com", Name: "Bob", Department: "Sales"},
	}, got)
}

func TestParseRecipientsHeaderOrderAndCase(t *testing.T) {
	csv := "\ufeffDepartment, Name ,EMAIL\nFinance,Cara,cara@example.com\n"

	got, err := service.ParseRecipients(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.Recipient{Email: "cara@example.com", Name: "Cara", Department: "Finance"}, got[0])
}

func TestParseRecipientsMissingColumnYieldsEmpty(t *testing.T) {
	csv := "email,name\ndan@example.com,Dan\neve@example.com\n"

	got, err := service.ParseRecipients(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "", got[0].Department)
	assert.Equal(t, "", got[1].Name)
}

func TestParseRecipientsEmpty(t *testing.T) {
	for name, input := range map[string]string{
		"no input":    "",
		"header only": "email,name,department\n",
		"blank rows":  "email,name,department\n,,\n\n",
	} {
		t.Run(name, func(t *testing.T) {
			got, err := service.ParseRecipients(strings.NewReader(input))
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestParseRecipientsMalformed(t *testing.T) {
	cases := map[string]string{
		"bare quote":   "email,name,department\n\"ann@example.com,Ann,HR\n",
		"invalid utf8": "email,name,department\nann@example.com,\xff\xfe,HR\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := service.ParseRecipients(strings.NewReader(input))
			var pe *appErrors.ParseError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

func TestValidateRecipientNormalizesEmail(t *testing.T) {
	r := model.Recipient{Email: "  JOHN@Example.COM ", Name: "John", Department: "Sales"}

	ok, reason := service.ValidateRecipient(&r)
	assert.True(t, ok)
	assert.Empty(t, reason)
	assert.Equal(t, "john@example.com", r.Email)
}

func TestValidateRecipientRules(t *testing.T) {
	cases := []struct {
		name   string
		in     model.Recipient
		reason string
	}{
		{"email missing", model.Recipient{Email: "  ", Name: "", Department: ""}, service.ReasonEmailMissing},
		{"no at sign", model.Recipient{Email: "ann.example.com", Name: "Ann", Department: "HR"}, service.ReasonEmailInvalid},
		{"no dot in domain", model.Recipient{Email: "ann@localhost", Name: "Ann", Department: "HR"}, service.ReasonEmailInvalid},
		{"two at signs", model.Recipient{Email: "ann@b@example.com", Name: "Ann", Department: "HR"}, service.ReasonEmailInvalid},
		{"forbidden char", model.Recipient{Email: "a<nn@example.com", Name: "Ann", Department: "HR"}, service.ReasonEmailInvalid},
		{"inner space", model.Recipient{Email: "a nn@example.com", Name: "Ann", Department: "HR"}, service.ReasonEmailInvalid},
		{"display name form", model.Recipient{Email: "Ann <ann@example.com>", Name: "Ann", Department: "HR"}, service.ReasonEmailInvalid},
		{"name checked after email", model.Recipient{Email: "bad", Name: "", Department: ""}, service.ReasonEmailInvalid},
		{"name missing", model.Recipient{Email: "ann@example.com", Name: "", Department: ""}, service.ReasonNameMissing},
		{"department missing", model.Recipient{Email: "ann@example.com", Name: "Ann", Department: ""}, service.ReasonDepartmentMissing},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := tc.in
			ok, reason := service.ValidateRecipient(&r)
			assert.False(t, ok)
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestIsValidEmail(t *testing.T) {
	for _, ok := range []string{"a@b.co", "first.last+tag@sub.example.org", "x_y@example.io", "o'brien@example.com", "a{b}`c@example.com"} {
		assert.True(t, service.IsValidEmail(ok), ok)
	}
	for _, bad := range []string{"", "@example.com", "a@.com", "a@example.", "a@exa..mple.com", "a@example,com", "a\x01b@example.com", "a;b@example.com"} {
		assert.False(t, service.IsValidEmail(bad), bad)
	}
}

func TestDepartmentFilter(t *testing.T) {
	sales := service.ParseDepartmentFilter("Sales, Marketing")
	assert.False(t, sales.Includes("Finance"))
	assert.True(t, sales.Includes("sales"))
	assert.True(t, sales.Includes(" MARKETING "))

	assert.True(t, service.ParseDepartmentFilter("all").Includes("Finance"))
	assert.True(t, service.ParseDepartmentFilter("").Includes("Finance"))
	assert.True(t, service.ParseDepartmentFilter(" , ").Includes("Finance"))
	assert.True(t, service.ParseDepartmentFilter("hr,FINANCE").Includes("Finance"))

	assert.Equal(t, []string{"marketing", "sales"}, sales.Departments())
	assert.Equal(t, "all", service.ParseDepartmentFilter("").String())
}
