package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const staffCSV = "email,name,department\n" +
	"ann@example.com,Ann,HR\n" +
	"bob@example.com,Bob,Finance\n" +
	"cid@example.com,Cid,hr\n"

func TestPreviewRecipients(t *testing.T) {
	p, err := PreviewRecipients([]byte(staffCSV), []string{"HR"})
	require.NoError(t, err)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 2, p.Targeted)
	assert.Equal(t, []string{"HR", "hr"}, p.Departments())

	p, err = PreviewRecipients([]byte(staffCSV), []string{"All"})
	require.NoError(t, err)
	assert.Equal(t, 3, p.Targeted)

	p, err = PreviewRecipients([]byte(staffCSV), []string{"Legal"})
	require.NoError(t, err)
	assert.Zero(t, p.Targeted)
}

func TestSplitSubject(t *testing.T) {
	subject, body := SplitSubject([]byte("Subject: Quarterly update\n<p>Hi {{name}}</p>\n"))
	assert.Equal(t, "Quarterly update", subject)
	assert.Equal(t, "<p>Hi {{name}}</p>\n", string(body))

	subject, body = SplitSubject([]byte("<p>no subject</p>"))
	assert.Empty(t, subject)
	assert.Equal(t, "<p>no subject</p>", string(body))
}
