package cli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/smart-mailer/internal/controller"
)

func TestSubmitBatchPostsMultipart(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sender/batch", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		got = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			got[k] = v[0]
		}
		for _, field := range []string{controller.FieldRecipients, controller.FieldTemplate} {
			f, _, err := r.FormFile(field)
			require.NoError(t, err)
			b, _ := io.ReadAll(f)
			got[field] = string(b)
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "mailerId": "m-1", "jobId": "j-1"})
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL).SubmitBatch(context.Background(), Batch{
		SenderAddress: "me@example.com",
		SenderSecret:  "pw",
		Subject:       "Hello",
		Departments:   []string{"HR", "Finance"},
		Recipients:    []byte("email,name,department\n"),
		Template:      []byte("<p>hi</p>"),
	})
	require.NoError(t, err)
	assert.Equal(t, "m-1", res.MailerID)
	assert.Equal(t, "j-1", res.JobID)

	assert.Equal(t, "me@example.com", got[controller.FieldSenderAddress])
	assert.Equal(t, "pw", got[controller.FieldSenderSecret])
	assert.Equal(t, "Hello", got[controller.FieldSubject])
	assert.Equal(t, "HR,Finance", got[controller.FieldDepartments])
	assert.Equal(t, "<p>hi</p>", got[controller.FieldTemplate])
	assert.NotContains(t, got, controller.FieldMailerID)
}

func TestClientSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false,"error":"Invalid mailerId"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Logs(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Invalid mailerId")
}

func TestCreateMailer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/mailer/create", r.URL.Path)
		w.Write([]byte(`{"mailerId":"m-9"}`))
	}))
	defer srv.Close()

	id, err := NewClient(srv.URL).CreateMailer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "m-9", id)
}

func TestClicksQueryEscapesMailerID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a b", r.URL.Query().Get("mailerId"))
		w.Write([]byte(`{"clickCount":3,"last5Days":[],"last5Months":[]}`))
	}))
	defer srv.Close()

	stats, err := NewClient(srv.URL).Clicks(context.Background(), "a b")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ClickCount)
}

func TestNewClientAddsScheme(t *testing.T) {
	assert.Equal(t, "http://localhost:3000", NewClient("localhost:3000/").BaseURL)
	assert.Equal(t, "https://mail.example.com", NewClient("https://mail.example.com").BaseURL)
}
