package service_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unclebandit/smart-mailer/internal/model"
	"github.com/unclebandit/smart-mailer/internal/service"
)

func TestRenderReplacesTokensAndAppendsBeacon(t *testing.T) {
	r := service.TemplateRenderer{TrackingBaseURL: "https://mailer.example.com"}
	tpl := "<p>Hi {{name}} from {{department}}. Bye {{name}}.</p>"

	got := r.Render(tpl, model.Recipient{Name: "Ann", Department: "HR"}, "m-123")

	assert.True(t, strings.HasPrefix(got, "<p>Hi Ann from HR. Bye Ann.</p>"))
	assert.NotContains(t, got, "{{")
	assert.Equal(t, 1, strings.Count(got, "<img "))
	assert.True(t, strings.HasSuffix(got,
		`<img src="https://mailer.example.com/api/files/m-123" width="1" height="1" alt="" style="display:none;" />`))
}

func TestRenderDoesNotEscapeValues(t *testing.T) {
	r := service.TemplateRenderer{TrackingBaseURL: "http://localhost:8080"}
	got := r.Render("{{name}}", model.Recipient{Name: "<b>Ann</b> & co", Department: "HR"}, "m")
	assert.True(t, strings.HasPrefix(got, "<b>Ann</b> & co<img"))
}

func TestRenderValuesAreNotRescanned(t *testing.T) {
	r := service.TemplateRenderer{TrackingBaseURL: "http://localhost:8080"}
	got := r.Render("{{name}}|{{department}}", model.Recipient{Name: "{{department}}", Department: "HR"}, "m")
	assert.True(t, strings.HasPrefix(got, "{{department}}|HR<img"))
}

func TestRenderEmptyTemplate(t *testing.T) {
	r := service.TemplateRenderer{TrackingBaseURL: "http://localhost:8080/"}
	got := r.Render("", model.Recipient{Name: "Ann", Department: "HR"}, "m-1")
	assert.Equal(t, r.Beacon("m-1"), got)
	assert.Contains(t, got, `src="http://localhost:8080/api/files/m-1"`)
}

func TestBeaconEscapesMailerID(t *testing.T) {
	r := service.TemplateRenderer{TrackingBaseURL: "http://localhost:8080"}
	assert.Contains(t, r.Beacon(`a/b "c"`), `/api/files/a%2Fb%20%22c%22"`)
}

func TestRenderTemplate(t *testing.T) {
	got := service.RenderTemplate("{{a}}-{{b}}-{c}", map[string]string{"a": "1", "b": "2"})
	assert.Equal(t, "1-2-{c}", got)
}
