// internal/service/template_service.go
package service

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/unclebandit/smart-mailer/internal/model"
)

const beaconTag = `<img src="%s/api/files/%s" width="1" height="1" alt="" style="display:none;" />`

// RenderTemplate replaces every {{key}} in template with its value. Values are
// inserted verbatim and never re-scanned.
func RenderTemplate(template string, data map[string]string) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", data[k])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// TemplateRenderer personalizes a batch template and appends the tracking beacon.
type TemplateRenderer struct {
	TrackingBaseURL string
}

func (r TemplateRenderer) Render(template string, recipient model.Recipient, mailerID string) string {
	body := RenderTemplate(template, map[string]string{
		"name":       recipient.Name,
		"department": recipient.Department,
	})
	return body + r.Beacon(mailerID)
}

// Beacon is the hidden 1x1 image whose fetch counts as an open.
func (r TemplateRenderer) Beacon(mailerID string) string {
	base := strings.TrimRight(r.TrackingBaseURL, "/")
	return fmt.Sprintf(beaconTag, base, url.PathEscape(mailerID))
}
