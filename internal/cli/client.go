package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/unclebandit/smart-mailer/internal/controller"
	"github.com/unclebandit/smart-mailer/internal/service"
)

// Client talks to a running mailer server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Batch is one submission of the send command.
type Batch struct {
	SenderAddress string
	SenderSecret  string
	Subject       string
	MailerID      string
	Departments   []string
	Recipients    []byte
	Template      []byte
}

func (c *Client) SubmitBatch(ctx context.Context, b Batch) (*service.SubmitResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		controller.FieldSenderAddress: b.SenderAddress,
		controller.FieldSenderSecret:  b.SenderSecret,
		controller.FieldSubject:       b.Subject,
		controller.FieldMailerID:      b.MailerID,
		controller.FieldDepartments:   strings.Join(b.Departments, ","),
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := writeFile(mw, controller.FieldRecipients, "recipients.csv", b.Recipients); err != nil {
		return nil, err
	}
	if err := writeFile(mw, controller.FieldTemplate, "template.html", b.Template); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/sender/batch", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var res service.SubmitResult
	if err := c.do(req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func writeFile(mw *multipart.Writer, field, name string, content []byte) error {
	fw, err := mw.CreateFormFile(field, name)
	if err != nil {
		return err
	}
	_, err = fw.Write(content)
	return err
}

func (c *Client) CreateMailer(ctx context.Context) (string, error) {
	var res struct {
		MailerID string `json:"mailerId"`
	}
	if err := c.get(ctx, "/api/mailer/create", &res); err != nil {
		return "", err
	}
	if res.MailerID == "" {
		return "", fmt.Errorf("mailer id not found in response")
	}
	return res.MailerID, nil
}

func (c *Client) Logs(ctx context.Context, mailerID string) (*service.DeliveryStats, error) {
	var res service.DeliveryStats
	if err := c.get(ctx, "/api/logs?mailerId="+url.QueryEscape(mailerID), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Clicks(ctx context.Context, mailerID string) (*service.ClickStats, error) {
	var res service.ClickStats
	if err := c.get(ctx, "/api/clicks?mailerId="+url.QueryEscape(mailerID), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Job(ctx context.Context, jobID string) (*service.JobStatus, error) {
	var res service.JobStatus
	if err := c.get(ctx, "/api/jobs/"+url.PathEscape(jobID), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &failure) == nil && failure.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, failure.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}
