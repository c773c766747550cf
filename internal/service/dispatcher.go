// internal/service/dispatcher.go
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/smart-mailer/internal/errors"
	"github.com/unclebandit/smart-mailer/internal/logger"
	"github.com/unclebandit/smart-mailer/internal/mailer"
	"github.com/unclebandit/smart-mailer/internal/model"
	"github.com/unclebandit/smart-mailer/internal/queue"
)

// BatchTopic is the queue topic carrying job ids to the worker pool.
const BatchTopic = "batch_sends"

// Job states.
const (
	JobAccepted  = "Accepted"
	JobRunning   = "Running"
	JobCompleted = "Completed"
	JobCancelled = "Cancelled"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobFinished = errors.New("job already finished")
)

// MailTransport sends one rendered message with its own retry budget.
type MailTransport interface {
	Send(ctx context.Context, creds mailer.Credentials, recipient, subject, htmlBody string) (bool, error)
}

// DeliveryLog receives one outcome per recipient that passed the filter.
type DeliveryLog interface {
	Record(ctx context.Context, o model.DeliveryOutcome) error
}

// CampaignResolver reuses a known campaign id or mints a new one.
type CampaignResolver interface {
	Resolve(ctx context.Context, mailerID string) (string, error)
}

// BatchRequest is one batch submission. Recipients and Template are nil when
// the caller did not supply them.
type BatchRequest struct {
	SenderAddress string
	SenderSecret  string
	Subject       string
	Recipients    io.Reader
	Template      *string
	MailerID      string
	Departments   string
}

// Validate checks the required fields in the order callers are told about them.
func (r BatchRequest) Validate() error {
	switch {
	case r.SenderAddress == "":
		return appErrors.NewRequestError(appErrors.ReasonSenderMissing)
	case !IsValidEmail(NormalizeEmail(r.SenderAddress)):
		return appErrors.NewRequestError(appErrors.ReasonSenderInvalid)
	case r.SenderSecret == "":
		return appErrors.NewRequestError(appErrors.ReasonSecretMissing)
	case r.Recipients == nil:
		return appErrors.NewRequestError(appErrors.ReasonRecipientsMissing)
	case r.Subject == "":
		return appErrors.NewRequestError(appErrors.ReasonSubjectMissing)
	case r.Template == nil:
		return appErrors.NewRequestError(appErrors.ReasonTemplateMissing)
	}
	return nil
}

// SubmitResult is returned synchronously once a batch is accepted.
type SubmitResult struct {
	MailerID string `json:"mailerId"`
	JobID    string `json:"jobId"`
}

// JobStatus is a point-in-time view of a job. It never carries credentials.
type JobStatus struct {
	ID         string     `json:"id"`
	MailerID   string     `json:"mailerId"`
	State      string     `json:"state"`
	Total      int        `json:"total"`
	Processed  int        `json:"processed"`
	Sent       int        `json:"sent"`
	Failed     int        `json:"failed"`
	Skipped    int        `json:"skipped"`
	Aborted    bool       `json:"aborted"`
	AcceptedAt time.Time  `json:"acceptedAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// SendJob is the live state of one batch run.
type SendJob struct {
	mu     sync.Mutex
	status JobStatus
	cancel context.CancelFunc

	creds      mailer.Credentials
	subject    string
	template   string
	recipients []model.Recipient
	filter     DepartmentFilter
}

func (j *SendJob) snapshot() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// start moves an accepted job to Running. It reports false if the job was
// cancelled while it waited in the queue.
func (j *SendJob) start(cancel context.CancelFunc, at time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.State != JobAccepted {
		return false
	}
	j.status.State = JobRunning
	j.status.StartedAt = &at
	j.cancel = cancel
	return true
}

func (j *SendJob) finish(at time.Time, cancelled bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if cancelled {
		j.status.State = JobCancelled
	} else {
		j.status.State = JobCompleted
	}
	j.status.FinishedAt = &at
	j.cancel = nil
	// Credentials live only as long as the job runs.
	j.creds = mailer.Credentials{}
	j.template = ""
	j.recipients = nil
}

func (j *SendJob) update(fn func(s *JobStatus)) {
	j.mu.Lock()
	fn(&j.status)
	j.mu.Unlock()
}

// Dispatcher accepts batch submissions and runs each one as a sequential job
// on the shared worker pool.
type Dispatcher struct {
	Campaigns   CampaignResolver
	Transport   MailTransport
	DeliveryLog DeliveryLog
	Renderer    TemplateRenderer
	Queue       queue.Queue

	// SendDelay is waited after every attempted send.
	SendDelay time.Duration
	// SinkFailureLimit consecutive DeliveryLog failures abort a job. Zero disables.
	SinkFailureLimit int
	// JobRetention is how long finished jobs stay queryable.
	JobRetention time.Duration

	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
	Log   *slog.Logger

	mu   sync.Mutex
	jobs map[string]*SendJob
}

// Start subscribes the dispatcher to the batch topic.
func (d *Dispatcher) Start() error {
	return d.Queue.Subscribe(BatchTopic, d.handle)
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Log == nil {
		return logger.NewNope()
	}
	return d.Log
}

func (d *Dispatcher) sleep(ctx context.Context, dur time.Duration) error {
	if d.Sleep != nil {
		return d.Sleep(ctx, dur)
	}
	return mailer.Sleep(ctx, dur)
}

// SubmitBatch validates and parses the request, resolves the campaign and
// enqueues the job. The returned ids are valid even though sending has not
// started yet.
func (d *Dispatcher) SubmitBatch(ctx context.Context, req BatchRequest) (*SubmitResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	recipients, err := ParseRecipients(req.Recipients)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, appErrors.NewRequestError(appErrors.ReasonNoRecipients)
	}

	mailerID, err := d.Campaigns.Resolve(ctx, req.MailerID)
	if err != nil {
		return nil, err
	}

	now := d.now()
	job := &SendJob{
		status: JobStatus{
			ID:         uuid.NewString(),
			MailerID:   mailerID,
			State:      JobAccepted,
			Total:      len(recipients),
			AcceptedAt: now,
		},
		creds:      mailer.Credentials{Address: NormalizeEmail(req.SenderAddress), Secret: req.SenderSecret},
		subject:    req.Subject,
		template:   *req.Template,
		recipients: recipients,
		filter:     ParseDepartmentFilter(req.Departments),
	}

	d.mu.Lock()
	if d.jobs == nil {
		d.jobs = map[string]*SendJob{}
	}
	d.pruneLocked(now)
	d.jobs[job.status.ID] = job
	d.mu.Unlock()

	if err := d.Queue.Publish(BatchTopic, job.status.ID); err != nil {
		d.mu.Lock()
		delete(d.jobs, job.status.ID)
		d.mu.Unlock()
		return nil, err
	}

	d.logger().Info("batch accepted",
		slog.String("job_id", job.status.ID),
		slog.String("mailer_id", mailerID),
		slog.Int("recipients", len(recipients)),
		slog.String("departments", job.filter.String()),
	)
	return &SubmitResult{MailerID: mailerID, JobID: job.status.ID}, nil
}

func (d *Dispatcher) pruneLocked(now time.Time) {
	if d.JobRetention <= 0 {
		return
	}
	for id, job := range d.jobs {
		s := job.snapshot()
		if s.FinishedAt != nil && now.Sub(*s.FinishedAt) > d.JobRetention {
			delete(d.jobs, id)
		}
	}
}

func (d *Dispatcher) job(id string) *SendJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.jobs[id]
}

// Status returns a snapshot of job id.
func (d *Dispatcher) Status(id string) (JobStatus, error) {
	job := d.job(id)
	if job == nil {
		return JobStatus{}, ErrJobNotFound
	}
	return job.snapshot(), nil
}

// Cancel stops a queued or running job. A running job stops before its next
// recipient and any wait in progress is interrupted.
func (d *Dispatcher) Cancel(id string) (JobStatus, error) {
	job := d.job(id)
	if job == nil {
		return JobStatus{}, ErrJobNotFound
	}

	job.mu.Lock()
	switch job.status.State {
	case JobAccepted:
		now := d.now()
		job.status.State = JobCancelled
		job.status.FinishedAt = &now
		job.creds = mailer.Credentials{}
		job.recipients = nil
	case JobRunning:
		if job.cancel != nil {
			job.cancel()
		}
	default:
		job.mu.Unlock()
		return job.snapshot(), ErrJobFinished
	}
	job.mu.Unlock()

	d.logger().Info("batch cancellation requested", slog.String("job_id", id))
	return job.snapshot(), nil
}

// CancelAll cancels every unfinished job. Used on shutdown.
func (d *Dispatcher) CancelAll() {
	d.mu.Lock()
	ids := make([]string, 0, len(d.jobs))
	for id := range d.jobs {
		ids = append(ids, id)
	}
	d.mu.Unlock()

	for _, id := range ids {
		_, _ = d.Cancel(id)
	}
}

func (d *Dispatcher) handle(ctx context.Context, payload any) error {
	id, ok := payload.(string)
	if !ok {
		d.logger().Warn("⚠️ invalid batch payload type, expected job id")
		return nil
	}
	job := d.job(id)
	if job == nil {
		d.logger().Warn("⚠️ batch job not found", slog.String("job_id", id))
		return nil
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !job.start(cancel, d.now()) {
		return nil
	}

	d.run(jobCtx, job)

	cancelled := jobCtx.Err() != nil
	job.finish(d.now(), cancelled)

	s := job.snapshot()
	d.logger().Info("batch finished",
		slog.String("job_id", s.ID),
		slog.String("mailer_id", s.MailerID),
		slog.String("state", s.State),
		slog.Int("sent", s.Sent),
		slog.Int("failed", s.Failed),
		slog.Int("skipped", s.Skipped),
		slog.Bool("aborted", s.Aborted),
	)
	// Errors never leave the job: a retry would resend mail.
	return nil
}

// run processes recipients strictly in input order on the calling goroutine.
func (d *Dispatcher) run(ctx context.Context, job *SendJob) {
	log := d.logger().With(slog.String("job_id", job.status.ID), slog.String("mailer_id", job.status.MailerID))
	mailerID := job.status.MailerID
	sinkFailures := 0

	last := -1
	for i := range job.recipients {
		if job.filter.Includes(job.recipients[i].Department) {
			last = i
		}
	}

	for i := range job.recipients {
		if ctx.Err() != nil {
			return
		}
		recipient := job.recipients[i]

		if !job.filter.Includes(recipient.Department) {
			job.update(func(s *JobStatus) { s.Skipped++ })
			continue
		}

		outcome := model.DeliveryOutcome{MailerID: mailerID}
		valid, reason := ValidateRecipient(&recipient)
		sent := false
		if !valid {
			outcome.LogMessage = model.LogMessageNotSent + " - " + reason
			log.Warn("recipient rejected", slog.Int("row", i+1), slog.String("reason", reason))
		} else {
			body := d.Renderer.Render(job.template, recipient, mailerID)
			var err error
			sent, err = d.Transport.Send(ctx, job.creds, recipient.Email, job.subject, body)
			if sent {
				outcome.LogMessage = model.LogMessageSent
			} else {
				outcome.LogMessage = model.LogMessageNotSent
				if err != nil {
					outcome.LogMessage += " - " + err.Error()
				}
			}
		}
		outcome.RecipientEmail = recipient.Email
		outcome.RecipientName = recipient.Name
		outcome.RecipientDepartment = recipient.Department
		outcome.Success = sent
		outcome.SentAt = d.now()

		// The outcome of an attempt that was already made is recorded even
		// when the job is being cancelled.
		if err := d.DeliveryLog.Record(context.WithoutCancel(ctx), outcome); err != nil {
			sinkFailures++
			log.Error("failed to record delivery outcome",
				slog.String("recipient", recipient.Email),
				slog.Int("consecutive_failures", sinkFailures),
				slog.Any("error", err),
			)
			if d.SinkFailureLimit > 0 && sinkFailures >= d.SinkFailureLimit {
				log.Error("delivery log unavailable, aborting batch")
				job.update(func(s *JobStatus) {
					s.Processed++
					s.Aborted = true
					if sent {
						s.Sent++
					} else {
						s.Failed++
					}
				})
				return
			}
		} else {
			sinkFailures = 0
		}

		job.update(func(s *JobStatus) {
			s.Processed++
			if sent {
				s.Sent++
			} else {
				s.Failed++
			}
		})

		if valid && i < last {
			if err := d.sleep(ctx, d.SendDelay); err != nil {
				return
			}
		}
	}
}
