package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/storebridge/storebridge/internal/jobs"
	"github.com/storebridge/storebridge/internal/notify"
)

// MailJob delivers queued notification emails.
type MailJob struct {
	mailer  notify.Mailer
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewMailJob constructs the mail:send handler.
func NewMailJob(mailer notify.Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *MailJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &MailJob{mailer: mailer, logger: logger, metrics: metrics}
}

// Handle processes TaskTypeSendEmail tasks.
func (j *MailJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.mailer == nil {
		return errors.New("mail job: mailer not configured")
	}
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("mail job: %v: %w", err, asynq.SkipRetry)
	}
	if len(payload.To) == 0 {
		return fmt.Errorf("mail job: no recipients: %w", asynq.SkipRetry)
	}
	tracker := j.metrics.Track(TaskTypeSendEmail)
	defer func() { err = tracker.End(err) }()

	if err = j.mailer.Send(ctx, notify.Message{To: payload.To, Subject: payload.Subject, Body: payload.Body}); err != nil {
		j.logger.Warn("send email", slog.String("subject", payload.Subject), slog.Any("error", err))
		return err
	}
	j.logger.Info("email sent", slog.String("subject", payload.Subject), slog.Int("recipients", len(payload.To)))
	return nil
}
