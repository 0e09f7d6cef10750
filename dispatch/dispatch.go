// Package dispatch turns a send request into either an immediate SMTP
// delivery or a job registered with the scheduler.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pure-golang/bannermail/mail"
	"github.com/pure-golang/bannermail/scheduler"
)

// JobName is the scheduler job name used for deferred sends.
const JobName = "send"

var tracer = otel.Tracer("github.com/pure-golang/bannermail/dispatch")

// JobScheduler registers deferred work.
type JobScheduler interface {
	Schedule(name string, runAt time.Time, h scheduler.Handler) (string, error)
}

// Service sends or schedules banner emails.
type Service struct {
	transport mail.Transport
	jobs      JobScheduler
	validate  *validator.Validate
	location  *time.Location
	logger    *slog.Logger
}

// ServiceOptions contains options for creating a Service.
type ServiceOptions struct {
	Logger *slog.Logger
	// Location is used by CombineDateTime. Defaults to time.Local.
	Location *time.Location
}

func NewService(transport mail.Transport, jobs JobScheduler, options *ServiceOptions) *Service {
	if options == nil {
		options = &ServiceOptions{}
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Location == nil {
		options.Location = time.Local
	}

	return &Service{
		transport: transport,
		jobs:      jobs,
		validate:  validator.New(),
		location:  options.Location,
		logger:    options.Logger.WithGroup("dispatch"),
	}
}

// Location returns the zone used for date and time fields.
func (s *Service) Location() *time.Location {
	return s.location
}

// SendNow validates req, builds the message and delivers it synchronously.
func (s *Service) SendNow(ctx context.Context, req Request) error {
	if err := validate(s.validate, req); err != nil {
		return err
	}
	return s.send(ctx, req)
}

// Schedule validates req and registers a deferred send at the minute of at.
// The request is copied, so the caller may reuse its buffers.
func (s *Service) Schedule(ctx context.Context, req Request, at time.Time) (scheduler.JobInfo, error) {
	if err := validate(s.validate, req); err != nil {
		return scheduler.JobInfo{}, err
	}

	runAt := truncateToMinute(at)
	snapshot := req.clone()

	id, err := s.jobs.Schedule(JobName, runAt, func(ctx context.Context) error {
		if err := s.send(ctx, snapshot); err != nil {
			return errors.Wrap(err, "scheduled send failed")
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, scheduler.ErrPastRunTime) {
			return scheduler.JobInfo{}, &InputError{Field: "date", Err: err}
		}
		return scheduler.JobInfo{}, errors.Wrap(err, "failed to schedule send")
	}

	s.logger.InfoContext(ctx, "send scheduled",
		"job_id", id,
		"run_at", runAt,
		"recipients", len(snapshot.Recipients),
		"smtp", snapshot.Credentials,
	)

	return scheduler.JobInfo{
		ID:    id,
		Name:  JobName,
		RunAt: runAt,
		State: scheduler.StateRegistered,
	}, nil
}

func (s *Service) send(ctx context.Context, req Request) error {
	ctx, span := tracer.Start(ctx, "Dispatch.Send")
	defer span.End()
	span.SetAttributes(attribute.Int("mail.recipients_count", len(req.Recipients)))

	msg, err := mail.Build(req.message())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errors.Wrap(err, "failed to build message")
	}
	span.SetAttributes(attribute.Int("mail.size", len(msg)))

	if err := s.transport.Send(ctx, req.Credentials, req.Credentials.Username, req.Recipients, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// CombineDateTime joins a YYYY-MM-DD date and an HH:MM time in loc.
func CombineDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		return time.Time{}, &InputError{Field: "date", Err: ErrInvalidDateTime}
	}
	return t, nil
}

func truncateToMinute(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}
