package scheduler

import "github.com/pkg/errors"

var (
	ErrPastRunTime    = errors.New("scheduler: run time must be in the future")
	ErrJobNotFound    = errors.New("scheduler: job not found")
	ErrNilHandler     = errors.New("scheduler: handler is required")
	ErrAlreadyStarted = errors.New("scheduler: already started")
	ErrNotStarted     = errors.New("scheduler: not started")
)
