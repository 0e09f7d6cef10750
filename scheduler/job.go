package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Handler performs the work of a job. Its error is logged, never returned to
// whoever scheduled the job.
type Handler func(ctx context.Context) error

// State is the lifecycle position of a job.
type State string

const (
	StateRegistered State = "registered"
	StateExecuting  State = "executing"
)

// JobInfo is a read-only snapshot of a pending job.
type JobInfo struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	RunAt   time.Time `json:"run_at"`
	State   State     `json:"state"`
	Created time.Time `json:"created_at"`
}

type job struct {
	info    JobInfo
	handler Handler
	entryID cron.EntryID
}

func newJobID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("send_job_%d_%s", now.Unix(), suffix)
}

// oneShot is a cron.Schedule that yields its time exactly once. A run time
// already behind cron's clock fires on the next loop iteration.
type oneShot struct {
	at     time.Time
	issued atomic.Bool
}

var _ cron.Schedule = (*oneShot)(nil)

func (s *oneShot) Next(time.Time) time.Time {
	if s.issued.CompareAndSwap(false, true) {
		return s.at
	}
	return time.Time{}
}
