package queue

import (
	"context"
	"log/slog"
	"sync"

	"github.com/thrillee/bulksms/internal/logging"
)

// Inline runs jobs in background goroutines of the current process. It is
// used when no broker is configured.
type Inline struct {
	handler Handler
	wg      sync.WaitGroup
}

var _ Enqueuer = (*Inline)(nil)

func NewInline(handler Handler) *Inline {
	return &Inline{handler: handler}
}

// Enqueue detaches the job from ctx so it outlives the request or worker run
// that queued it. A campaign job runs until it finishes or is drained.
func (q *Inline) Enqueue(ctx context.Context, job CampaignJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	jobCtx := context.WithoutCancel(ctx)
	jobCtx = logging.ContextWithCampaignID(logging.ContextWithJobID(jobCtx, job.JobID), job.CampaignID)

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := q.handler(jobCtx, job); err != nil {
			slog.ErrorContext(jobCtx, "Inline campaign job failed", slog.Any("error", err))
		}
	}()
	return nil
}

// Wait blocks until every enqueued job has returned.
func (q *Inline) Wait() {
	q.wg.Wait()
}
