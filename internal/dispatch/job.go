package dispatch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/thrillee/bulksms/internal/queue"
)

// HandleJob runs a queued campaign job. Outcomes a retry cannot change are
// reported as permanent so the consumer does not requeue them.
func (o *Orchestrator) HandleJob(ctx context.Context, job queue.CampaignJob) error {
	var (
		res CampaignResult
		err error
	)
	if job.StalledBefore != nil {
		res, err = o.ResumeCampaign(ctx, job.UserID, job.CampaignID, *job.StalledBefore)
	} else {
		res, err = o.SendCampaign(ctx, job.UserID, job.CampaignID)
	}
	var nf *NotFoundError
	switch {
	case errors.As(err, &nf), errors.Is(err, ErrCampaignNotSendable), errors.Is(err, ErrCampaignInFlight):
		return queue.Permanent(err)
	case err != nil:
		return err
	}
	slog.InfoContext(ctx, "Campaign job done",
		slog.String("status", res.Status),
		slog.Bool("interrupted", res.Interrupted),
		slog.Int("success", res.Success),
		slog.Int("failure", res.Failure),
	)
	return nil
}
