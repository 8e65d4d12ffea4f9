package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CampaignJob asks a worker to dispatch one campaign.
type CampaignJob struct {
	JobID      string    `json:"job_id"`
	UserID     string    `json:"user_id"`
	CampaignID int64     `json:"campaign_id"`
	Source     string    `json:"source"` // api, scheduler or recovery
	EnqueuedAt time.Time `json:"enqueued_at"`
	// StalledBefore, when set, resumes a dispatch that has made no progress
	// since then instead of starting a new one.
	StalledBefore *time.Time `json:"stalled_before,omitempty"`
}

func NewCampaignJob(userID string, campaignID int64, source string) CampaignJob {
	return CampaignJob{
		JobID:      uuid.NewString(),
		UserID:     userID,
		CampaignID: campaignID,
		Source:     source,
		EnqueuedAt: time.Now().UTC(),
	}
}

// NewResumeJob asks a worker to take over a campaign dispatch that has been
// idle since stalledBefore.
func NewResumeJob(userID string, campaignID int64, stalledBefore time.Time) CampaignJob {
	job := NewCampaignJob(userID, campaignID, "recovery")
	at := stalledBefore.UTC()
	job.StalledBefore = &at
	return job
}

func (j CampaignJob) Validate() error {
	if j.UserID == "" || j.CampaignID <= 0 {
		return fmt.Errorf("invalid campaign job %q: user and campaign id are required", j.JobID)
	}
	return nil
}

func decodeJob(body []byte) (CampaignJob, error) {
	var job CampaignJob
	if err := json.Unmarshal(body, &job); err != nil {
		return CampaignJob{}, fmt.Errorf("failed to unmarshal campaign job: %w", err)
	}
	return job, job.Validate()
}

// Handler processes one job.
type Handler func(ctx context.Context, job CampaignJob) error

// Enqueuer hands jobs to whatever runs them.
type Enqueuer interface {
	Enqueue(ctx context.Context, job CampaignJob) error
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a handler error that retrying cannot fix.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
