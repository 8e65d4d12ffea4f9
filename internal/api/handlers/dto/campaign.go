package dto

import (
	"time"
)

type CampaignRequest struct {
	Name            string     `json:"name"`
	MessageTemplate string     `json:"message_template"`
	Signature       string     `json:"signature"`
	Type            string     `json:"type"`
	ContactIDs      []int64    `json:"contact_ids"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
}

// CampaignResponse flattens the campaign and adds template warnings.
type CampaignResponse struct {
	Campaign            any      `json:"campaign"`
	UnknownPlaceholders []string `json:"unknown_placeholders,omitempty"`
}

type QueuedResponse struct {
	Status     string `json:"status"`
	JobID      string `json:"job_id"`
	CampaignID int64  `json:"campaign_id"`
}

type BalanceResponse struct {
	UserID  string `json:"user_id"`
	Credits int64  `json:"credits"`
}
