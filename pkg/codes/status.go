package codes

// Campaign Status Codes
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusSent      = "sent"
	CampaignStatusFailed    = "failed"
)

// Campaign Types
const (
	CampaignTypeMarketing     = "marketing"
	CampaignTypeTransactional = "transactional"
	CampaignTypeAcademic      = "academic"
)

// Dispatch Record Status Codes
const (
	MsgStatusSent      = "sent"
	MsgStatusDelivered = "delivered"
	MsgStatusFailed    = "failed"
)

// Ledger Entry Kinds
const (
	EntryReserve = "reserve"
	EntryCommit  = "commit"
	EntryRelease = "release"
	EntryTopUp   = "topup"
)

// Reservation States
const (
	ReservationHeld      = "held"
	ReservationCommitted = "committed"
	ReservationReleased  = "released"
)

// Payment Providers
const (
	ProviderWave        = "wave"
	ProviderOrangeMoney = "orange_money"
)

// IsDispatchable reports whether a campaign in status may start a send.
func IsDispatchable(status string) bool {
	return status == CampaignStatusDraft || status == CampaignStatusScheduled
}

// IsTerminalMsgStatus reports whether a record status accepts no more transitions.
func IsTerminalMsgStatus(status string) bool {
	return status == MsgStatusDelivered || status == MsgStatusFailed
}
