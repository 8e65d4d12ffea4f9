package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
	StatusUnknown   = "unknown"
)

var ErrCallbackMissingMessageID = errors.New("callback has no message id")

// Callback is a normalised delivery report.
type Callback struct {
	MessageID   string
	Status      string // sent, delivered, failed or unknown
	RawStatus   string
	DeliveredAt *time.Time
}

type callbackPayload struct {
	MessageID   string `json:"messageId"`
	MessageID2  string `json:"message_id"`
	Status      string `json:"status"`
	DeliveredAt string `json:"deliveredAt"`
	Delivered2  string `json:"delivered_at"`
}

// ParseCallback decodes a delivery webhook sent as JSON or as a form.
func ParseCallback(req *http.Request) (*Callback, error) {
	body, err := io.ReadAll(io.LimitReader(req.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read callback body: %w", err)
	}

	var p callbackPayload
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("failed to decode callback form: %w", err)
		}
		p = callbackPayload{
			MessageID:   values.Get("messageId"),
			MessageID2:  values.Get("message_id"),
			Status:      values.Get("status"),
			DeliveredAt: values.Get("deliveredAt"),
			Delivered2:  values.Get("delivered_at"),
		}
	} else if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to decode callback: %w", err)
	}

	cb := &Callback{
		MessageID: firstNonEmpty(p.MessageID, p.MessageID2),
		RawStatus: p.Status,
		Status:    normalizeStatus(p.Status),
	}
	if cb.MessageID == "" {
		return nil, ErrCallbackMissingMessageID
	}
	if raw := firstNonEmpty(p.DeliveredAt, p.Delivered2); raw != "" {
		at, err := parseTime(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid deliveredAt %q: %w", raw, err)
		}
		cb.DeliveredAt = &at
	}
	return cb, nil
}

func normalizeStatus(rawStatus string) string {
	switch strings.ToLower(strings.TrimSpace(rawStatus)) {
	case "delivered", "delivrd", "success", "received":
		return StatusDelivered
	case "failed", "undelivered", "undeliv", "rejected", "rejectd", "expired", "error":
		return StatusFailed
	case "sent", "pending", "accepted", "submitted", "buffered", "queued":
		return StatusSent
	default:
		return StatusUnknown
	}
}

func parseTime(raw string) (time.Time, error) {
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
