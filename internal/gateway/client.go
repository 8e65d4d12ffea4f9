// Package gateway is the client for the external SMS relay.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thrillee/bulksms/internal/config"
	"github.com/thrillee/bulksms/internal/logging"
	"github.com/thrillee/bulksms/internal/metrics"
)

const maxResponseBody = 64 << 10

// Request is one outbound message. Empty Token or Subject fall back to the
// client's configured values; a zero Timestamp is set to now.
type Request struct {
	Token     string
	Subject   string
	Signature string
	Recipient string
	Content   string
	Timestamp time.Time
}

// Response is an accepted send.
type Response struct {
	MessageID string
	Cost      decimal.Decimal
	Status    string
	Raw       string
}

// Sender is implemented by Client and by test doubles.
type Sender interface {
	Send(ctx context.Context, req Request) (*Response, error)
}

// Compile-time check
var _ Sender = (*Client)(nil)

type Client struct {
	client     *http.Client
	baseURL    string
	token      string
	privateKey []byte
	subject    string
	breaker    *CircuitBreaker
	metrics    *metrics.Metrics
}

func NewClient(cfg config.GatewayConfig, m *metrics.Metrics) *Client {
	return &Client{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		privateKey: []byte(cfg.PrivateKey),
		subject:    cfg.Subject,
		breaker: NewCircuitBreaker(CircuitBreakerConfig{
			FailureThreshold: cfg.FailureThreshold,
			Cooldown:         cfg.BreakerCooldown,
		}),
		metrics: m,
	}
}

// Breaker exposes the circuit breaker for health reporting.
func (c *Client) Breaker() *CircuitBreaker { return c.breaker }

type sendResponse struct {
	MessageID string           `json:"messageId"`
	Cost      *decimal.Decimal `json:"cost"`
	Status    string           `json:"status"`
	Code      json.Number      `json:"code"`
	Message   string           `json:"message"`
}

// Sign computes the request key: hex HMAC-SHA1 over the concatenated fields.
func Sign(privateKey []byte, token, subject, signature, recipient, content, timestamp string) string {
	mac := hmac.New(sha1.New, privateKey)
	mac.Write([]byte(token + subject + signature + recipient + content + timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

// recordTransportFailure counts a failed round trip against the breaker
// unless the caller's context ended it, which says nothing about the gateway.
func (c *Client) recordTransportFailure(ctx context.Context) {
	if ctx.Err() != nil {
		c.breaker.RecordAbandoned()
		return
	}
	c.breaker.RecordFailure()
}

// Send posts one signed message. It returns *RejectedError for coded gateway
// errors and *UnreachableError for transport failures.
func (c *Client) Send(ctx context.Context, r Request) (resp *Response, err error) {
	logCtx := logging.ContextWithRecipient(ctx, r.Recipient)
	started := time.Now()
	defer func() {
		result := "ok"
		switch {
		case IsUnreachable(err):
			result = "unreachable"
		case err != nil:
			result = "rejected"
		}
		c.metrics.GatewayCall(result, time.Since(started))
	}()

	if r.Token == "" {
		r.Token = c.token
	}
	if r.Subject == "" {
		r.Subject = c.subject
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	ts := strconv.FormatInt(r.Timestamp.Unix(), 10)

	form := url.Values{}
	form.Set("token", r.Token)
	form.Set("subject", r.Subject)
	form.Set("signature", r.Signature)
	form.Set("recipient", r.Recipient)
	form.Set("content", r.Content)
	form.Set("timestamp", ts)
	form.Set("key", Sign(c.privateKey, r.Token, r.Subject, r.Signature, r.Recipient, r.Content, ts))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sms/send", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	if !c.breaker.AllowRequest() {
		slog.WarnContext(logCtx, "Gateway circuit open, failing fast")
		return nil, &UnreachableError{Cause: ErrCircuitOpen}
	}

	httpResp, err := c.client.Do(req)
	if err != nil {
		c.recordTransportFailure(ctx)
		slog.WarnContext(logCtx, "Gateway request failed", slog.Any("error", err))
		return nil, &UnreachableError{Cause: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		c.recordTransportFailure(ctx)
		return nil, &UnreachableError{Cause: fmt.Errorf("failed to read response: %w", err)}
	}
	raw := string(body)

	var parsed sendResponse
	decodeErr := json.Unmarshal(body, &parsed)
	code, hasCode := parseCode(parsed.Code)

	if hasCode {
		c.breaker.RecordSuccess()
		rej := rejection(code, parsed.Message, raw)
		slog.InfoContext(logCtx, "Gateway rejected message",
			slog.Int("code", code),
			slog.String("kind", string(rej.Kind)),
			slog.String("gateway_message", parsed.Message),
		)
		return nil, rej
	}

	if httpResp.StatusCode >= http.StatusInternalServerError {
		c.breaker.RecordFailure()
		return nil, &UnreachableError{Cause: fmt.Errorf("gateway returned status %d: %s", httpResp.StatusCode, truncate(raw, 200))}
	}
	c.breaker.RecordSuccess()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &RejectedError{
			Code:        httpResp.StatusCode,
			Kind:        KindUnknown,
			Message:     fmt.Sprintf("gateway returned status %d", httpResp.StatusCode),
			Remediation: "Inspect the raw gateway response",
			Raw:         raw,
		}
	}
	if decodeErr != nil {
		return nil, &RejectedError{
			Code:        httpResp.StatusCode,
			Kind:        KindUnknown,
			Message:     "unparseable gateway response",
			Remediation: "Inspect the raw gateway response",
			Raw:         raw,
		}
	}

	resp = &Response{
		MessageID: parsed.MessageID,
		Status:    parsed.Status,
		Raw:       raw,
	}
	if parsed.Cost != nil {
		resp.Cost = *parsed.Cost
	}
	slog.DebugContext(logCtx, "Gateway accepted message", slog.String("gateway_message_id", resp.MessageID))
	return resp, nil
}

// parseCode accepts numeric codes; zero and 200 mean success.
func parseCode(n json.Number) (int, bool) {
	if n == "" {
		return 0, false
	}
	code, err := strconv.Atoi(n.String())
	if err != nil || code == 0 || code == http.StatusOK {
		return 0, false
	}
	return code, true
}

func rejection(code int, gatewayMessage, raw string) *RejectedError {
	info := LookupCode(code)
	msg := info.Message
	if info.Kind == KindUnknown && gatewayMessage != "" {
		msg = gatewayMessage
	}
	return &RejectedError{
		Code:        code,
		Kind:        info.Kind,
		Message:     msg,
		Remediation: info.Remediation,
		Raw:         raw,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Diagnostic renders an error for the record's diagnostic column.
func Diagnostic(err error) string {
	if rej, ok := IsRejected(err); ok {
		return fmt.Sprintf("%s (%s)", rej.Message, rej.Remediation)
	}
	var unreachable *UnreachableError
	if errors.As(err, &unreachable) {
		return unreachable.Error()
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
