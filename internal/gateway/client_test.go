package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thrillee/bulksms/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(config.GatewayConfig{
		BaseURL:          srv.URL,
		Token:            "tok",
		PrivateKey:       "secret",
		Subject:          "bulk",
		Timeout:          200 * time.Millisecond,
		FailureThreshold: 2,
		BreakerCooldown:  time.Minute,
	}, nil)
	return c, srv
}

func TestSign(t *testing.T) {
	// hex(HMAC-SHA1("key", "The quick brown fox jumps over the lazy dog"))
	got := Sign([]byte("key"), "The quick ", "brown fox ", "jumps over ", "the lazy ", "dog", "")
	assert.Equal(t, "de7c9b85b8b78aa6bc8a7a36f70a90701c9db4d9", got)
}

func TestSend_SignsAndParsesSuccess(t *testing.T) {
	var form url.Values
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"messageId": "gw-1", "cost": 25, "status": "accepted"})
	})

	ts := time.Unix(1700000000, 0)
	resp, err := c.Send(context.Background(), Request{
		Signature: "SHOP",
		Recipient: "221771234567",
		Content:   "Hello",
		Timestamp: ts,
	})
	require.NoError(t, err)
	assert.Equal(t, "gw-1", resp.MessageID)
	assert.Equal(t, "25", resp.Cost.String())
	assert.Equal(t, "accepted", resp.Status)

	assert.Equal(t, "tok", form.Get("token"))
	assert.Equal(t, "bulk", form.Get("subject"))
	assert.Equal(t, "1700000000", form.Get("timestamp"))
	assert.Equal(t, Sign([]byte("secret"), "tok", "bulk", "SHOP", "221771234567", "Hello", "1700000000"), form.Get("key"))
}

func TestSend_CodedRejection(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind Kind
		code int
	}{
		{"invalid signature", `{"code": 101, "message": "bad key"}`, KindInvalidSignature, 101},
		{"string code", `{"code": "105"}`, KindEmptyContent, 105},
		{"unknown code", `{"code": 999, "message": "weird"}`, KindUnknown, 999},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Send(context.Background(), Request{Recipient: "221", Content: "x"})
			rej, ok := IsRejected(err)
			require.True(t, ok, "expected rejection, got %v", err)
			assert.Equal(t, tt.kind, rej.Kind)
			assert.Equal(t, tt.code, rej.Code)
			assert.NotEmpty(t, rej.Remediation)
			assert.False(t, IsUnreachable(err))
		})
	}
}

func TestSend_UnreachableOnTimeoutAnd5xx(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	})
	_, err := c.Send(context.Background(), Request{Recipient: "221", Content: "x"})
	assert.True(t, IsUnreachable(err))

	c, _ = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})
	_, err = c.Send(context.Background(), Request{Recipient: "221", Content: "x"})
	assert.True(t, IsUnreachable(err))
	_, rejected := IsRejected(err)
	assert.False(t, rejected)
}

func TestSend_ConnectionRefused(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()
	_, err := c.Send(context.Background(), Request{Recipient: "221", Content: "x"})
	assert.True(t, IsUnreachable(err))
}

func TestSend_BreakerOpensAfterTransportFailures(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 2; i++ {
		_, err := c.Send(context.Background(), Request{Recipient: "221", Content: "x"})
		assert.True(t, IsUnreachable(err))
	}
	assert.Equal(t, CircuitOpen, c.Breaker().State())

	_, err := c.Send(context.Background(), Request{Recipient: "221", Content: "x"})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), hits.Load())
}

func TestSend_CallerCancellationDoesNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-r.Context().Done()
	})

	for i := 0; i < 4; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := c.Send(ctx, Request{Recipient: "221", Content: "x"})
		cancel()
		assert.True(t, IsUnreachable(err))
	}
	assert.Equal(t, CircuitClosed, c.Breaker().State())
	assert.Positive(t, hits.Load())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Send(ctx, Request{Recipient: "221", Content: "x"})
	assert.True(t, IsUnreachable(err))
	assert.Equal(t, CircuitClosed, c.Breaker().State())
}

func TestCircuitBreaker_AbandonedProbeFreesSlot(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Second})
	cb.now = func() time.Time { return now }
	cb.RecordFailure()
	require.Equal(t, CircuitOpen, cb.State())

	now = now.Add(2 * time.Second)
	require.True(t, cb.AllowRequest())
	assert.False(t, cb.AllowRequest(), "one probe at a time")
	cb.RecordAbandoned()
	assert.Equal(t, CircuitHalfOpen, cb.State())
	assert.True(t, cb.AllowRequest(), "abandoned probe does not block the next one")
}

func TestSend_RejectionsDoNotTripBreaker(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code": 104}`))
	})
	for i := 0; i < 5; i++ {
		_, err := c.Send(context.Background(), Request{Recipient: "bad", Content: "x"})
		_, ok := IsRejected(err)
		assert.True(t, ok)
	}
	assert.Equal(t, CircuitClosed, c.Breaker().State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Second})
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.False(t, cb.AllowRequest())

	now = now.Add(2 * time.Second)
	assert.True(t, cb.AllowRequest())
	assert.False(t, cb.AllowRequest(), "only one probe while half-open")

	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestParseCallback(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/cb", strings.NewReader(`{"messageId":"X","status":"DELIVRD","deliveredAt":"2024-05-01T10:00:00Z"}`))
		req.Header.Set("Content-Type", "application/json")
		cb, err := ParseCallback(req)
		require.NoError(t, err)
		assert.Equal(t, "X", cb.MessageID)
		assert.Equal(t, StatusDelivered, cb.Status)
		require.NotNil(t, cb.DeliveredAt)
		assert.Equal(t, 2024, cb.DeliveredAt.Year())
	})

	t.Run("form with unix time", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/cb", strings.NewReader("message_id=Y&status=undelivered&delivered_at=1700000000"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		cb, err := ParseCallback(req)
		require.NoError(t, err)
		assert.Equal(t, "Y", cb.MessageID)
		assert.Equal(t, StatusFailed, cb.Status)
		assert.Equal(t, int64(1700000000), cb.DeliveredAt.Unix())
	})

	t.Run("missing id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/cb", strings.NewReader(`{"status":"delivered"}`))
		_, err := ParseCallback(req)
		assert.ErrorIs(t, err, ErrCallbackMissingMessageID)
	})

	t.Run("pending status", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/cb", strings.NewReader(`{"messageId":"Z","status":"pending"}`))
		cb, err := ParseCallback(req)
		require.NoError(t, err)
		assert.Equal(t, StatusSent, cb.Status)
		assert.Nil(t, cb.DeliveredAt)
	})
}
