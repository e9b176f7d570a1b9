package dispatch

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Chronic700/agent-connect/internal/domain"
)

// UserAgent is the fixed product token sent with every dispatch.
const UserAgent = "AgentConnectRelay/1.0"

// payload is the wire format defined in spec.md §4.3. Field order is
// fixed by the struct's field declaration order (the tags set the JSON
// names) so the same bytes are produced (and signed)
// on every retry of the same message.
type payload struct {
	MessageID      string          `json:"message_id"`
	FromAgentID    string          `json:"from_agent_id"`
	ToAgentID      string          `json:"to_agent_id"`
	MessageContent json.RawMessage `json:"message_content"`
	Timestamp      string          `json:"timestamp"`
}

// Dispatcher performs one HTTP delivery attempt against a recipient's
// webhook and classifies the result. It is pure with respect to the
// message store: it never mutates a Message, it only reports what
// happened.
type Dispatcher struct {
	httpClient *http.Client
}

// NewDispatcher builds a dispatcher whose HTTP attempts are bounded by
// the given total timeout (spec.md §6: http_timeout, default 30s).
func NewDispatcher(timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Dispatch builds the signed payload and performs a single HTTP POST to
// recipient.WebhookURL. It never returns an error for an HTTP-layer
// failure — those are reported as a Transient outcome — only for
// programmer errors (e.g. an unmarshalable message content, which
// should never happen since Content is already valid JSON).
func (d *Dispatcher) Dispatch(ctx context.Context, msg domain.Message, recipient domain.Agent) (Outcome, error) {
	body, err := json.Marshal(payload{
		MessageID:      msg.ID,
		FromAgentID:    msg.FromAgent,
		ToAgentID:      msg.ToAgent,
		MessageContent: msg.Content,
		Timestamp:      msg.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("marshaling webhook payload: %w", err)
	}

	signature := sign(body, recipient.Secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, recipient.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return Outcome{Kind: Transient, Reason: fmt.Sprintf("building request: %v", err)}, nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", "sha256="+signature)
	req.Header.Set("User-Agent", UserAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			// Shutdown mid-flight: an outcome is still returned, but
			// worker.OutcomeApplier.Apply checks ctx.Err() itself and
			// does not apply it, so the message stays untouched.
			return Outcome{Kind: Transient, Reason: "request canceled"}, nil
		}
		return Outcome{Kind: Transient, Reason: fmt.Sprintf("request failed: %v", err)}, nil
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Outcome{Kind: Success}, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return Outcome{Kind: Terminal, Reason: fmt.Sprintf("recipient rejected with %d", resp.StatusCode)}, nil
	default:
		return Outcome{Kind: Transient, Reason: fmt.Sprintf("recipient returned %d", resp.StatusCode)}, nil
	}
}

// sign computes the lowercase hex HMAC-SHA256 of body using secret as
// the key. It is unexported; Verify is the exported counterpart, so
// tests (and recipients such as cmd/mockagent) can check that
// verify(sign(payload, k), payload, k) == true.
func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks an X-Signature header value (without the "sha256="
// prefix) against body and secret using constant-time comparison.
func Verify(body []byte, signatureHex string, secret string) bool {
	expected := sign(body, secret)
	return hmac.Equal([]byte(expected), []byte(signatureHex))
}
