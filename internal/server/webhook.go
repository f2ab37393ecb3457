package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Webhook-Signature"

// Webhook events.
const (
	EventFlagCreated = "flag.created"
	EventFlagUpdated = "flag.updated"
	EventFlagDeleted = "flag.deleted"
)

// WebhookPayload is the change notification sent by the flag service.
type WebhookPayload struct {
	Event     string   `json:"event"`
	FlagKeys  []string `json:"flag_keys"`
	Timestamp string   `json:"timestamp"`
}

// Webhook applies change notifications to a scope. Created and updated
// flags are re-fetched one by one; deleted flags only drop the SDK cache
// entry because the store never removes records.
type Webhook struct {
	scope  Scope
	secret string
	logger *slog.Logger
}

// NewWebhook creates a webhook handler. An empty secret disables
// signature verification.
func NewWebhook(scope Scope, secret string, logger *slog.Logger) *Webhook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Webhook{scope: scope, secret: secret, logger: logger}
}

type webhookResponse struct {
	Status    string            `json:"status"`
	Refreshed []string          `json:"refreshed,omitempty"`
	Failed    map[string]string `json:"failed,omitempty"`
}

func (wh *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	if wh.secret != "" && !wh.verifySignature(r.Header.Get(SignatureHeader), body) {
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	resp := webhookResponse{Status: "ok"}
	switch payload.Event {
	case EventFlagCreated, EventFlagUpdated:
		for _, key := range payload.FlagKeys {
			wh.scope.Invalidate(key)
			if _, err := wh.scope.RefreshFlag(r.Context(), key); err != nil {
				if resp.Failed == nil {
					resp.Failed = make(map[string]string)
				}
				resp.Failed[key] = err.Error()
				wh.logger.WarnContext(r.Context(), "webhook flag refresh failed",
					slog.String("flag", key),
					slog.Any("error", err))
				continue
			}
			resp.Refreshed = append(resp.Refreshed, key)
		}
	case EventFlagDeleted:
		for _, key := range payload.FlagKeys {
			wh.scope.Invalidate(key)
		}
	default:
		http.Error(w, "Unknown event", http.StatusBadRequest)
		return
	}

	wh.logger.DebugContext(r.Context(), "webhook applied",
		slog.String("event", payload.Event),
		slog.Int("flags", len(payload.FlagKeys)))

	status := http.StatusOK
	if len(resp.Failed) > 0 {
		resp.Status = "partial"
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}

func (wh *Webhook) verifySignature(signature string, body []byte) bool {
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(wh.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}
