// Package webhook provides an HTTP handler for Meta/Instagram webhook
// verification and event notification processing.
//
// Verification (GET):
//
//	Meta sends hub.mode, hub.verify_token, and hub.challenge as query
//	parameters. The handler validates the verify token and responds with
//	the challenge value.
//
// Event Notification (POST):
//
//	Meta sends a JSON payload signed with X-Hub-Signature (HMAC-SHA1 using
//	the App Secret) and, on newer apps, X-Hub-Signature-256 (HMAC-SHA256).
//	The handler validates the signature against the raw body, parses the
//	JSON, and retains the notification in memory.
//
// Reference: https://developers.facebook.com/docs/instagram-platform/webhooks
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/instagram-relay/internal/retention"
)

// maxBodySize is the maximum allowed request body size (1 MB).
// Meta batches up to 1000 updates per notification, which should stay well
// under this limit.
const maxBodySize = 1 << 20 // 1 MB

// Outcomes reported to an Observer.
const (
	OutcomeVerified          = "verified"
	OutcomeVerifyFailed      = "verify_failed"
	OutcomeAccepted          = "accepted"
	OutcomeRejectedSignature = "rejected_signature"
	OutcomeRejectedMalformed = "rejected_malformed"
	OutcomeRejectedTooLarge  = "rejected_too_large"
)

// Retainer stores accepted notifications. *retention.Ring satisfies it.
type Retainer interface {
	Add(u retention.Update)
}

// Publisher forwards accepted notifications to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, u retention.Update) error
}

// Observer is notified of the outcome of every webhook request.
type Observer interface {
	ObserveWebhook(outcome string)
}

// Handler handles Meta webhook verification and event notifications.
type Handler struct {
	verifyToken string
	appSecret   []byte
	retainer    Retainer
	publisher   Publisher
	observer    Observer
	now         func() time.Time
}

// Option configures optional Handler collaborators.
type Option func(*Handler)

// WithPublisher forwards every accepted notification to p.
func WithPublisher(p Publisher) Option {
	return func(h *Handler) { h.publisher = p }
}

// WithObserver reports request outcomes to o.
func WithObserver(o Observer) Option {
	return func(h *Handler) { h.observer = o }
}

// NewHandler creates a webhook handler.
//
// verifyToken is a user-chosen string that must match the Verify Token
// configured in the Meta App Dashboard.
//
// appSecret is the Instagram App Secret from the Meta Developer Dashboard,
// used to validate the X-Hub-Signature headers on POST event notifications.
// An empty secret rejects every notification.
//
// retainer receives each accepted notification.
func NewHandler(verifyToken, appSecret string, retainer Retainer, opts ...Option) *Handler {
	h := &Handler{
		verifyToken: verifyToken,
		appSecret:   []byte(appSecret),
		retainer:    retainer,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP dispatches to verification (GET) or event handling (POST).
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleVerification(w, r)
	case http.MethodPost:
		h.handleEvent(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleVerification processes the Meta webhook verification handshake.
//
// Meta sends:
//
//	GET /instagram?hub.mode=subscribe&hub.verify_token=<token>&hub.challenge=<challenge>
//
// The handler must respond with the hub.challenge value if the verify token
// matches, or 400 if anything is off.
//
// The token is compared with plain equality. It is static configuration
// echoed by Meta, not a value derived from request content.
func (h *Handler) handleVerification(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "" || challenge == "" {
		log.Warn().
			Str("mode", mode).
			Str("challenge", challenge).
			Msg("Webhook verification missing required parameters")
		h.observe(OutcomeVerifyFailed)
		http.Error(w, "verification failed: missing required parameters", http.StatusBadRequest)
		return
	}

	if mode != "subscribe" {
		log.Warn().Str("mode", mode).Msg("Webhook verification unexpected mode")
		h.observe(OutcomeVerifyFailed)
		http.Error(w, "verification failed: invalid mode", http.StatusBadRequest)
		return
	}

	if h.verifyToken == "" || token != h.verifyToken {
		log.Warn().Bool("configured", h.verifyToken != "").Msg("Webhook verification failed: invalid verify token")
		h.observe(OutcomeVerifyFailed)
		http.Error(w, "verification failed: invalid verify token", http.StatusBadRequest)
		return
	}

	log.Info().Msg("Webhook verification successful")
	h.observe(OutcomeVerified)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// handleEvent processes incoming Meta webhook event notifications.
//
// Meta sends a POST with:
//   - JSON body containing event data
//   - X-Hub-Signature header: "sha1=<hex-encoded HMAC-SHA1>"
//   - optionally X-Hub-Signature-256: "sha256=<hex-encoded HMAC-SHA256>"
//
// The signature is checked on the raw bytes before any parsing.
func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	// Read one byte past the limit so oversized bodies are detected rather
	// than silently truncated.
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		log.Error().Err(err).Msg("Webhook event: failed to read body")
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if len(body) > maxBodySize {
		log.Warn().Int("limit", maxBodySize).Msg("Webhook event: body too large")
		h.observe(OutcomeRejectedTooLarge)
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	algo, ok := VerifyRequest(h.appSecret, body, r.Header)
	if !ok {
		log.Warn().
			Str("algorithm", string(algo)).
			Bool("secretConfigured", len(h.appSecret) > 0).
			Int("bodySize", len(body)).
			Msg("Webhook event: invalid signature")
		h.observe(OutcomeRejectedSignature)
		http.Error(w, "invalid X-Hub signature", http.StatusForbidden)
		return
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		log.Warn().Err(err).Int("bodySize", len(body)).Msg("Webhook event: malformed JSON body")
		h.observe(OutcomeRejectedMalformed)
		http.Error(w, "malformed JSON body", http.StatusBadRequest)
		return
	}

	update := retention.Update{
		ID:         uuid.NewString(),
		ReceivedAt: h.now().UTC(),
		Algorithm:  string(algo),
		Payload:    json.RawMessage(body),
	}
	if h.retainer != nil {
		h.retainer.Add(update)
	}

	// Using RawJSON avoids re-serialization overhead.
	log.Info().
		Str("updateId", update.ID).
		Str("algorithm", update.Algorithm).
		RawJSON("payload", body).
		Int("bodySize", len(body)).
		Msg("Webhook event received")

	if h.publisher != nil {
		if err := h.publisher.Publish(r.Context(), update); err != nil {
			// Best effort: the update is already retained and still gets a 200.
			log.Error().Err(err).Str("updateId", update.ID).Msg("Webhook event: publish failed")
		}
	}

	h.observe(OutcomeAccepted)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) observe(outcome string) {
	if h.observer != nil {
		h.observer.ObserveWebhook(outcome)
	}
}
