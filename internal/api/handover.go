package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/contextbridge/internal/credential"
	"github.com/MikeSquared-Agency/contextbridge/internal/extractor"
	"github.com/MikeSquared-Agency/contextbridge/internal/hermes"
	"github.com/MikeSquared-Agency/contextbridge/internal/store"
)

var (
	errBadRequest         = errors.New("bad request")
	errNoCredential       = errors.New("no API key available")
	errNoHandover         = errors.New("no handover data found")
	errPublishingDisabled = errors.New("handover publishing is not configured")
)

// extract runs one extraction for the session. The session lock is held for
// the whole call so a session never has two extractions in flight.
func (s *Server) extract(ctx context.Context, sess *store.Session, text, account string) (extractor.Outcome, error) {
	sess.Lock()
	defer sess.Unlock()

	cred, ok := sess.Resolver.Resolve(ctx)
	if !ok {
		return extractor.Outcome{}, errNoCredential
	}
	if account == "" {
		account = s.opts.Account
	}

	start := time.Now()
	out := s.extractor.Extract(ctx, text, cred)
	if out.Err != nil {
		s.logger.Warn("extraction failed", "session_id", sess.ID, "error", out.Err)
		return out, out.Err
	}
	sess.Results.Apply(account, out)
	s.logger.Info("handover extracted",
		"session_id", sess.ID,
		"model", out.ModelUsed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (s *Server) approve(sess *store.Session) (hermes.HandoverEvent, error) {
	sess.Lock()
	defer sess.Unlock()

	if s.publisher == nil {
		return hermes.HandoverEvent{}, errPublishingDisabled
	}
	snap, ok := sess.Results.Get()
	if !ok {
		return hermes.HandoverEvent{}, errNoHandover
	}
	evt := hermes.NewHandoverEvent(sess.ID, snap.Account, snap.ModelUsed, snap.Record, snap.ExtractedAt)
	if err := s.publisher.Publish(s.opts.HandoverSubject, evt); err != nil {
		return hermes.HandoverEvent{}, fmt.Errorf("publish handover: %w", err)
	}
	s.logger.Info("handover published", "session_id", sess.ID, "handover_id", evt.HandoverID, "subject", s.opts.HandoverSubject)
	return evt, nil
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			body := map[string]any{"error": err.Error()}
			var exhausted *extractor.ExhaustedError
			if errors.As(err, &exhausted) {
				body["failures"] = exhausted.Failures
			}
			code := statusFor(err)
			if code >= http.StatusInternalServerError && code != http.StatusBadGateway && code != http.StatusServiceUnavailable {
				s.logger.Error("request failed", "path", r.URL.Path, "error", err)
			}
			writeJSON(w, code, body)
		}
	}
}

func statusFor(err error) int {
	var exhausted *extractor.ExhaustedError
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, extractor.ErrInvalidInput), errors.Is(err, credential.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, errNoCredential):
		return http.StatusUnauthorized
	case errors.Is(err, errNoHandover):
		return http.StatusNotFound
	case errors.As(err, &exhausted):
		return http.StatusBadGateway
	case errors.Is(err, errPublishingDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

type extractRequest struct {
	Text    string `json:"text"`
	Account string `json:"account,omitempty"`
	APIKey  string `json:"api_key,omitempty"`
}

type extractResponse struct {
	Record    extractor.Record             `json:"record"`
	ModelUsed string                       `json:"model_used"`
	Failures  []extractor.CandidateFailure `json:"failures,omitempty"`
}

// POST /api/v1/extract
// Body: {"text": "...", "account": "...", "api_key": "..."}
// A non-empty api_key is stored as the session's manual credential first.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) error {
	var req extractRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	sess := sessionFrom(r)
	if strings.TrimSpace(req.APIKey) != "" {
		sess.Lock()
		_, err := sess.Resolver.Supply(req.APIKey)
		sess.Unlock()
		if err != nil {
			return err
		}
	}

	out, err := s.extract(r.Context(), sess, req.Text, req.Account)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, extractResponse{
		Record:    out.Record,
		ModelUsed: out.ModelUsed,
		Failures:  out.Failures,
	})
	return nil
}

// GET /api/v1/handover
func (s *Server) handleGetHandover(w http.ResponseWriter, r *http.Request) error {
	sess := sessionFrom(r)
	sess.Lock()
	snap, ok := sess.Results.Get()
	sess.Unlock()
	if !ok {
		return errNoHandover
	}
	writeJSON(w, http.StatusOK, snap)
	return nil
}

// POST /api/v1/handover/approve
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) error {
	evt, err := s.approve(sessionFrom(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusAccepted, evt)
	return nil
}

type credentialStatus struct {
	Authenticated bool `json:"authenticated"`
	Managed       bool `json:"managed"`
}

func credentialStatusOf(ctx context.Context, sess *store.Session) credentialStatus {
	return credentialStatus{
		Authenticated: sess.Resolver.Authenticated(ctx),
		Managed:       sess.Resolver.Managed(ctx),
	}
}

// GET /api/v1/credential
func (s *Server) handleCredentialStatus(w http.ResponseWriter, r *http.Request) error {
	sess := sessionFrom(r)
	sess.Lock()
	defer sess.Unlock()
	writeJSON(w, http.StatusOK, credentialStatusOf(r.Context(), sess))
	return nil
}

// POST /api/v1/credential
// Body: {"api_key": "..."}
func (s *Server) handleSupplyCredential(w http.ResponseWriter, r *http.Request) error {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	sess := sessionFrom(r)
	sess.Lock()
	defer sess.Unlock()
	if _, err := sess.Resolver.Supply(req.APIKey); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, credentialStatusOf(r.Context(), sess))
	return nil
}

// DELETE /api/v1/credential
func (s *Server) handleClearCredential(w http.ResponseWriter, r *http.Request) error {
	sess := sessionFrom(r)
	sess.Lock()
	defer sess.Unlock()
	sess.Resolver.Clear()
	writeJSON(w, http.StatusOK, credentialStatusOf(r.Context(), sess))
	return nil
}
