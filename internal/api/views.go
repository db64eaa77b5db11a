package api

import (
	"embed"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MikeSquared-Agency/contextbridge/internal/extractor"
	"github.com/MikeSquared-Agency/contextbridge/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	msgNeedKey        = "Please enter API Key in sidebar."
	msgNeedTranscript = "Please paste a transcript."
	msgExtracted      = "Extraction Complete! Switch to 'Manager' view to review."
	msgNoData         = "No data found. Please go to 'Sales Rep' mode and analyze a transcript first."
	msgPublished      = "Handover published."
	msgNoPublishing   = "Handover publishing is not configured."
)

type card struct {
	Title string
	Class string
	Body  string
}

type page struct {
	View          string
	Authenticated bool
	Managed       bool
	Account       string
	Transcript    string
	Error         string
	Notice        string
	HasData       bool
	Cards         []card
	RecordJSON    string
	Publishing    bool
}

func (s *Server) newPage(r *http.Request, sess *store.Session, view string) page {
	p := page{
		View:          view,
		Authenticated: sess.Resolver.Authenticated(r.Context()),
		Managed:       sess.Resolver.Managed(r.Context()),
		Account:       s.opts.Account,
		Publishing:    s.publisher != nil,
	}
	snap, ok := sess.Results.Get()
	if !ok {
		return p
	}
	p.HasData = true
	p.Account = snap.Account
	p.Cards = managerCards(snap.Record)
	if raw, err := json.MarshalIndent(snap.Record, "", "  "); err == nil {
		p.RecordJSON = string(raw)
	}
	return p
}

func managerCards(rec extractor.Record) []card {
	return []card{
		{Title: "Client Goals", Class: "card", Body: rec.Goals.String()},
		{Title: "Commitments Made", Class: "success-box", Body: rec.Commitments.String()},
		{Title: "Identified Risks", Class: "warning-box", Body: rec.Risks.String()},
		{Title: "Tech Stack", Class: "card", Body: rec.TechStack.String()},
	}
}

func (s *Server) render(w http.ResponseWriter, code int, p page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := s.pages.ExecuteTemplate(w, "dashboard.html", p); err != nil {
		s.logger.Error("render page", "view", p.View, "error", err)
	}
}

func (s *Server) showPage(view string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		sess.Lock()
		p := s.newPage(r, sess, view)
		sess.Unlock()
		s.render(w, http.StatusOK, p)
	}
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	text := r.FormValue("transcript")

	_, err := s.extract(r.Context(), sess, text, "")

	sess.Lock()
	p := s.newPage(r, sess, "sales")
	sess.Unlock()
	p.Transcript = text

	code := http.StatusOK
	switch {
	case err == nil:
		p.Notice = msgExtracted
	case errors.Is(err, errNoCredential):
		p.Error, code = msgNeedKey, http.StatusUnauthorized
	case errors.Is(err, extractor.ErrInvalidInput):
		p.Error, code = msgNeedTranscript, http.StatusBadRequest
	default:
		p.Error, code = "Error: "+err.Error(), statusFor(err)
	}
	s.render(w, code, p)
}

func (s *Server) approvePage(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	_, err := s.approve(sess)

	sess.Lock()
	p := s.newPage(r, sess, "manager")
	sess.Unlock()

	code := http.StatusOK
	switch {
	case err == nil:
		p.Notice = msgPublished
	case errors.Is(err, errPublishingDisabled):
		p.Error, code = msgNoPublishing, http.StatusServiceUnavailable
	case errors.Is(err, errNoHandover):
		p.Error, code = msgNoData, http.StatusNotFound
	default:
		p.Error, code = "Error: "+err.Error(), http.StatusBadGateway
	}
	s.render(w, code, p)
}

func (s *Server) supplyKey(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.Lock()
	_, err := sess.Resolver.Supply(r.FormValue("api_key"))
	sess.Unlock()
	if err != nil {
		sess.Lock()
		p := s.newPage(r, sess, "sales")
		sess.Unlock()
		p.Error = msgNeedKey
		s.render(w, http.StatusBadRequest, p)
		return
	}
	http.Redirect(w, r, backTo(r), http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.Lock()
	sess.Resolver.Clear()
	sess.Unlock()
	http.Redirect(w, r, backTo(r), http.StatusSeeOther)
}

// backTo returns the view a sidebar form was posted from.
func backTo(r *http.Request) string {
	switch v := r.FormValue("view"); v {
	case "manager", "cs":
		return "/" + v
	}
	return "/sales"
}
