package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"github.com/couchcryptid/accident-dashboard/internal/domain"
	"github.com/couchcryptid/accident-dashboard/internal/presentation"
	"github.com/couchcryptid/accident-dashboard/internal/session"
)

const maxBodyBytes = 64 << 10

var validate = validator.New()

type createResponse struct {
	ID   string            `json:"id"`
	View presentation.View `json:"view"`
}

type eventsRequest struct {
	Events []domain.Event `json:"events" validate:"required,min=1,max=16,dive"`
}

type clickRequest struct {
	Chart string `json:"chart" validate:"required,max=32"`
	Index int    `json:"index"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCreate(w http.ResponseWriter, _ *http.Request) {
	sess := s.sessions.Create()
	w.Header().Set("Location", "/api/sessions/"+sess.ID())
	writeJSON(w, http.StatusCreated, createResponse{ID: sess.ID(), View: s.render(sess.Snapshot())})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.render(sess.Snapshot()))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req eventsRequest
	if !decode(w, r, &req) {
		return
	}

	snap, err := sess.Dispatch(req.Events...)
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.render(snap))
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req clickRequest
	if !decode(w, r, &req) {
		return
	}

	snap := sess.Snapshot()
	event, ok := s.binding.Click(snap.State, req.Chart, req.Index)
	if !ok {
		writeJSON(w, http.StatusOK, s.render(snap))
		return
	}

	snap, err := sess.Dispatch(event)
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.render(snap))
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

func (s *Server) render(snap session.Snapshot) presentation.View {
	v := s.binding.View(snap.State)
	v.SessionID = snap.ID
	v.Version = snap.Version
	v.Notice = snap.Notice
	// A failed first query leaves no data; the notice replaces the spinner.
	if v.Notice != nil && snap.State.Data == nil {
		v.Loading = false
	}
	return v
}

func (s *Server) writeDispatchError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrInvariantViolation) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.logger.Error("dispatch failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// decode reads and validates a JSON body, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
