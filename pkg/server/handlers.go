package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/goliatone/go-formengine/pkg/runtime"
)

const maxBodyBytes = 1 << 20

type formSummary struct {
	FormID string `json:"formId"`
	Title  string `json:"title,omitempty"`
}

type openRequest struct {
	Values map[string]any `json:"values"`
}

type valueRequest struct {
	Value any `json:"value"`
}

type sessionResponse struct {
	ID    string        `json:"id"`
	State runtime.State `json:"state"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) listForms(w http.ResponseWriter, _ *http.Request) {
	ids := s.store.IDs()
	out := make([]formSummary, 0, len(ids))
	for _, id := range ids {
		form, ok := s.store.Get(id)
		if !ok {
			continue
		}
		summary := formSummary{FormID: id}
		if title, ok := form.Metadata["title"].(string); ok {
			summary.Title = title
		}
		out = append(out, summary)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) getForm(w http.ResponseWriter, r *http.Request) {
	form, ok := s.store.Get(chi.URLParam(r, "formID"))
	if !ok {
		writeError(w, http.StatusNotFound, ErrUnknownForm)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (s *Server) openSession(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	in, err := s.Open(chi.URLParam(r, "formID"), req.Values)
	if err != nil {
		if errors.Is(err, ErrUnknownForm) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		s.logger.Error().Err(err).Msg("server: open session")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{ID: in.ID(), State: s.settle(r.Context(), in)})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	in, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := in.Sync(r.Context()); err != nil {
		writeError(w, http.StatusGone, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: in.ID(), State: in.State()})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.CloseSession(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setValue(w http.ResponseWriter, r *http.Request) {
	in, ok := s.session(w, r)
	if !ok {
		return
	}
	var req valueRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := in.SetValue(chi.URLParam(r, "field"), req.Value); err != nil {
		writeRuntimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: in.ID(), State: s.settle(r.Context(), in)})
}

func (s *Server) refreshLookup(w http.ResponseWriter, r *http.Request) {
	in, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := in.RefreshLookup(chi.URLParam(r, "field")); err != nil {
		writeRuntimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: in.ID(), State: s.settle(r.Context(), in)})
}

func (s *Server) revalidate(w http.ResponseWriter, r *http.Request) {
	in, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := in.Revalidate(); err != nil {
		writeRuntimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: in.ID(), State: s.settle(r.Context(), in)})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	in, ok := s.session(w, r)
	if !ok {
		return
	}
	result, err := in.Submit(r.Context())
	if err != nil {
		writeRuntimeError(w, err)
		return
	}
	status := http.StatusOK
	if !result.OK {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*runtime.Instance, bool) {
	in, ok := s.Session(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, ErrUnknownSession)
		return nil, false
	}
	return in, true
}

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeRuntimeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, runtime.ErrUnknownField):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, runtime.ErrClosed):
		writeError(w, http.StatusGone, err)
	default:
		writeError(w, http.StatusBadRequest, err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
