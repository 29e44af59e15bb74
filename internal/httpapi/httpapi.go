// Package httpapi is the REST binding over the same kv.Engine interface
// the TCP dispatcher serves. It adds no semantics of its own: batch
// endpoints issue one engine call per item.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/4lexvav/logkv/internal/logging"
	"github.com/4lexvav/logkv/pkg/kv"
)

// Server exposes engine operations over HTTP with JSON bodies.
type Server struct {
	engine kv.Engine
}

func NewServer(engine kv.Engine) *Server {
	return &Server{engine: engine}
}

// RegisterRoutes registers all HTTP handlers on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/keys/{key}", s.handleGet)
	mux.HandleFunc("PUT /api/keys/{key}", s.handleSet)
	mux.HandleFunc("DELETE /api/keys/{key}", s.handleRemove)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("POST /api/batch/set", s.handleBatchSet)
	mux.HandleFunc("POST /api/batch/get", s.handleBatchGet)
	mux.HandleFunc("GET /healthz", s.handleHealth)
}

type getResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type setRequest struct {
	Value string `json:"value"`
}

type batchSetRequest struct {
	Items []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"items"`
}

type batchGetRequest struct {
	Keys []string `json:"keys"`
}

type batchGetItem struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
	Found bool   `json:"found"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	value, found, err := s.engine.Get(key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "key not found"})
		return
	}

	writeJSON(w, http.StatusOK, getResponse{Key: key, Value: value})
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var req setRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	if err := s.engine.Set(key, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	if err := s.engine.Remove(key); err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "key not found"})
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Reset(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBatchSet(w http.ResponseWriter, r *http.Request) {
	var req batchSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	for _, item := range req.Items {
		if err := s.engine.Set(item.Key, item.Value); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBatchGet(w http.ResponseWriter, r *http.Request) {
	var req batchGetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	items := make([]batchGetItem, 0, len(req.Keys))
	for _, key := range req.Keys {
		value, found, err := s.engine.Get(key)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		items = append(items, batchGetItem{Key: key, Value: value, Found: found})
	}

	writeJSON(w, http.StatusOK, map[string][]batchGetItem{"items": items})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
