package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hyperjump/careervec/internal/extract"
	"github.com/hyperjump/careervec/internal/models"
	"github.com/hyperjump/careervec/internal/store"
	"go.uber.org/zap"
)

var errIngestDisabled = errors.New("ingestion not configured")

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	k := req.K
	if k <= 0 {
		k = store.DefaultK
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("k", k))

	start := time.Now()
	s.mu.Lock()
	hits, err := s.store.Search(r.Context(), req.Query, k)
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, &models.SearchResponse{
		Query:     req.Query,
		K:         k,
		Hits:      hits,
		Total:     len(hits),
		QueryTime: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleAddDocuments(w http.ResponseWriter, r *http.Request) {
	var req models.AddDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("add documents request", zap.Int("texts", len(req.Texts)))

	s.mu.Lock()
	err := s.store.AddDocuments(r.Context(), req.Texts, req.Metadata)
	total := s.store.Size()
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, store.ErrArgumentMismatch) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("add documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]int{"added": len(req.Texts), "total": total})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	err := s.store.Save("", "")
	total := s.store.Size()
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("save failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"status": "saved", "vectors": total})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	report, err := s.Ingest(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, errIngestDisabled):
			s.respondError(w, http.StatusNotImplemented, err.Error())
		case errors.Is(err, extract.ErrPathInvalid):
			s.respondError(w, http.StatusNotFound, err.Error())
		default:
			s.logger.Error("ingest failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.store.Clear()
	s.mu.Unlock()
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st, err := s.store.Status()
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("status: disk usage failed", zap.Error(err))
	}
	if s.catalog != nil {
		n, err := s.catalog.Count(r.Context())
		if err != nil {
			s.logger.Error("status: count documents failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		st.Documents = n
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
