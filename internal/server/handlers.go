package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mk-mkone/multimodal-retrieval-system/internal/encoder"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/manifest"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/metadata"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/models"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/registry"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/search"
	"go.uber.org/zap"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request",
		zap.String("modality", req.Modality),
		zap.String("model", req.Model),
		zap.Int("top_k", req.TopK))
	response, err := s.executor.Search(r.Context(), &req)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, searchStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

// searchStatus maps executor failures onto HTTP status codes.
func searchStatus(err error) int {
	switch {
	case errors.Is(err, registry.ErrUnknownIndex):
		return http.StatusNotFound
	case errors.Is(err, encoder.ErrInvalidQueryVector):
		return http.StatusBadRequest
	case errors.Is(err, encoder.ErrEncodingFailed):
		return http.StatusBadGateway
	case errors.Is(err, metadata.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, search.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req models.BuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("build request",
		zap.String("modality", req.Modality),
		zap.String("model", req.Model))
	report, err := s.builder.Build(r.Context(), &req)
	if err != nil {
		s.logger.Error("build failed", zap.Error(err))
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, manifest.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, manifest.ErrCorrupt):
			status = http.StatusUnprocessableEntity
		}
		s.respondError(w, status, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, report)
}

func (s *Server) handleIndices(w http.ResponseWriter, r *http.Request) {
	entries := s.registry.List()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"indices": entries,
		"count":   len(entries),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	entries := s.registry.List()
	totalVectors := 0
	for _, e := range entries {
		totalVectors += e.VectorCount
	}
	resp := map[string]interface{}{
		"indices":       len(entries),
		"total_vectors": totalVectors,
	}
	if diskBytes, err := registry.DiskUsageBytes(s.registry.Root()); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	if s.store != nil {
		docCount, err := s.store.CountDocuments(r.Context())
		if err != nil {
			s.logger.Error("status: count documents failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["documents"] = docCount
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
