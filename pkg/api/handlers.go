package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ssargent/recordfile/pkg/feature"
	"github.com/ssargent/recordfile/pkg/recordio"
)

// AppendRequest is the body of POST /files/{name}/records
type AppendRequest struct {
	Features feature.Map `json:"features"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.List(r.Context())
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to list files: %v", err), http.StatusInternalServerError)
		return
	}

	var total int64
	for _, f := range files {
		total += f.Size
	}
	s.metrics.UpdateDataStats(len(files), total)

	sendSuccess(w, files)
}

func (s *Server) handleGetRecords(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	offset, err := parseUintParam(r, "offset", 0)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, err := parseUintParam(r, "limit", defaultPageSize)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if limit == 0 || limit > uint64(s.config.MaxPageSize) {
		sendError(w, fmt.Sprintf("limit must be between 1 and %d", s.config.MaxPageSize), http.StatusBadRequest)
		return
	}

	page, err := s.store.Records(r.Context(), name, offset, int(limit))
	if err != nil {
		s.sendStoreError(w, "read records", err)
		return
	}
	sendSuccess(w, page)
}

func (s *Server) handleAppendRecord(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := chi.URLParam(r, "name")

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	var req AppendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		sendError(w, fmt.Sprintf("Invalid JSON in request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Features == nil {
		sendError(w, "features is required", http.StatusBadRequest)
		return
	}

	result, err := s.store.Append(r.Context(), name, req.Features)
	s.metrics.RecordOperation("append", err == nil, time.Since(start))
	if err != nil {
		s.sendStoreError(w, "append record", err)
		return
	}

	sendJSON(w, http.StatusCreated, result)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := chi.URLParam(r, "name")

	result, err := s.store.Verify(r.Context(), name)
	if err != nil {
		s.metrics.RecordOperation("verify", false, time.Since(start))
		s.sendStoreError(w, "verify", err)
		return
	}
	s.metrics.RecordOperation("verify", result.OK(), time.Since(start))
	if !result.OK() {
		s.logger.Warn("record file failed verification",
			"file", name,
			"records", result.Records,
			"valid_bytes", result.ValidBytes,
			"error", result.Err)
	}

	sendSuccess(w, verifyView{VerifyResult: result, OK: result.OK(), Error: result.Error()})
}

type verifyView struct {
	*recordio.VerifyResult
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// sendStoreError maps store errors to HTTP statuses
func (s *Server) sendStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidName):
		sendError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, os.ErrNotExist):
		sendError(w, "Record file not found", http.StatusNotFound)
	case errors.Is(err, recordio.ErrCompressedSeek):
		sendError(w, err.Error(), http.StatusConflict)
	case recordio.IsCorruption(err), errors.Is(err, feature.ErrMalformedPayload):
		sendError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		s.logger.Error("request failed", "op", op, "error", err)
		sendError(w, fmt.Sprintf("Failed to %s: %v", op, err), http.StatusInternalServerError)
	}
}

func parseUintParam(r *http.Request, name string, def uint64) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter %q", name, raw)
	}
	return v, nil
}
