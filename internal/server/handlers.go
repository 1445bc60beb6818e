package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/linkboard/internal/engine"
	"github.com/roach88/linkboard/internal/ir"
	"github.com/roach88/linkboard/internal/registry"
)

// maxBodyBytes bounds request bodies; links are short.
const maxBodyBytes = 64 << 10

type addLinkRequest struct {
	Link string `json:"link"`
}

type voteRequest struct {
	Delta int64 `json:"delta"`
}

// AddLinkResponse is returned by POST .../links.
type AddLinkResponse struct {
	Registry string `json:"registry"`
	Index    uint64 `json:"index"`
}

// VoteResponse is returned by POST .../votes.
type VoteResponse struct {
	Registry string `json:"registry"`
	Index    uint64 `json:"index"`
	Vote     int64  `json:"vote"`
}

// ListResponse is returned by GET /api/registries.
type ListResponse struct {
	Registries []string `json:"registries"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// healthTimeout bounds the database ping behind GET /api/health.
const healthTimeout = 2 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", "error", err)
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, ListResponse{Registries: s.dispatcher.Registries()})
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.dispatcher.FetchState(r.PathValue("id")))
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.dispatcher.Create(r.Context(), id, callerOf(r)); err != nil {
		s.writeCommandError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, s.dispatcher.FetchState(id))
}

func (s *Server) handleAddLink(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req addLinkRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	index, err := s.dispatcher.AddLink(r.Context(), id, callerOf(r), req.Link)
	if err != nil {
		s.writeCommandError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, AddLinkResponse{Registry: id, Index: index})
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	index, err := strconv.ParseUint(r.PathValue("index"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid entry index", "")
		return
	}

	var req voteRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	vote, err := s.dispatcher.Vote(r.Context(), id, callerOf(r), index, req.Delta)
	if err != nil {
		s.writeCommandError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, VoteResponse{Registry: id, Index: index, Vote: vote})
}

func callerOf(r *http.Request) ir.Address {
	return ir.Address(strings.TrimSpace(r.Header.Get(IdentityHeader)))
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}

// StatusFor maps a command error to an HTTP status.
func StatusFor(err error) int {
	switch registry.CodeOf(err) {
	case registry.ErrCodeInvalidDelta, registry.ErrCodeEmptyLink, registry.ErrCodeMissingIdentity:
		return http.StatusBadRequest
	case registry.ErrCodeIndexOutOfRange:
		return http.StatusNotFound
	case registry.ErrCodeAlreadyInitialized:
		return http.StatusConflict
	case registry.ErrCodeNotInitialized:
		return http.StatusPreconditionFailed
	case registry.ErrCodeCapacityExceeded:
		return http.StatusInsufficientStorage
	}
	if errors.Is(err, engine.ErrStopped) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeCommandError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("command failed", "error", err)
	}
	s.writeError(w, status, err.Error(), string(registry.CodeOf(err)))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message, code string) {
	s.writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
