// Package handler exposes the sync-run ledger read surface.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"rostersync/internal/platform/middleware"
	"rostersync/internal/syncledger"
	"rostersync/internal/transport/http/shared"
	dErrors "rostersync/pkg/domain-errors"
)

const defaultLimit = 50

// Store is the read surface the handler needs.
type Store interface {
	ListRecent(ctx context.Context, scopeID *int64, limit int) ([]syncledger.Run, error)
}

// Handler serves recent sync runs for auditing and debugging.
type Handler struct {
	logger    *slog.Logger
	store     Store
	validator middleware.TokenValidator
}

// New creates a ledger Handler.
func New(store Store, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{logger: logger, store: store, validator: validator}
}

// Register registers the ledger routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireStaff(h.validator, h.logger))
		r.Get("/sync/runs", h.handleListRuns)
	})
}

type runResponse struct {
	ID          uuid.UUID `json:"id"`
	Kind        string    `json:"kind"`
	ScopeID     int64     `json:"scope_id"`
	GroupingID  *int64    `json:"grouping_id,omitempty"`
	Created     int       `json:"created"`
	Updated     int       `json:"updated"`
	Deactivated int       `json:"deactivated"`
	Added       int       `json:"added"`
	Removed     int       `json:"removed"`
	Failed      int       `json:"failed"`
	Outcome     string    `json:"outcome"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var scopeID *int64
	if raw := r.URL.Query().Get("scope"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid scope id"))
			return
		}
		scopeID = &id
	}

	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid limit"))
			return
		}
		limit = n
	}

	runs, err := h.store.ListRecent(ctx, scopeID, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "listing sync runs failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list sync runs"))
		return
	}

	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, runResponse{
			ID:          run.ID,
			Kind:        string(run.Kind),
			ScopeID:     run.ScopeID,
			GroupingID:  run.GroupingID,
			Created:     run.Created,
			Updated:     run.Updated,
			Deactivated: run.Deactivated,
			Added:       run.Added,
			Removed:     run.Removed,
			Failed:      run.Failed,
			Outcome:     string(run.Outcome),
			Error:       run.Error,
			StartedAt:   run.StartedAt,
			FinishedAt:  run.FinishedAt,
		})
	}
	shared.WriteJSON(w, http.StatusOK, out)
}
