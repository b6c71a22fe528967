// Package handler exposes the roster sync trigger.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"rostersync/internal/platform/middleware"
	"rostersync/internal/roster"
	"rostersync/internal/transport/http/shared"
	dErrors "rostersync/pkg/domain-errors"
)

// Service defines the roster sync operation.
type Service interface {
	Sync(ctx context.Context, scopeID int64) (roster.Result, error)
}

// Handler handles the roster trigger surface.
type Handler struct {
	logger     *slog.Logger
	service    Service
	validator  middleware.TokenValidator
	apiKeyHash string
}

// New creates a roster Handler. apiKeyHash may be empty, in which case the
// sync trigger accepts staff tokens only.
func New(service Service, logger *slog.Logger, validator middleware.TokenValidator, apiKeyHash string) *Handler {
	return &Handler{logger: logger, service: service, validator: validator, apiKeyHash: apiKeyHash}
}

// Register registers the roster routes with the chi router. The sync trigger
// is also called by cron, so it accepts the service API key as well as staff
// tokens.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireStaffOrAPIKey(h.validator, h.apiKeyHash, h.logger))
		r.Post("/sync/roster/{scope}", h.handleSync)
	})
}

type syncResponse struct {
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Deactivated int `json:"deactivated"`
	Failed      int `json:"failed"`
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scopeID, err := strconv.ParseInt(chi.URLParam(r, "scope"), 10, 64)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid scope id"))
		return
	}

	result, err := h.service.Sync(ctx, scopeID)
	if err != nil {
		h.logger.ErrorContext(ctx, "roster sync failed",
			"scope_id", scopeID,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, syncResponse{
		Created:     result.Created,
		Updated:     result.Updated,
		Deactivated: result.Deactivated,
		Failed:      result.Failed,
	})
}
