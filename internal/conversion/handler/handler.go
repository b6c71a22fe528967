// Package handler exposes the applicant conversion trigger.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"rostersync/internal/conversion"
	"rostersync/internal/platform/middleware"
	"rostersync/internal/transport/http/shared"
	dErrors "rostersync/pkg/domain-errors"
)

// Service defines the conversion operation.
type Service interface {
	Convert(ctx context.Context, applicantID int64) (conversion.Result, error)
}

// Handler handles the conversion trigger.
type Handler struct {
	logger    *slog.Logger
	service   Service
	validator middleware.TokenValidator
}

// New creates a conversion Handler.
func New(service Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{logger: logger, service: service, validator: validator}
}

// Register registers the conversion route with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireStaff(h.validator, h.logger))
		r.Post("/applicants/{applicant}/convert", h.handleConvert)
	})
}

type convertResponse struct {
	LocalMemberID    uuid.UUID `json:"local_member_id"`
	ExternalMemberID int64     `json:"external_member_id"`
}

func (h *Handler) handleConvert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicantID, err := strconv.ParseInt(chi.URLParam(r, "applicant"), 10, 64)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid applicant id"))
		return
	}

	result, err := h.service.Convert(ctx, applicantID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) || dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.WarnContext(ctx, "conversion rejected",
				"applicant_id", applicantID,
				"request_id", middleware.GetRequestID(ctx),
				"error", err.Error(),
			)
		} else {
			h.logger.ErrorContext(ctx, "conversion failed",
				"applicant_id", applicantID,
				"request_id", middleware.GetRequestID(ctx),
				"error", err.Error(),
			)
		}
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, convertResponse{
		LocalMemberID:    result.LocalMemberID,
		ExternalMemberID: result.ExternalMemberID,
	})
}
