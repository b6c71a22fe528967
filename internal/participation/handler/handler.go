// Package handler exposes grouping membership reads, the explicit reconcile
// trigger, and the staff-curated record operations.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"rostersync/internal/participation/models"
	"rostersync/internal/participation/service"
	"rostersync/internal/platform/middleware"
	"rostersync/internal/transport/http/shared"
	dErrors "rostersync/pkg/domain-errors"
)

// Service defines the participation operations.
type Service interface {
	ListMembers(ctx context.Context, groupingID int64) ([]service.Entry, error)
	Reconcile(ctx context.Context, groupingID, familyID, scopeID int64) (service.Result, error)
	AddManualRecord(ctx context.Context, record *models.Record) (*models.Record, error)
	Promote(ctx context.Context, recordID uuid.UUID) (*models.Record, error)
}

// Handler handles grouping membership endpoints.
type Handler struct {
	logger    *slog.Logger
	service   Service
	validator middleware.TokenValidator
}

// New creates a participation Handler.
func New(service Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{logger: logger, service: service, validator: validator}
}

// Register registers the participation routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireStaff(h.validator, h.logger))
		r.Get("/groupings/{grouping}/members", h.handleListMembers)
		r.Post("/groupings/{grouping}/reconcile", h.handleReconcile)
		r.Post("/groupings/{grouping}/records", h.handleAddRecord)
		r.Post("/records/{record}/promote", h.handlePromote)
	})
}

type entryResponse struct {
	RecordID        uuid.UUID  `json:"record_id"`
	ParticipantType string     `json:"participant_type"`
	MemberID        *uuid.UUID `json:"member_id,omitempty"`
	ApplicantID     *int64     `json:"applicant_id,omitempty"`
	Name            string     `json:"name,omitempty"`
	Status          string     `json:"status,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	groupingID, err := strconv.ParseInt(chi.URLParam(r, "grouping"), 10, 64)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid grouping id"))
		return
	}

	entries, err := h.service.ListMembers(ctx, groupingID)
	if err != nil {
		h.logger.ErrorContext(ctx, "listing grouping members failed",
			"grouping_id", groupingID,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		resp := entryResponse{
			RecordID:        e.Record.ID,
			ParticipantType: string(e.Record.Type),
			MemberID:        e.Record.MemberID,
			ApplicantID:     e.Record.ApplicantID,
			CreatedAt:       e.Record.CreatedAt,
		}
		if e.Member != nil {
			resp.Name = e.Member.Name
			resp.Status = string(e.Member.Status)
		}
		out = append(out, resp)
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

type reconcileRequest struct {
	FamilyID int64 `json:"family_id"`
	ScopeID  int64 `json:"scope_id"`
}

type reconcileResponse struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	groupingID, err := strconv.ParseInt(chi.URLParam(r, "grouping"), 10, 64)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid grouping id"))
		return
	}

	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if req.FamilyID == 0 || req.ScopeID == 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "family_id and scope_id are required"))
		return
	}

	result, err := h.service.Reconcile(ctx, groupingID, req.FamilyID, req.ScopeID)
	if err != nil {
		h.logger.ErrorContext(ctx, "participation reconcile failed",
			"grouping_id", groupingID,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, reconcileResponse{
		Added:   result.Added,
		Removed: result.Removed,
		Failed:  result.Failed,
	})
}

type addRecordRequest struct {
	FamilyID        int64      `json:"family_id"`
	ParticipantType string     `json:"participant_type"`
	MemberID        *uuid.UUID `json:"member_id,omitempty"`
	ApplicantID     *int64     `json:"applicant_id,omitempty"`
}

func (h *Handler) handleAddRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	groupingID, err := strconv.ParseInt(chi.URLParam(r, "grouping"), 10, 64)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid grouping id"))
		return
	}

	var req addRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	record, err := h.service.AddManualRecord(ctx, &models.Record{
		GroupingID:  groupingID,
		FamilyID:    req.FamilyID,
		MemberID:    req.MemberID,
		ApplicantID: req.ApplicantID,
		Type:        models.ParticipantType(req.ParticipantType),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "adding manual record failed",
			"grouping_id", groupingID,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, entryResponse{
		RecordID:        record.ID,
		ParticipantType: string(record.Type),
		MemberID:        record.MemberID,
		ApplicantID:     record.ApplicantID,
		CreatedAt:       record.CreatedAt,
	})
}

func (h *Handler) handlePromote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, err := uuid.Parse(chi.URLParam(r, "record"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid record id"))
		return
	}

	record, err := h.service.Promote(ctx, recordID)
	if err != nil {
		h.logger.WarnContext(ctx, "promoting record failed",
			"record_id", recordID,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, entryResponse{
		RecordID:        record.ID,
		ParticipantType: string(record.Type),
		MemberID:        record.MemberID,
		CreatedAt:       record.CreatedAt,
	})
}
