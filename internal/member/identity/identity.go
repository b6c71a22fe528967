// Package identity resolves the 1:1 mapping between authoritative member ids
// and mirror rows, creating the mirror row on first encounter.
package identity

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"rostersync/internal/authority"
	"rostersync/internal/fieldcrypt"
	"rostersync/internal/member/models"
	dErrors "rostersync/pkg/domain-errors"
	"rostersync/pkg/platform/sentinel"
	"rostersync/pkg/requestcontext"
)

// MemberStore is the subset of the member store the resolver needs.
type MemberStore interface {
	Create(ctx context.Context, m *models.Member) error
	FindByExternalID(ctx context.Context, externalID int64) (*models.Member, error)
}

// Resolver maps authoritative members onto mirror rows. Safe for concurrent
// use: the store's unique external_id constraint is the only guard, and a
// lost insert race resolves by re-reading the winner's row.
type Resolver struct {
	members MemberStore
	codec   *fieldcrypt.Codec
	logger  *slog.Logger
}

// New constructs a Resolver.
func New(members MemberStore, codec *fieldcrypt.Codec, logger *slog.Logger) *Resolver {
	return &Resolver{members: members, codec: codec, logger: logger}
}

// MapStatus translates the authoritative status vocabulary into the local
// one. Terminal statuses are never materialized locally.
func MapStatus(s authority.Status) (models.Status, error) {
	switch s {
	case authority.StatusActive:
		return models.StatusActive, nil
	case authority.StatusPaused, authority.StatusTrial:
		return models.StatusInactive, nil
	case authority.StatusPending:
		return models.StatusPending, nil
	case authority.StatusWithdrawn, authority.StatusGraduated:
		return "", dErrors.New(dErrors.CodeValidation, "terminal status "+string(s)+" is never mirrored")
	default:
		return "", dErrors.New(dErrors.CodeValidation, "unknown roster status "+string(s))
	}
}

// ResolveOrCreate returns the mirror row id for ext, creating the row when it
// is first seen. Resolution is read-mostly: an existing row's fields are
// never overwritten here.
func (r *Resolver) ResolveOrCreate(ctx context.Context, ext authority.Member) (uuid.UUID, error) {
	if ext.ID == 0 {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "roster member is missing an external id")
	}

	existing, err := r.members.FindByExternalID(ctx, ext.ID)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to resolve member")
	}

	status, err := MapStatus(ext.Status)
	if err != nil {
		return uuid.Nil, err
	}

	now := requestcontext.Now(ctx)
	externalID := ext.ID
	m := &models.Member{
		ID:         uuid.New(),
		ExternalID: &externalID,
		Name:       r.codec.Decrypt(ext.NameEnc),
		Phone:      r.codec.Decrypt(ext.PhoneEnc),
		Status:     status,
		ScopeID:    ext.AcademyID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = r.members.Create(ctx, m)
	if err == nil {
		return m.ID, nil
	}
	if errors.Is(err, sentinel.ErrConflict) {
		// Lost the insert race: someone else just created the mapping.
		winner, readErr := r.members.FindByExternalID(ctx, ext.ID)
		if readErr != nil {
			return uuid.Nil, dErrors.Wrap(readErr, dErrors.CodeUnavailable, "failed to re-read member after insert conflict")
		}
		r.logger.DebugContext(ctx, "identity insert race resolved by re-read",
			"external_id", ext.ID, "member_id", winner.ID)
		return winner.ID, nil
	}
	return uuid.Nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to create member")
}
