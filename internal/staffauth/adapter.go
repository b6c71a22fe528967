package staffauth

import (
	"rostersync/internal/platform/middleware"
)

// MiddlewareAdapter exposes the Service through the middleware's validator
// interface.
type MiddlewareAdapter struct {
	service *Service
}

func NewMiddlewareAdapter(service *Service) *MiddlewareAdapter {
	return &MiddlewareAdapter{service: service}
}

func (a *MiddlewareAdapter) ValidateToken(tokenString string) (*middleware.StaffClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.StaffClaims{
		StaffID: claims.StaffID,
		Role:    claims.Role,
	}, nil
}
