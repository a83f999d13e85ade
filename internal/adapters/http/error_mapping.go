package httpadapter

import (
	"net/http"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrMalformedOverride):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrArtifactNotFound),
		domain.IsKind(err, domain.ErrJobNotFound),
		domain.IsKind(err, domain.ErrWarrantyNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrDuplicateJob):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
