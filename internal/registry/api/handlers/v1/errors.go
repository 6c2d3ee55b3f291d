package v1

import (
	"log"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clawdhub/clawdhub/internal/registry/service"
)

// statusFor maps a service error kind to its HTTP status.
func statusFor(err error) int {
	switch service.KindOf(err) {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindGone:
		return http.StatusGone
	case service.KindConflict:
		return http.StatusConflict
	case service.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case service.KindUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case service.KindRateLimited:
		return http.StatusTooManyRequests
	case service.KindEmbeddingUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// humaError translates a service error for huma. Internal errors are logged
// and replaced with a generic message.
func humaError(err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		return huma.Error500InternalServerError("Internal server error")
	}
	return huma.NewError(status, err.Error())
}
