// README: Base handler utilities (JSON helpers, error mapping, caller checks).
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"myride/internal/http/middleware"
	"myride/internal/maps"
	"myride/internal/modules/booking"
	"myride/internal/modules/dashboard"
	"myride/internal/modules/location"
	"myride/internal/modules/payment"
	"myride/internal/modules/ride"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID accepts uuids and backend ids: up to 64 alphanumerics, '-' or '_'.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeDomainError maps module errors onto status codes. Backend and provider
// rejections carry their message through unchanged.
func writeDomainError(c *gin.Context, err error) {
	_ = c.Error(err)

	var backend *ride.BackendError
	if errors.As(err, &backend) {
		writeError(c, http.StatusBadGateway, backend.Message)
		return
	}
	var rejected *payment.RejectedError
	if errors.As(err, &rejected) {
		writeError(c, http.StatusBadGateway, rejected.Message)
		return
	}

	switch {
	case errors.Is(err, booking.ErrSessionNotFound),
		errors.Is(err, ride.ErrNotFound),
		errors.Is(err, dashboard.ErrNotMounted):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, booking.ErrSessionClosed):
		writeError(c, http.StatusGone, err.Error())
	case errors.Is(err, booking.ErrNoOfferSelected),
		errors.Is(err, booking.ErrLocationsRequired),
		errors.Is(err, booking.ErrUnknownTier),
		errors.Is(err, booking.ErrUnknownRole),
		errors.Is(err, location.ErrUnknownSuggestion),
		errors.Is(err, ride.ErrBadRequest),
		errors.Is(err, payment.ErrInvalidRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ride.ErrInvalidTransition),
		errors.Is(err, ride.ErrForbiddenActor),
		errors.Is(err, ride.ErrActiveRide):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, maps.ErrNoRoute):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, maps.ErrLookupFailed):
		writeError(c, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusGatewayTimeout, "upstream timeout")
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// authorizeParty lets the request through when auth is disabled, or when the
// caller is the party in the path and does not hold a conflicting role.
func authorizeParty(c *gin.Context, partyID string, role ride.Actor) bool {
	uid := middleware.CallerUID(c)
	if uid == "" {
		return true
	}
	if uid != partyID {
		writeError(c, http.StatusForbidden, "forbidden: id does not match authenticated user")
		return false
	}
	if r := middleware.CallerRole(c); r != "" && r != string(role) {
		writeError(c, http.StatusForbidden, "forbidden: "+string(role)+" role required")
		return false
	}
	return true
}
