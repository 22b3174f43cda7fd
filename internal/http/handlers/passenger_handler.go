// README: Rider ride handlers (list with live notices, cancel).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"myride/internal/modules/dashboard"
	"myride/internal/modules/ride"
	"myride/internal/types"
)

type PassengerHandler struct {
	dashboards *dashboard.Service
}

func NewPassengerHandler(svc *dashboard.Service) *PassengerHandler {
	return &PassengerHandler{dashboards: svc}
}

func (h *PassengerHandler) key(c *gin.Context) (dashboard.Key, bool) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid rider id")
		return dashboard.Key{}, false
	}
	if !authorizeParty(c, id, ride.ActorRider) {
		return dashboard.Key{}, false
	}
	return dashboard.Key{Actor: ride.ActorRider, Party: types.ID(id)}, true
}

func (h *PassengerHandler) Rides(c *gin.Context) {
	k, ok := h.key(c)
	if !ok {
		return
	}
	view, err := h.dashboards.View(c.Request.Context(), k)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, view)
}

func (h *PassengerHandler) Unmount(c *gin.Context) {
	k, ok := h.key(c)
	if !ok {
		return
	}
	if err := h.dashboards.Unmount(k); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PassengerHandler) Cancel(c *gin.Context) {
	k, ok := h.key(c)
	if !ok {
		return
	}
	rideID := c.Param("ride")
	if !isValidID(rideID) {
		writeError(c, http.StatusBadRequest, "invalid ride id")
		return
	}
	r, err := h.dashboards.Transition(c.Request.Context(), k, types.ID(rideID), ride.EventCancel)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}
