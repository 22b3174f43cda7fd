// README: Driver dashboard handlers: ride list with summary and lifecycle actions.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"myride/internal/modules/dashboard"
	"myride/internal/modules/ride"
	"myride/internal/types"
)

type DriverHandler struct {
	dashboards *dashboard.Service
}

func NewDriverHandler(svc *dashboard.Service) *DriverHandler {
	return &DriverHandler{dashboards: svc}
}

func (h *DriverHandler) key(c *gin.Context) (dashboard.Key, bool) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid driver id")
		return dashboard.Key{}, false
	}
	if !authorizeParty(c, id, ride.ActorDriver) {
		return dashboard.Key{}, false
	}
	return dashboard.Key{Actor: ride.ActorDriver, Party: types.ID(id)}, true
}

// Rides returns the driver's rides and summary, mounting the dashboard on first use.
func (h *DriverHandler) Rides(c *gin.Context) {
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

// Mount reloads the ride list and (re)subscribes to the change feed.
func (h *DriverHandler) Mount(c *gin.Context) {
	k, ok := h.key(c)
	if !ok {
		return
	}
	view, err := h.dashboards.Mount(c.Request.Context(), k)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, view)
}

func (h *DriverHandler) Unmount(c *gin.Context) {
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

func (h *DriverHandler) Accept(c *gin.Context)   { h.transition(c, ride.EventAccept) }
func (h *DriverHandler) Start(c *gin.Context)    { h.transition(c, ride.EventStart) }
func (h *DriverHandler) Complete(c *gin.Context) { h.transition(c, ride.EventComplete) }
func (h *DriverHandler) Cancel(c *gin.Context)   { h.transition(c, ride.EventCancel) }

func (h *DriverHandler) transition(c *gin.Context, ev ride.Event) {
	k, ok := h.key(c)
	if !ok {
		return
	}
	rideID := c.Param("ride")
	if !isValidID(rideID) {
		writeError(c, http.StatusBadRequest, "invalid ride id")
		return
	}
	r, err := h.dashboards.Transition(c.Request.Context(), k, types.ID(rideID), ev)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}
