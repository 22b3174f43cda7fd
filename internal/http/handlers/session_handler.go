// README: Booking session handlers (trip planning screen).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"myride/internal/modules/booking"
	"myride/internal/modules/location"
	"myride/internal/types"
)

type SessionHandler struct {
	sessions *booking.Registry
}

func NewSessionHandler(reg *booking.Registry) *SessionHandler {
	return &SessionHandler{sessions: reg}
}

type textReq struct {
	Role location.Role `json:"role" binding:"required"`
	Text string        `json:"text"`
}

type selectReq struct {
	Role  location.Role `json:"role" binding:"required"`
	Index *int          `json:"index" binding:"required"`
}

type roleReq struct {
	Role location.Role `json:"role" binding:"required"`
}

type tierReq struct {
	Name string `json:"name" binding:"required"`
}

func (h *SessionHandler) controller(c *gin.Context) (*booking.Controller, bool) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid session id")
		return nil, false
	}
	ctrl, err := h.sessions.Get(types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return nil, false
	}
	return ctrl, true
}

func (h *SessionHandler) Create(c *gin.Context) {
	ctrl := h.sessions.Create()
	writeJSON(c, http.StatusCreated, ctrl.Snapshot())
}

func (h *SessionHandler) Get(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, ctrl.Snapshot())
}

func (h *SessionHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid session id")
		return
	}
	if err := h.sessions.Delete(types.ID(id)); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) Text(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req textReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := ctrl.TextChanged(req.Role, req.Text); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, ctrl.Snapshot())
}

func (h *SessionHandler) Select(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req selectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if _, err := ctrl.Select(req.Role, *req.Index); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, ctrl.Snapshot())
}

func (h *SessionHandler) Dismiss(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req roleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !req.Role.Valid() {
		writeError(c, http.StatusBadRequest, "unknown role")
		return
	}
	ctrl.Dismiss(req.Role)
	writeJSON(c, http.StatusOK, ctrl.Snapshot())
}

func (h *SessionHandler) Offers(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"offers": ctrl.EligibleOffers()})
}

func (h *SessionHandler) Catalog(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"offers": ctrl.CatalogOffers()})
}

func (h *SessionHandler) SelectTier(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req tierReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	offer, err := ctrl.SelectTier(req.Name)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, offer)
}

func (h *SessionHandler) Confirm(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	handoff, err := ctrl.Confirm(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, handoff)
}
