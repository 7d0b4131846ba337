package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"makerspace-reservation-backend/internal/model"
	"makerspace-reservation-backend/internal/reservation"
)

// GetQuotas handles GET /api/quotas?userId=&machineTypeId=. Users may list
// their own quotas; operators anyone's.
func (h *Handler) GetQuotas(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	userID, err := strconv.ParseInt(c.Query("userId"), 10, 64)
	if err != nil || userID <= 0 {
		userID = p.UserID
	}
	if userID != p.UserID && !p.Has(reservation.CapManageMachines) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "listing other users' quotas requires the manage-machines capability"})
		return
	}
	machineTypeID, err := strconv.ParseInt(c.Query("machineTypeId"), 10, 64)
	if err != nil || machineTypeID <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "machineTypeId is required"})
		return
	}

	quotas, err := h.store.QuotasFor(c.Request.Context(), userID, machineTypeID)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotas": quotas})
}

// quotaRequest is the payload for creating or updating a quota. Exactly one
// of userId and all must be set.
type quotaRequest struct {
	MachineTypeID        int64    `json:"machineTypeId" binding:"required"`
	UserID               *int64   `json:"userId"`
	All                  bool     `json:"all"`
	NumberOfReservations int      `json:"numberOfReservations" binding:"required,min=1"`
	IgnoreRules          bool     `json:"ignoreRules"`
	Diminishing          bool     `json:"diminishing"`
	MaxHours             *float64 `json:"maxHours"`
}

// PostQuota handles POST /api/quotas. Operators only.
func (h *Handler) PostQuota(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if !p.Has(reservation.CapManageMachines) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "managing quotas requires the manage-machines capability"})
		return
	}
	var req quotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.All == (req.UserID != nil) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "exactly one of userId and all must be set"})
		return
	}

	quota := &model.Quota{
		MachineTypeID:        req.MachineTypeID,
		UserID:               req.UserID,
		All:                  req.All,
		NumberOfReservations: req.NumberOfReservations,
		IgnoreRules:          req.IgnoreRules,
		Diminishing:          req.Diminishing,
		MaxHours:             req.MaxHours,
	}
	if err := h.store.SaveQuota(c.Request.Context(), quota); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, quota)
}

// DeleteQuota handles DELETE /api/quotas/:id. Operators only.
func (h *Handler) DeleteQuota(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if !p.Has(reservation.CapManageMachines) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "managing quotas requires the manage-machines capability"})
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteQuota(c.Request.Context(), id); err != nil {
		internalError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
