package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"makerspace-reservation-backend/internal/reservation"
)

// reservationRequest is the payload for creating or updating a reservation.
// Times are UTC instants at the boundary.
type reservationRequest struct {
	MachineID   int64     `json:"machineId"`
	StartTime   time.Time `json:"startTime" binding:"required"`
	EndTime     time.Time `json:"endTime" binding:"required"`
	EventID     *int64    `json:"eventId"`
	Special     bool      `json:"special"`
	SpecialText string    `json:"specialText"`
	Comment     string    `json:"comment"`
	QuotaID     *int64    `json:"quotaId"`
}

func (r *reservationRequest) toRequest() reservation.Request {
	return reservation.Request{
		MachineID:   r.MachineID,
		Start:       r.StartTime,
		End:         r.EndTime,
		EventID:     r.EventID,
		Special:     r.Special,
		SpecialText: r.SpecialText,
		Comment:     r.Comment,
		QuotaID:     r.QuotaID,
	}
}

// PostReservation handles POST /api/reservations.
func (h *Handler) PostReservation(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req reservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MachineID <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "machineId is required"})
		return
	}

	created, rejections, err := h.service.Create(c.Request.Context(), p, req.toRequest())
	if err != nil {
		internalError(c, err)
		return
	}
	if len(rejections) > 0 {
		rejected(c, rejections)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// PutReservation handles PUT /api/reservations/:id.
func (h *Handler) PutReservation(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req reservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, rejections, err := h.service.Update(c.Request.Context(), p, id, req.toRequest())
	if err != nil {
		internalError(c, err)
		return
	}
	if len(rejections) > 0 {
		rejected(c, rejections)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteReservation handles DELETE /api/reservations/:id.
func (h *Handler) DeleteReservation(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	rejections, err := h.service.Delete(c.Request.Context(), p, id)
	if err != nil {
		internalError(c, err)
		return
	}
	if len(rejections) > 0 {
		rejected(c, rejections)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetFreeSlots handles GET /api/machines/:id/free-slots.
func (h *Handler) GetFreeSlots(c *gin.Context) {
	machineID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var query struct {
		DurationMinutes int       `form:"duration_minutes" binding:"required,min=1"`
		From            time.Time `form:"from" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
		To              time.Time `form:"to" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slots, rejections, err := h.service.FindFreeSlots(c.Request.Context(), machineID,
		time.Duration(query.DurationMinutes)*time.Minute, query.From, query.To)
	if err != nil {
		internalError(c, err)
		return
	}
	if len(rejections) > 0 {
		rejected(c, rejections)
		return
	}
	if slots == nil {
		slots = []time.Time{}
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots})
}
