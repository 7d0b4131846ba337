package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"makerspace-reservation-backend/internal/model"
	"makerspace-reservation-backend/internal/reservation"
	"makerspace-reservation-backend/internal/schedule"
)

// GetMachineTypes handles GET /api/machine-types. Types and their machines
// come back in priority order.
func (h *Handler) GetMachineTypes(c *gin.Context) {
	types, err := h.store.ListMachineTypes(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"machineTypes": types})
}

// GetMachines handles GET /api/machines.
func (h *Handler) GetMachines(c *gin.Context) {
	machines, err := h.store.ListMachines(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"machines": machines})
}

// machineRequest is the payload for creating or updating a machine.
type machineRequest struct {
	Name          string              `json:"name" binding:"required"`
	MachineTypeID int64               `json:"machineTypeId" binding:"required"`
	Status        model.MachineStatus `json:"status" binding:"omitempty,oneof=available out_of_order maintenance"`
	Priority      *int                `json:"priority"`
	Location      string              `json:"location"`
}

// PostMachine handles POST /api/machines. Operators only.
func (h *Handler) PostMachine(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if !p.Has(reservation.CapManageMachines) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "managing machines requires the manage-machines capability"})
		return
	}
	var req machineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status == "" {
		req.Status = model.StatusAvailable
	}
	machine := &model.Machine{
		Name:          req.Name,
		MachineTypeID: req.MachineTypeID,
		Status:        req.Status,
		Priority:      req.Priority,
		Location:      req.Location,
	}
	if err := h.store.SaveMachine(c.Request.Context(), machine); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, machine)
}

// PutMachine handles PUT /api/machines/:id; operators use it to flip a
// machine to out_of_order or maintenance.
func (h *Handler) PutMachine(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if !p.Has(reservation.CapManageMachines) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "managing machines requires the manage-machines capability"})
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	machine, err := h.store.Machine(c.Request.Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "machine not found"})
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	var req machineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	machine.Name = req.Name
	machine.MachineTypeID = req.MachineTypeID
	if req.Status != "" {
		machine.Status = req.Status
	}
	machine.Priority = req.Priority
	machine.Location = req.Location
	if err := h.store.SaveMachine(c.Request.Context(), machine); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, machine)
}

// calendarReservation is one booked interval in the calendar feed. Personal
// reservations are anonymized unless they belong to the caller.
type calendarReservation struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Type        string    `json:"type"`
	DisplayText string    `json:"displayText,omitempty"`
}

// GetCalendar handles GET /api/machines/:id/calendar: the machine's
// reservations in the window plus the weekly rule periods, which the
// frontend paints as reservable stripes.
func (h *Handler) GetCalendar(c *gin.Context) {
	machineID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var query struct {
		From time.Time `form:"from" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
		To   time.Time `form:"to" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	machine, err := h.store.Machine(c.Request.Context(), machineID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "machine not found"})
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}

	reservations, err := h.store.ListReservations(c.Request.Context(), machineID, query.From, query.To)
	if err != nil {
		internalError(c, err)
		return
	}

	var callerID int64
	if p, ok := optionalPrincipal(c); ok {
		callerID = p.UserID
	}

	entries := make([]calendarReservation, 0, len(reservations))
	for _, r := range reservations {
		entry := calendarReservation{Start: r.StartTime, End: r.EndTime}
		switch {
		case r.Special:
			entry.Type = "make"
			entry.DisplayText = r.SpecialText
		case r.EventID != nil:
			entry.Type = "event"
		case r.UserID == callerID:
			entry.Type = "own"
			entry.DisplayText = r.Comment
		default:
			entry.Type = "normal"
		}
		entries = append(entries, entry)
	}

	rules, err := h.store.ListRules(c.Request.Context(), machine.MachineTypeID)
	if err != nil {
		internalError(c, err)
		return
	}
	rulePeriods := make([]gin.H, 0, len(rules))
	for i := range rules {
		periods := schedule.PeriodsOf(&rules[i])
		pairs := make([][2]float64, 0, len(periods))
		for _, p := range periods {
			pairs = append(pairs, [2]float64{p.Start, p.End})
		}
		rulePeriods = append(rulePeriods, gin.H{
			"periods":    pairs,
			"maxInside":  rules[i].MaxHours,
			"maxCrossed": rules[i].MaxHoursBorderCrossed,
		})
	}

	c.JSON(http.StatusOK, gin.H{"reservations": entries, "rules": rulePeriods})
}

// GetUsageRule handles GET /api/machine-types/:id/usage-rule.
func (h *Handler) GetUsageRule(c *gin.Context) {
	machineTypeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	rule, err := h.store.UsageRule(c.Request.Context(), machineTypeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no usage rule for this machine type"})
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// PutUsageRule handles PUT /api/machine-types/:id/usage-rule. Operators only.
func (h *Handler) PutUsageRule(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if !p.Has(reservation.CapManageMachines) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "managing usage rules requires the manage-machines capability"})
		return
	}
	machineTypeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule := &model.MachineUsageRule{MachineTypeID: machineTypeID, Content: req.Content}
	if err := h.store.SaveUsageRule(c.Request.Context(), rule); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}
