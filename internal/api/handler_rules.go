package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"makerspace-reservation-backend/internal/model"
)

// ruleRequest is the payload for creating, updating or validating a rule.
type ruleRequest struct {
	StartTime             string  `json:"startTime" binding:"required,daytime"`
	EndTime               string  `json:"endTime" binding:"required,daytime"`
	DaysChanged           int     `json:"daysChanged" binding:"min=0,max=7"`
	StartDays             []int   `json:"startDays" binding:"required,min=1,max=7,dive,min=1,max=7"`
	MaxHours              float64 `json:"maxHours" binding:"min=0"`
	MaxHoursBorderCrossed float64 `json:"maxHoursBorderCrossed" binding:"min=0"`
}

func (r *ruleRequest) toModel(machineTypeID, id int64) *model.ReservationRule {
	start, _ := model.ParseDayTime(r.StartTime)
	end, _ := model.ParseDayTime(r.EndTime)
	return &model.ReservationRule{
		ID:                    id,
		MachineTypeID:         machineTypeID,
		StartTime:             start,
		EndTime:               end,
		DaysChanged:           r.DaysChanged,
		StartDays:             model.WeekdaySetOf(r.StartDays...),
		MaxHours:              r.MaxHours,
		MaxHoursBorderCrossed: r.MaxHoursBorderCrossed,
	}
}

// GetRules handles GET /api/machine-types/:id/rules.
func (h *Handler) GetRules(c *gin.Context) {
	machineTypeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	rules, err := h.store.ListRules(c.Request.Context(), machineTypeID)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// PostRule handles POST /api/machine-types/:id/rules.
func (h *Handler) PostRule(c *gin.Context) {
	h.saveRule(c, 0)
}

// PutRule handles PUT /api/machine-types/:id/rules/:ruleId.
func (h *Handler) PutRule(c *gin.Context) {
	ruleID, ok := pathID(c, "ruleId")
	if !ok {
		return
	}
	h.saveRule(c, ruleID)
}

func (h *Handler) saveRule(c *gin.Context, ruleID int64) {
	p, ok := principal(c)
	if !ok {
		return
	}
	machineTypeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule := req.toModel(machineTypeID, ruleID)
	rejections, err := h.service.SaveRule(c.Request.Context(), p, rule)
	if err != nil {
		internalError(c, err)
		return
	}
	if len(rejections) > 0 {
		rejected(c, rejections)
		return
	}
	status := http.StatusOK
	if ruleID == 0 {
		status = http.StatusCreated
	}
	c.JSON(status, rule)
}

// PostRuleValidation handles POST /api/machine-types/:id/rules/validate. It
// runs the full rule validation without persisting, for form previews.
func (h *Handler) PostRuleValidation(c *gin.Context) {
	machineTypeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		ruleRequest
		RuleID int64 `json:"ruleId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rejections, err := h.service.ValidateRule(c.Request.Context(), req.toModel(machineTypeID, req.RuleID))
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

// DeleteRule handles DELETE /api/machine-types/:id/rules/:ruleId.
func (h *Handler) DeleteRule(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	ruleID, ok := pathID(c, "ruleId")
	if !ok {
		return
	}
	rejections, err := h.service.DeleteRule(c.Request.Context(), p, ruleID)
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
