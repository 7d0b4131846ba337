package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"makerspace-reservation-backend/internal/model"
	"makerspace-reservation-backend/internal/reject"
	"makerspace-reservation-backend/internal/reservation"
	"makerspace-reservation-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	service *reservation.Service
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, svc *reservation.Service) *Handler {
	return &Handler{store: s, service: svc}
}

func init() {
	// "daytime" validates "HH:MM[:SS]" strings on rule payloads.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("daytime", func(fl validator.FieldLevel) bool {
			_, err := model.ParseDayTime(fl.Field().String())
			return err == nil
		})
	}
}

// principal reads the authenticated caller the surrounding web application
// attached to the request. Authentication itself happens upstream; the core
// only receives the result.
func principal(c *gin.Context) (reservation.Principal, bool) {
	userID, err := strconv.ParseInt(c.GetHeader("X-User-Id"), 10, 64)
	if err != nil || userID <= 0 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid X-User-Id header"})
		return reservation.Principal{}, false
	}
	var caps []string
	if raw := c.GetHeader("X-Capabilities"); raw != "" {
		for _, cap := range strings.Split(raw, ",") {
			caps = append(caps, strings.TrimSpace(cap))
		}
	}
	return reservation.NewPrincipal(userID, caps...), true
}

// optionalPrincipal is like principal but for endpoints that also serve
// anonymous readers; it never aborts the request.
func optionalPrincipal(c *gin.Context) (reservation.Principal, bool) {
	userID, err := strconv.ParseInt(c.GetHeader("X-User-Id"), 10, 64)
	if err != nil || userID <= 0 {
		return reservation.Principal{}, false
	}
	var caps []string
	if raw := c.GetHeader("X-Capabilities"); raw != "" {
		for _, cap := range strings.Split(raw, ",") {
			caps = append(caps, strings.TrimSpace(cap))
		}
	}
	return reservation.NewPrincipal(userID, caps...), true
}

// statusFor maps a rejection list to an HTTP status, keyed on its first
// reason.
func statusFor(rejections reject.List) int {
	if len(rejections) == 0 {
		return http.StatusUnprocessableEntity
	}
	switch rejections[0].Kind {
	case reject.NotFound:
		return http.StatusNotFound
	case reject.Forbidden, reject.MissingCapability:
		return http.StatusForbidden
	case reject.Overlap, reject.TooManySimultaneous, reject.QuotaExhausted:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

// rejected writes the rejection reasons as a structured response.
func rejected(c *gin.Context, rejections reject.List) {
	c.JSON(statusFor(rejections), gin.H{
		"error":      rejections.Error(),
		"rejections": rejections,
	})
}

func internalError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
