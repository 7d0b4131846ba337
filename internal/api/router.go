package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"makerspace-reservation-backend/internal/mw"
	"makerspace-reservation-backend/internal/reservation"
	"makerspace-reservation-backend/internal/store"
)

// RouterOptions tunes the middleware; zero values fall back to sane defaults.
type RouterOptions struct {
	RateLimitPerSec float64
	RateLimitBurst  int
	CacheTTL        time.Duration
}

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, svc *reservation.Service, opts RouterOptions) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, svc)

	if opts.RateLimitPerSec <= 0 {
		opts.RateLimitPerSec = 10
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 5
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}

	rateLimiter := mw.RateLimiter(rate.Limit(opts.RateLimitPerSec), opts.RateLimitBurst)

	// Rules and machine metadata are read-hot; responses are cached and the
	// cache is flushed whenever a mutation goes through.
	cacheStore := cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	caching := mw.Cache(cacheStore, opts.CacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter, mw.Invalidate(cacheStore))
	{
		api.GET("/machine-types", caching, handler.GetMachineTypes)
		api.GET("/machines", caching, handler.GetMachines)
		api.POST("/machines", handler.PostMachine)
		api.PUT("/machines/:id", handler.PutMachine)

		api.GET("/machines/:id/calendar", handler.GetCalendar)
		api.GET("/machines/:id/free-slots", handler.GetFreeSlots)

		api.GET("/machine-types/:id/rules", caching, handler.GetRules)
		api.POST("/machine-types/:id/rules", handler.PostRule)
		api.POST("/machine-types/:id/rules/validate", handler.PostRuleValidation)
		api.PUT("/machine-types/:id/rules/:ruleId", handler.PutRule)
		api.DELETE("/machine-types/:id/rules/:ruleId", handler.DeleteRule)

		api.GET("/machine-types/:id/usage-rule", caching, handler.GetUsageRule)
		api.PUT("/machine-types/:id/usage-rule", handler.PutUsageRule)

		api.GET("/quotas", handler.GetQuotas)
		api.POST("/quotas", handler.PostQuota)
		api.DELETE("/quotas/:id", handler.DeleteQuota)

		api.POST("/reservations", handler.PostReservation)
		api.PUT("/reservations/:id", handler.PutReservation)
		api.DELETE("/reservations/:id", handler.DeleteReservation)
	}

	return r
}
