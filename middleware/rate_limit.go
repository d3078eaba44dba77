package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RateLimitConfig sizes a per-caller token bucket
type RateLimitConfig struct {
	// Requests is the bucket size, refilled evenly over Window
	Requests int
	Window   time.Duration
	// KeyFunc identifies the caller (defaults to ClientKey)
	KeyFunc func(c echo.Context) string
	// Message is returned with the 429
	Message string
}

// RateLimiter throttles callers on echo's in-memory limiter store. Idle callers are
// evicted by the store itself once a window has passed without a request.
type RateLimiter struct {
	config     RateLimitConfig
	store      *echomiddleware.RateLimiterMemoryStore
	retryAfter string
}

// NewRateLimiter creates a new rate limiter with the given configuration
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = ClientKey
	}
	if config.Message == "" {
		config.Message = "Too many requests. Please try again later."
	}
	if config.Requests < 1 {
		config.Requests = 1
	}

	interval := config.Window / time.Duration(config.Requests)
	return &RateLimiter{
		config: config,
		store: echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Every(interval),
			Burst:     config.Requests,
			ExpiresIn: config.Window,
		}),
		retryAfter: strconv.Itoa(int(math.Max(1, math.Ceil(interval.Seconds())))),
	}
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: rl.store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return rl.config.KeyFunc(c), nil
		},
		// the wait for the next token
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			c.Response().Header().Set(echo.HeaderRetryAfter, rl.retryAfter)
			return echo.NewHTTPError(http.StatusTooManyRequests, rl.config.Message)
		},
	})
}

// Pre-configured rate limiters

// IngestRateLimiter limits case writes to 600 per minute per calling system
var IngestRateLimiter = NewRateLimiter(RateLimitConfig{
	Requests: 600,
	Window:   1 * time.Minute,
	Message:  "Too many case updates. Please slow down your requests.",
})

// ReadRateLimiter limits case reads to 1200 per minute per calling system
var ReadRateLimiter = NewRateLimiter(RateLimitConfig{
	Requests: 1200,
	Window:   1 * time.Minute,
	Message:  "Rate limit exceeded. Please slow down your requests.",
})
