package middleware

import (
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

var rateLimitDigits = regexp.MustCompile(`\D`)

// OTPRateLimit limits OTP requests per phone number, or per IP when the body
// names none. Without Redis it is a no-op.
func OTPRateLimit(cache *redis.Client, maxPerMin int, logger *slog.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		var req struct {
			PhoneNumber string `json:"phoneNumber"`
		}
		_ = c.BodyParser(&req)
		subject := rateLimitDigits.ReplaceAllString(req.PhoneNumber, "")
		if subject == "" {
			subject = c.IP()
		}
		key := "rl:otp:" + subject
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			// fail open
			logger.Warn("otp rate limit lookup failed", slog.Any("error", err))
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many OTP requests, try again later")
		}
		return c.Next()
	}
}
