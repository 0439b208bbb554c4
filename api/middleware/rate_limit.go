package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/shopfront-backend/api/responses"
	"github.com/angelmondragon/shopfront-backend/api/validators"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
)

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitRule counts requests sharing the key returned by Key. An empty key
// skips the rule for that request.
type RateLimitRule struct {
	Dimension string
	Limit     int
	NeedsBody bool
	Key       func(r *http.Request, body []byte) string
}

// RateLimitPolicy is a named set of rules sharing one fixed window.
type RateLimitPolicy struct {
	name   string
	window time.Duration
	rules  []RateLimitRule
}

// NewRateLimitPolicy drops rules without a positive limit.
func NewRateLimitPolicy(name string, window time.Duration, rules ...RateLimitRule) RateLimitPolicy {
	p := RateLimitPolicy{name: strings.ToLower(strings.TrimSpace(name)), window: window}
	if p.name == "" {
		p.name = "default"
	}
	for _, rule := range rules {
		if rule.Limit > 0 && rule.Key != nil {
			p.rules = append(p.rules, rule)
		}
	}
	return p
}

// NewAuthRateLimitPolicy limits a credential endpoint per client address and
// per submitted email. Emails are hashed before they reach redis or the logs.
func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) RateLimitPolicy {
	return NewRateLimitPolicy(name, window,
		RateLimitRule{Dimension: "ip", Limit: ipLimit, Key: func(r *http.Request, _ []byte) string {
			return clientIP(r)
		}},
		RateLimitRule{Dimension: "email", Limit: emailLimit, NeedsBody: true, Key: func(_ *http.Request, body []byte) string {
			if email := normalizeEmail(extractEmail(body)); email != "" {
				return hashValue(email)
			}
			return ""
		}},
	)
}

func (p RateLimitPolicy) enabled() bool {
	return p.window > 0 && len(p.rules) > 0
}

func (p RateLimitPolicy) needsBody() bool {
	for _, rule := range p.rules {
		if rule.NeedsBody {
			return true
		}
	}
	return false
}

// AuthRateLimit applies policy in front of an auth handler. Every rule must
// pass; the first one over its limit answers 429.
func AuthRateLimit(policy RateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var body []byte
			if policy.needsBody() {
				var err error
				if body, err = validators.ReadBody(w, r); err != nil {
					responses.WriteError(ctx, logg, w, err)
					return
				}
			}

			remaining := int64(-1)
			for _, rule := range policy.rules {
				key := rule.Key(r, body)
				if key == "" {
					continue
				}
				scope := policy.name + ":" + rule.Dimension + ":" + key
				allowed, count, err := store.FixedWindowAllow(ctx, scope, int64(rule.Limit), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					respondRateLimited(ctx, logg, w, policy, rule, key, count)
					return
				}
				if left := int64(rule.Limit) - count; remaining < 0 || left < remaining {
					remaining = left
				}
			}
			if remaining >= 0 {
				w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func respondRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy RateLimitPolicy, rule RateLimitRule, key string, count int64) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":         policy.name,
			"scope":          rule.Dimension,
			"key":            key,
			"attempts":       count,
			"limit":          rule.Limit,
			"window_seconds": int(policy.window.Seconds()),
		}), "auth.rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(policy.window.Seconds())))
	w.Header().Set("X-RateLimit-Remaining", "0")
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// socket address.
func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		first, _, _ := strings.Cut(header, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func extractEmail(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return body.Email
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
