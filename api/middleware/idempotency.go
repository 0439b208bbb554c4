package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/shopfront-backend/api/responses"
	"github.com/angelmondragon/shopfront-backend/api/validators"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/shopfront-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"

	defaultIdempotencyTTL  = 24 * time.Hour
	inFlightTTL            = 30 * time.Second
	maxIdempotencyKeyBytes = 128

	stateInFlight = "in_flight"
	stateDone     = "done"
)

// idempotentRoutes maps "METHOD pattern" to how long a response is replayable.
var idempotentRoutes = map[string]time.Duration{
	http.MethodPost + " /api/v1/auth/register": defaultIdempotencyTTL,
	http.MethodPost + " /api/v1/cart/items":    defaultIdempotencyTTL,
	http.MethodPost + " /api/v1/cart/merge":    defaultIdempotencyTTL,
}

// replayedHeaders are captured with the response. Set-Cookie matters for a
// first add-to-cart, which issues the guest cart cookie.
var replayedHeaders = []string{"Content-Type", "Set-Cookie"}

type idempotencyRecord struct {
	State       string              `json:"state"`
	RequestHash string              `json:"request_hash"`
	Status      int                 `json:"status,omitempty"`
	Body        []byte              `json:"body,omitempty"`
	Headers     map[string][]string `json:"headers,omitempty"`
}

// IdempotencyStore is what the middleware needs from redis.
type IdempotencyStore interface {
	pkgredis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Idempotency makes covered routes safe to retry. The first request carrying
// an Idempotency-Key reserves it, runs, and stores its response; a repeat with
// the same body replays that response, a repeat with another body is rejected,
// and a repeat while the first is still running gets 409. Server errors
// release the key so the client can retry. Requests without the header run
// normally.
func Idempotency(store IdempotencyStore, cartCookie string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, covered := routeTTL(r.Method, routePattern(r))
			rawKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if !covered || store == nil || rawKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			if len(rawKey) > maxIdempotencyKeyBytes {
				responses.WriteError(ctx, logg, w, pkgerrors.Newf(pkgerrors.CodeValidation, "%s must be at most %d bytes", IdempotencyHeader, maxIdempotencyKeyBytes))
				return
			}

			body, err := validators.ReadBody(w, r)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			hash := requestHash(r, body)
			key := store.IdempotencyKey(buildScope(r, cartCookie), rawKey)

			reserved, err := reserve(ctx, store, key, hash)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replayOrReject(ctx, store, key, hash, w, logg)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := defaultStatus(rec.status)
			if status >= http.StatusInternalServerError {
				if delErr := store.Del(ctx, key); delErr != nil {
					logError(ctx, logg, "release idempotency key", delErr)
				}
				return
			}

			done := idempotencyRecord{
				State:       stateDone,
				RequestHash: hash,
				Status:      status,
				Body:        rec.body.Bytes(),
				Headers:     capturedHeaders(rec.Header()),
			}
			payload, err := json.Marshal(done)
			if err != nil {
				logError(ctx, logg, "marshal idempotency record", err)
				return
			}
			if err := store.Set(ctx, key, string(payload), ttl); err != nil {
				logError(ctx, logg, "persist idempotency record", err)
			}
		})
	}
}

func reserve(ctx context.Context, store IdempotencyStore, key, hash string) (bool, error) {
	marker, err := json.Marshal(idempotencyRecord{State: stateInFlight, RequestHash: hash})
	if err != nil {
		return false, err
	}
	return store.SetNX(ctx, key, string(marker), inFlightTTL)
}

func replayOrReject(ctx context.Context, store IdempotencyStore, key, hash string, w http.ResponseWriter, logg *logger.Logger) {
	stored, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// the holder failed and released the key between our SetNX and Get
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key was interrupted, retry"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency record"))
		return
	}

	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case record.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request"))
	case record.State != stateDone:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still in progress"))
	default:
		for name, values := range record.Headers {
			for _, v := range values {
				w.Header().Add(name, v)
			}
		}
		w.Header().Set(ReplayedHeader, "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(record.Body)
	}
}

// buildScope keys records by actor: the user when signed in, otherwise the
// guest cart cookie, falling back to the client address for first visits.
func buildScope(r *http.Request, cartCookie string) string {
	actor := UserIDFromContext(r.Context())
	if actor == "" && cartCookie != "" {
		if c, err := r.Cookie(cartCookie); err == nil && c.Value != "" {
			actor = "guest:" + c.Value
		}
	}
	if actor == "" {
		actor = "ip:" + clientIP(r)
	}
	return actor + "|" + r.Method + "|" + r.URL.Path
}

// requestHash binds a key to the exact request; the same key on another
// route or with another body does not match.
func requestHash(r *http.Request, body []byte) string {
	h := sha256.New()
	_, _ = io.WriteString(h, r.Method+" "+r.URL.Path+"\n")
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func capturedHeaders(h http.Header) map[string][]string {
	var out map[string][]string
	for _, name := range replayedHeaders {
		values := h.Values(name)
		if len(values) == 0 {
			continue
		}
		if out == nil {
			out = make(map[string][]string, len(replayedHeaders))
		}
		out[name] = append([]string(nil), values...)
	}
	return out
}

func defaultStatus(value int) int {
	if value == 0 {
		return http.StatusOK
	}
	return value
}

func routePattern(r *http.Request) string {
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		// inside a mounted subrouter the pattern is still "/prefix/*"
		if pattern := ctx.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "*") {
			return pattern
		}
	}
	return r.URL.Path
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	ttl, ok := idempotentRoutes[method+" "+pattern]
	return ttl, ok
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
