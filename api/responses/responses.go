package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessEnvelope{Data: data})
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	typed := typedError(err)
	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	switch typed.Code() {
	case pkgerrors.CodeValidation,
		pkgerrors.CodeForbidden,
		pkgerrors.CodeUnauthorized,
		pkgerrors.CodeNotFound,
		pkgerrors.CodeConflict,
		pkgerrors.CodeIdempotency,
		pkgerrors.CodeRateLimit:
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	payload := ErrorEnvelope{
		Error: APIError{
			Code:      string(typed.Code()),
			Message:   msg,
			Retryable: pkgerrors.Retryable(typed),
			RequestID: requestIDFrom(ctx),
		},
	}

	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			payload.Error.Details = details
		}
	}

	logRequestError(ctx, logg, err, typed)
	writeJSON(w, meta.HTTPStatus, payload)
}

// WriteAction renders a cart mutation outcome. A nil err yields 200; otherwise
// the status follows the error code while the body keeps the action shape.
func WriteAction(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error, action ActionEnvelope) {
	status := http.StatusOK
	if err != nil {
		typed := typedError(err)
		status = pkgerrors.MetadataFor(typed.Code()).HTTPStatus
		logRequestError(ctx, logg, err, typed)
	}
	writeJSON(w, status, action)
}

func typedError(err error) *pkgerrors.Error {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	return typed
}

func logRequestError(ctx context.Context, logg *logger.Logger, err error, typed *pkgerrors.Error) {
	if logg == nil {
		return
	}
	fields := pkgerrors.Dump(err).Fields()

	if d := typed.Details(); d != nil {
		if dm, ok := d.(map[string]any); ok {
			if step, ok := dm["step"]; ok {
				fields["step"] = step
			}
		}
	}

	ctx = logg.WithFields(ctx, fields)
	switch typed.Code() {
	case pkgerrors.CodeInternal, pkgerrors.CodeInvariant, pkgerrors.CodeDependency:
		logg.Error(ctx, "request.error", err)
	default:
		logg.Warn(ctx, "request.rejected")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
