// Package middleware builds data objects from HTTP request bodies and hands
// them to handlers or dispatchers.
package middleware

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/reoring/customdata"
)

// MaxBodyBytes bounds the request body read by Decode and Action.
var MaxBodyBytes int64 = 1 << 20

// ctxKeyData is a typed context key; the type parameter keeps keys for
// different data types apart.
type ctxKeyData[T any] struct{}

// ContextWithData attaches d to ctx.
func ContextWithData[T any, PT interface {
	*T
	customdata.Data
}](ctx context.Context, d PT) context.Context {
	return context.WithValue(ctx, ctxKeyData[T]{}, d)
}

// DataFromContext retrieves the object stored by Decode.
func DataFromContext[T any, PT interface {
	*T
	customdata.Data
}](ctx context.Context) (PT, bool) {
	v, ok := ctx.Value(ctxKeyData[T]{}).(PT)
	return v, ok
}

// ErrorPayload shapes Issues for JSON responses.
func ErrorPayload(issues customdata.Issues) map[string]any {
	return map[string]any{"issues": issues}
}

// Decode builds a T from the request body and stores it on the request
// context for next. Undecodable bodies are answered with 400, oversized ones
// with 413 and failed audits with 422 and the issue list. next is not called
// on failure.
func Decode[T any, PT interface {
	*T
	customdata.Data
}](next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := Payload(w, r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		d, err := customdata.MakeFrom[T, PT](r.Context(), p)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithData[T, PT](r.Context(), d)))
	})
}

// Action serves d: the request body is the dispatch payload. Synchronous
// results are written as JSON with 200; deferred ones answer 202 with the
// task handle.
func Action(d *customdata.Dispatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := Payload(w, r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		out, err := d.Dispatch(r.Context(), p)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		if out.Deferred {
			WriteJSON(w, http.StatusAccepted, map[string]any{"task": out.Task.ID.String(), "queue": out.Task.Queue})
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"result": out.Value})
	})
}

// Payload reads the request body as JSON or YAML depending on Content-Type.
// An empty body yields an empty payload. Bodies over MaxBodyBytes fail with
// *http.MaxBytesError.
func Payload(w http.ResponseWriter, r *http.Request) (customdata.Payload, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return customdata.Raw{}, nil
	}
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "application/yaml", "application/x-yaml", "text/yaml":
		return customdata.YAML(body), nil
	default:
		return customdata.JSON(body), nil
	}
}

// WriteError maps err onto a status code and writes its issues. Errors that
// carry no issue information are answered with 500 and logged through the
// request context logger.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if status == http.StatusRequestEntityTooLarge {
		WriteJSON(w, status, map[string]any{"error": http.StatusText(status)})
		return
	}
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("customdata: request failed")
		WriteJSON(w, status, map[string]any{"error": http.StatusText(status)})
		return
	}
	WriteJSON(w, status, ErrorPayload(customdata.ToIssues(err)))
}

// StatusOf classifies err.
func StatusOf(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, customdata.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, customdata.ErrActionHandlerMethodNotFound),
		errors.Is(err, customdata.ErrActionWithNoArgument),
		errors.Is(err, customdata.ErrActionArgumentNotCustomData),
		errors.Is(err, customdata.ErrUncallableValue),
		errors.Is(err, customdata.ErrNoQueue):
		return http.StatusInternalServerError
	case errors.Is(err, customdata.ErrRecordNotFound):
		if e, ok := customdata.AsError(err); ok && e.Code == customdata.CodeDependencyUnavailable {
			return http.StatusInternalServerError
		}
		return http.StatusNotFound
	}
	if _, ok := customdata.AsError(err); ok {
		return http.StatusUnprocessableEntity
	}
	if _, ok := customdata.AsIssues(err); ok {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
