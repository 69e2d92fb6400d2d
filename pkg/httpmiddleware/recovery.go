package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// panicEnvelope mirrors the API's JSON error envelope so a panicking request
// looks like any other failed request to clients.
type panicEnvelope struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Recovery returns a middleware that recovers from panics, logs them with a
// stack trace, and answers with the standard error envelope. The panic value
// never reaches the response body.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					zctx.From(r.Context()).Error("panic recovered",
						zap.Any("panic", rec),
						zap.Stack("stack"),
					)

					var env panicEnvelope
					env.Error.Code = "INTERNAL_ERROR"
					env.Error.Message = "internal error"
					env.Timestamp = time.Now().UTC()

					w.Header().Set("Connection", "close")
					w.Header().Set("Content-Type", "application/json; charset=utf-8")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(env)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
