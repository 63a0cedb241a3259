package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/nnamdiosuji/okrika-backend/api/responses"
	pkgerrors "github.com/nnamdiosuji/okrika-backend/pkg/errors"
	"github.com/nnamdiosuji/okrika-backend/pkg/logger"
)

// Recoverer converts handler panics into a 500 response instead of
// tearing down the listener connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				err := fmt.Errorf("panic: %v", rec)
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{
						"panic": rec,
						"stack": string(debug.Stack()),
					})
					logg.Error(ctx, "panic.recovered", err)
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
