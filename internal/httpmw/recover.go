package httpmw

import (
	"net/http"

	"github.com/promptexify/promptexify/internal/log"
	"github.com/promptexify/promptexify/internal/secheaders"
	"github.com/promptexify/promptexify/internal/xerrors"
)

// Recover converts a handler panic into a 500 response. The response carries
// the minimal hardening headers so an internal failure never ships a reply
// with security headers stripped, and the body never leaks panic detail.
// onPanic is an optional metrics hook.
func Recover(base log.Logger, onPanic func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if onPanic != nil {
					onPanic()
				}

				var err error
				if e, ok := rec.(error); ok {
					err = xerrors.WithStack(e)
				} else {
					err = xerrors.Newf("panic: %v", rec)
				}

				ctx := r.Context()
				base.With(
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
				).Error(ctx, err, "httpserver panic recovered")

				secheaders.Minimal().Apply(w.Header())
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
