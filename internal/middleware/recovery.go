package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"aspos-sync/pkg/apierror"
)

// Recovery turns a handler panic into a 500 response and logs the stack.
func Recovery(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(logrus.Fields{
						"component": "http",
						"path":      r.URL.Path,
						"panic":     err,
						"stack":     string(debug.Stack()),
					}).Error("handler panic")
					writeError(w, apierror.InternalError("internal server error"))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
