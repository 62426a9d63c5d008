package middleware

import (
	"fmt"
	"log"
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/labelscan/backend/pkg/utils"
)

// Recoverer turns a panic into a JSON 500 response in the standard error envelope.
// The panic value is only exposed in details when exposeDetails is set.
func Recoverer(exposeDetails bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.Printf("[http] panic recovered request_id=%s %s %s: %v\n%s",
					chimw.GetReqID(r.Context()), r.Method, r.URL.Path, rec, debug.Stack())

				details := ""
				if exposeDetails {
					details = fmt.Sprint(rec)
				}
				if r.Header.Get("Connection") != "Upgrade" {
					utils.RespondFailure(w, http.StatusInternalServerError, "internal server error", details)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
