package rest

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

// RouteSetter is implemented by every handler of this package
type RouteSetter interface {
	SetupRoutes(router *mux.Router)
}

// RouteFunc adapts a plain function to RouteSetter
type RouteFunc func(router *mux.Router)

func (f RouteFunc) SetupRoutes(router *mux.Router) {
	f(router)
}

// NewRouter mounts the handlers and the shared middlewares. CORS wraps the router
// so preflight requests are answered before method matching.
func NewRouter(logger outbound.Logger, allowedOrigins []string, handlers ...RouteSetter) http.Handler {
	router := mux.NewRouter()
	router.Use(requestLogger(logger))

	for _, h := range handlers {
		if h != nil {
			h.SetupRoutes(router)
		}
	}

	if len(allowedOrigins) == 0 {
		return router
	}
	return cors(allowedOrigins)(router)
}

func requestLogger(logger outbound.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("Request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}

func cors(allowedOrigins []string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && originAllowed(allowedOrigins, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				w.Header().Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(allowed []string, origin string) bool {
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
