// Package routing wraps chi with the small surface the framework's HTTP
// endpoints need. Beans contribute routes by implementing Registrar; the
// routing provider mounts every Registrar found in the container at boot.
package routing

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/km-arc/go-beans/framework/logging"
)

// Router wraps chi.Router.
type Router struct {
	mux     chi.Router
	mounted []Registrar
}

// Registrar is implemented by beans that add routes to the router.
type Registrar interface {
	Routes(r *Router)
}

// New creates a Router with request ids, real ip, access logging through
// log and panic recovery.
func New(log logging.Logger) *Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(log))
	r.Use(middleware.Recoverer)
	return &Router{mux: r}
}

// ── HTTP verbs ───────────────────────────────────────────────────────────────

func (r *Router) Get(pattern string, h http.HandlerFunc)    { r.mux.Get(pattern, h) }
func (r *Router) Post(pattern string, h http.HandlerFunc)   { r.mux.Post(pattern, h) }
func (r *Router) Put(pattern string, h http.HandlerFunc)    { r.mux.Put(pattern, h) }
func (r *Router) Delete(pattern string, h http.HandlerFunc) { r.mux.Delete(pattern, h) }

// ── Groups & Prefixes ────────────────────────────────────────────────────────

// Group creates an inline group sharing the parent's prefix.
func (r *Router) Group(fn func(r *Router)) {
	r.mux.Group(func(mx chi.Router) {
		fn(&Router{mux: mx})
	})
}

// Prefix creates a sub-router under pattern.
func (r *Router) Prefix(pattern string, fn func(r *Router)) {
	r.mux.Route(pattern, func(mx chi.Router) {
		fn(&Router{mux: mx})
	})
}

// Middleware adds one or more middleware to the router.
func (r *Router) Middleware(mw ...func(http.Handler) http.Handler) {
	r.mux.Use(mw...)
}

// ── Registrars ───────────────────────────────────────────────────────────────

// Mount lets every registrar add its routes. A registrar already mounted on
// this router is skipped.
func (r *Router) Mount(regs ...Registrar) {
	for _, reg := range regs {
		if r.isMounted(reg) {
			continue
		}
		reg.Routes(r)
		r.mounted = append(r.mounted, reg)
	}
}

func (r *Router) isMounted(reg Registrar) bool {
	for _, m := range r.mounted {
		if m == reg {
			return true
		}
	}
	return false
}

// Mounted returns the registrars mounted so far.
func (r *Router) Mounted() []Registrar { return r.mounted }

// ── Params ───────────────────────────────────────────────────────────────────

// Param extracts a URL param.
func Param(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// ── Serve ────────────────────────────────────────────────────────────────────

// ServeHTTP implements http.Handler so Router can be passed to http.Server.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handler returns the underlying http.Handler.
func (r *Router) Handler() http.Handler {
	return r.mux
}

// AccessLog logs one line per request at info level.
func AccessLog(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, req)

			log.WithFields(map[string]any{
				"method":   req.Method,
				"path":     req.URL.Path,
				"status":   ww.Status(),
				"bytes":    ww.BytesWritten(),
				"duration": time.Since(start).String(),
				"request":  middleware.GetReqID(req.Context()),
			}).Info("request")
		})
	}
}
