package routing_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/km-arc/go-beans/framework/logging"
	"github.com/km-arc/go-beans/framework/routing"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func newRouter() *routing.Router {
	return routing.New(logging.Discard())
}

func do(t *testing.T, router *routing.Router, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// ── HTTP verbs ────────────────────────────────────────────────────────────────

func TestRouter_Verbs(t *testing.T) {
	r := newRouter()
	r.Get("/beans", okHandler)
	r.Post("/beans", okHandler)
	r.Put("/beans/{id}", okHandler)
	r.Delete("/beans/{id}", okHandler)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/beans"},
		{http.MethodPost, "/beans"},
		{http.MethodPut, "/beans/1"},
		{http.MethodDelete, "/beans/1"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := do(t, r, tt.method, tt.path)
			if rr.Code != http.StatusOK {
				t.Errorf("got %d want 200", rr.Code)
			}
		})
	}
}

func TestRouter_NotFound(t *testing.T) {
	r := newRouter()
	rr := do(t, r, http.MethodGet, "/not-registered")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestRouter_Param(t *testing.T) {
	r := newRouter()
	r.Get("/beans/{id}", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(routing.Param(req, "id")))
	})

	rr := do(t, r, http.MethodGet, "/beans/42")
	if rr.Body.String() != "42" {
		t.Errorf("got body %q want %q", rr.Body.String(), "42")
	}
}

// ── Prefix / Group ───────────────────────────────────────────────────────────

func TestRouter_Prefix(t *testing.T) {
	r := newRouter()
	r.Prefix("/debug", func(api *routing.Router) {
		api.Get("/beans", okHandler)
	})

	if rr := do(t, r, http.MethodGet, "/debug/beans"); rr.Code != http.StatusOK {
		t.Errorf("GET /debug/beans: got %d want 200", rr.Code)
	}
	if rr := do(t, r, http.MethodGet, "/beans"); rr.Code != http.StatusNotFound {
		t.Errorf("GET /beans: expected 404, got %d", rr.Code)
	}
}

func TestRouter_Group_Middleware(t *testing.T) {
	called := false
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			next.ServeHTTP(w, r)
		})
	}

	r := newRouter()
	r.Group(func(g *routing.Router) {
		g.Middleware(mw)
		g.Get("/protected", okHandler)
	})

	do(t, r, http.MethodGet, "/protected")
	if !called {
		t.Error("expected middleware to be called")
	}
}

func TestRouter_RecoversPanics(t *testing.T) {
	r := newRouter()
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	if rr := do(t, r, http.MethodGet, "/boom"); rr.Code != http.StatusInternalServerError {
		t.Errorf("got %d want 500", rr.Code)
	}
}

// ── Registrars ───────────────────────────────────────────────────────────────

type pingRoutes struct{ calls int }

func (p *pingRoutes) Routes(r *routing.Router) {
	p.calls++
	r.Get("/ping", okHandler)
}

func TestRouter_Mount(t *testing.T) {
	r := newRouter()
	p := &pingRoutes{}

	r.Mount(p)
	r.Mount(p)

	if p.calls != 1 {
		t.Errorf("Routes called %d times, want 1", p.calls)
	}
	if len(r.Mounted()) != 1 {
		t.Errorf("Mounted(): got %d want 1", len(r.Mounted()))
	}
	if rr := do(t, r, http.MethodGet, "/ping"); rr.Code != http.StatusOK {
		t.Errorf("GET /ping: got %d want 200", rr.Code)
	}
}

// ── Access log ───────────────────────────────────────────────────────────────

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	r := routing.New(logging.New(&buf, logrus.InfoLevel))
	r.Get("/ping", okHandler)

	do(t, r, http.MethodGet, "/ping")

	line := buf.String()
	for _, want := range []string{"method=GET", "path=/ping", "status=200", "bytes=2"} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q does not contain %q", line, want)
		}
	}
}

func TestRouter_HandlerInterface(t *testing.T) {
	var _ http.Handler = newRouter().Handler()
}
