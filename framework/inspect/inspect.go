// Package inspect exposes a read-only view of the container over HTTP.
//
//	GET /beans                 every definition, registration order
//	GET /beans?scope=prototype filter by scope
//	GET /beans?instantiated=1  only beans with a cached instance
//	GET /beans/{key}           one definition by id, alias or generated key
//
// The Inspector is a regular bean: register it and the routing provider
// mounts it.
package inspect

import (
	"net/http"
	"strconv"

	"github.com/km-arc/go-beans/framework/container"
	gohttp "github.com/km-arc/go-beans/framework/http"
	"github.com/km-arc/go-beans/framework/routing"
)

// Source is the part of the container the inspector reads.
type Source interface {
	Describe() []container.BeanInfo
	DescribeBean(key string) (container.BeanInfo, bool)
}

// Inspector serves bean snapshots.
type Inspector struct {
	Prefix string `config:"inspect.prefix"`

	src Source
}

// New creates an inspector over src mounted at prefix.
func New(src Source, prefix string) *Inspector {
	return &Inspector{Prefix: prefix, src: src}
}

// SetContainer receives the owning container when built as a bean.
func (i *Inspector) SetContainer(c *container.Container) { i.src = c }

// Routes mounts the inspector endpoints.
func (i *Inspector) Routes(r *routing.Router) {
	prefix := i.Prefix
	if prefix == "" {
		prefix = "/beans"
	}
	r.Prefix(prefix, func(api *routing.Router) {
		api.Get("/", i.list)
		api.Get("/{key}", i.show)
	})
}

func (i *Inspector) list(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	scope := q.Get("scope")
	onlyLive, _ := strconv.ParseBool(q.Get("instantiated"))

	out := make([]container.BeanInfo, 0)
	for _, info := range i.src.Describe() {
		if scope != "" && info.Scope != scope {
			continue
		}
		if onlyLive && !info.Instantiated {
			continue
		}
		out = append(out, info)
	}
	gohttp.NewResponse(w).Success(out)
}

func (i *Inspector) show(w http.ResponseWriter, req *http.Request) {
	res := gohttp.NewResponse(w)
	key := routing.Param(req, "key")
	info, ok := i.src.DescribeBean(key)
	if !ok {
		res.NotFound("no bean '" + key + "'")
		return
	}
	res.Success(info)
}

var (
	_ routing.Registrar        = (*Inspector)(nil)
	_ container.ContainerAware = (*Inspector)(nil)
)
