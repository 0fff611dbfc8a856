package app

import (
	"net/http"

	"github.com/km-arc/go-beans/framework/beans"
	"github.com/km-arc/go-beans/framework/container"
	gohttp "github.com/km-arc/go-beans/framework/http"
	"github.com/km-arc/go-beans/framework/routing"
)

// GreetRoutes serves GET /greet/{name}.
type GreetRoutes struct {
	Greeter Greeter                       `autowire:"@"`
	Visits  container.Lazy[*VisitCounter] `autowire:"@"`
	Extras  container.LazyList[Greeter]   `autowire:"@,qualifier=extra"`
}

func (g *GreetRoutes) Routes(r *routing.Router) {
	r.Get("/greet/{name}", g.greet)
}

func (g *GreetRoutes) greet(w http.ResponseWriter, req *http.Request) {
	res := gohttp.NewResponse(w)
	visits, err := g.Visits.Get()
	if err != nil {
		res.Fail(err)
		return
	}
	extras, err := g.Extras.Get()
	if err != nil {
		res.Fail(err)
		return
	}

	name := routing.Param(req, "name")
	also := make([]string, 0, len(extras))
	for _, e := range extras {
		also = append(also, e.Greet(name))
	}
	res.Success(map[string]any{
		"message": g.Greeter.Greet(name),
		"also":    also,
		"visits":  visits.Add(),
	})
}

// AppServiceProvider registers the demo beans.
type AppServiceProvider struct {
	container.BaseProvider
}

func (p *AppServiceProvider) Register(c *container.Container) error {
	greeter := beans.TypeOf[Greeter]()
	return c.Register(
		beans.DefineOf[Clock]().Instance(systemClock{}).Definition(),
		beans.DefineOf[Greeter]().
			ID("greeter").
			Implementation(beans.TypeOf[*PoliteGreeter]()).
			Primary().
			Definition(),
		beans.Define(greeter).
			Named("pirate").
			Implementation(beans.TypeOf[*PoliteGreeter]()).
			Property("Settings", beans.Literal(GreetingSettings{Word: "Ahoy"})).
			Qualify("extra").
			Lazy().
			Definition(),
		beans.Define(greeter).
			Implementation(beans.TypeOf[*TimedGreeter]()).
			ProxyFor(beans.ProxySpec{Typed: true}).
			Definition(),
		beans.DefineOf[*VisitCounter]().Lazy().Definition(),
		beans.DefineOf[*GreetRoutes]().
			Also(beans.TypeOf[routing.Registrar](), "").
			Definition(),
	)
}
