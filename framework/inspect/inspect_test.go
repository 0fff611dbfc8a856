package inspect_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-beans/framework/beans"
	"github.com/km-arc/go-beans/framework/config"
	"github.com/km-arc/go-beans/framework/container"
	"github.com/km-arc/go-beans/framework/inspect"
	"github.com/km-arc/go-beans/framework/logging"
	"github.com/km-arc/go-beans/framework/routing"
)

type clock struct{}

type ticker struct {
	Clock *clock `autowire:"@"`
}

type listing struct {
	Data []container.BeanInfo `json:"data"`
}

func setup(t *testing.T, settings map[string]string) (*container.Container, *routing.Router) {
	t.Helper()
	repo := config.NewRepository(config.NewMapSource("test", settings))
	c := container.New(container.WithLogger(logging.Discard()), container.WithConfig(repo))
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Register(
		beans.DefineOf[*clock]().ID("clock").Definition(),
		beans.DefineOf[*ticker]().Prototype().Definition(),
		beans.DefineOf[*inspect.Inspector]().Also(beans.TypeOf[routing.Registrar](), "").Definition(),
	))
	require.NoError(t, c.Init())

	regs, err := container.All[routing.Registrar](c)
	require.NoError(t, err)
	r := routing.New(logging.Discard())
	r.Mount(regs...)
	return c, r
}

func get(t *testing.T, r http.Handler, path string, out any) int {
	t.Helper()
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && rr.Code == http.StatusOK {
		require.NoError(t, json.NewDecoder(rr.Body).Decode(out))
	}
	return rr.Code
}

func TestInspector_ListsEveryBean(t *testing.T) {
	_, r := setup(t, nil)

	var body listing
	require.Equal(t, http.StatusOK, get(t, r, "/beans", &body))
	require.Len(t, body.Data, 3)

	assert.Equal(t, "clock", body.Data[0].Key)
	assert.Equal(t, "singleton", body.Data[0].Scope)
	assert.True(t, body.Data[0].Instantiated)
	assert.Equal(t, "READY", body.Data[0].State)

	assert.Equal(t, "prototype", body.Data[1].Scope)
	assert.False(t, body.Data[1].Instantiated)
	assert.Len(t, body.Data[1].Key, 36)
}

func TestInspector_Filters(t *testing.T) {
	_, r := setup(t, nil)

	var protos listing
	get(t, r, "/beans?scope=prototype", &protos)
	require.Len(t, protos.Data, 1)
	assert.Equal(t, "*inspect_test.ticker", protos.Data[0].Type)

	var live listing
	get(t, r, "/beans?instantiated=true", &live)
	assert.Len(t, live.Data, 2)
}

func TestInspector_ShowsOneBean(t *testing.T) {
	c, r := setup(t, nil)

	var body struct {
		Data container.BeanInfo `json:"data"`
	}
	require.Equal(t, http.StatusOK, get(t, r, "/beans/clock", &body))
	assert.Equal(t, "*inspect_test.clock", body.Data.Type)

	ticker := c.Describe()[1]
	require.Equal(t, http.StatusOK, get(t, r, "/beans/"+ticker.Key, &body))
	assert.Equal(t, "prototype", body.Data.Scope)

	assert.Equal(t, http.StatusNotFound, get(t, r, "/beans/nope", nil))
}

func TestInspector_PrefixFromConfig(t *testing.T) {
	_, r := setup(t, map[string]string{"inspect.prefix": "/debug/beans"})

	assert.Equal(t, http.StatusOK, get(t, r, "/debug/beans", nil))
	assert.Equal(t, http.StatusNotFound, get(t, r, "/beans", nil))
}

type fixedSource []container.BeanInfo

func (f fixedSource) Describe() []container.BeanInfo { return f }

func (f fixedSource) DescribeBean(key string) (container.BeanInfo, bool) {
	for _, info := range f {
		if info.Key == key {
			return info, true
		}
	}
	return container.BeanInfo{}, false
}

func TestInspector_StandaloneSource(t *testing.T) {
	r := routing.New(logging.Discard())
	r.Mount(inspect.New(fixedSource{{Key: "a", Scope: "singleton"}}, "/x"))

	var body listing
	require.Equal(t, http.StatusOK, get(t, r, "/x", &body))
	assert.Equal(t, "a", body.Data[0].Key)
}
