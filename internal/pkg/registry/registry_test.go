package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModule struct {
	name     string
	priority int
	initErr  error
	order    *[]string
}

func (m fakeModule) Name() string  { return m.name }
func (m fakeModule) Priority() int { return m.priority }
func (m fakeModule) Init(ctx *ModuleContext) error {
	*m.order = append(*m.order, m.name)
	return m.initErr
}

func withRegistry(t *testing.T) {
	saved := moduleRegistry
	moduleRegistry = make(map[string]Module)
	t.Cleanup(func() { moduleRegistry = saved })
}

func TestInitModulesOrder(t *testing.T) {
	withRegistry(t)
	var order []string
	Register(fakeModule{name: "checkin", priority: 30, order: &order})
	Register(fakeModule{name: "event", priority: 10, order: &order})
	Register(fakeModule{name: "coupon", priority: 30, order: &order})
	Register(fakeModule{name: "ticket", priority: 20, order: &order})

	require.NoError(t, InitModules(&ModuleContext{}))
	assert.Equal(t, []string{"event", "ticket", "checkin", "coupon"}, order)
}

func TestInitModulesStopsOnError(t *testing.T) {
	withRegistry(t)
	var order []string
	Register(fakeModule{name: "a", priority: 1, initErr: errors.New("boom"), order: &order})
	Register(fakeModule{name: "b", priority: 2, order: &order})

	err := InitModules(&ModuleContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init module a")
	assert.Equal(t, []string{"a"}, order)
}

func TestProvideLookup(t *testing.T) {
	ctx := &ModuleContext{}
	ctx.Provide("greeting", "hola")

	got, err := Lookup[string](ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hola", got)

	_, err = Lookup[int](ctx, "greeting")
	assert.Error(t, err)
	_, err = Lookup[string](ctx, "missing")
	assert.Error(t, err)
}

func TestShutdownOrder(t *testing.T) {
	ctx := &ModuleContext{}
	var order []int
	ctx.OnShutdown(func() { order = append(order, 1) })
	ctx.OnShutdown(func() { order = append(order, 2) })
	ctx.Shutdown()
	assert.Equal(t, []int{2, 1}, order)
}
