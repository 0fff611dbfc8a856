package container

import (
	"sync/atomic"

	"github.com/km-arc/go-beans/framework/beans"
)

// chain is the construction path of one resolution call, innermost last.
// Nodes are immutable apart from the early reference and the done flag, and
// a chain is only walked by the goroutine that built it. Lazy handles are the
// exception: they keep the node that injected them and read done from
// whichever goroutine dereferences them.
type chain struct {
	parent *chain
	def    *beans.BeanDefinition
	done   atomic.Bool

	// raw instance published by an EarlyReference definition
	early    any
	hasEarly bool

	// instance wrapped by the proxy definition being built
	target    any
	hasTarget bool
}

func (c *chain) push(def *beans.BeanDefinition) *chain {
	return &chain{parent: c, def: def}
}

func (c *chain) wrapping(def *beans.BeanDefinition, target any) *chain {
	n := c.push(def)
	n.target, n.hasTarget = target, true
	return n
}

func (c *chain) find(def *beans.BeanDefinition) *chain {
	for n := c; n != nil; n = n.parent {
		if n.def == def {
			return n
		}
	}
	return nil
}

// live returns the innermost node still under construction.
func (c *chain) live() *chain {
	for n := c; n != nil; n = n.parent {
		if !n.done.Load() {
			return n
		}
	}
	return nil
}

func (c *chain) finish() {
	if c != nil {
		c.done.Store(true)
	}
}

func (c *chain) publish(instance any) {
	c.early, c.hasEarly = instance, true
}

// cycle builds the error for re-entering def.
func (c *chain) cycle(def *beans.BeanDefinition) error {
	var path []string
	for n := c; n != nil; n = n.parent {
		path = append(path, n.def.String())
		if n.def == def {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	path = append(path, def.String())
	return &beans.CircularDependencyError{Chain: path}
}
