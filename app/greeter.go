// Package app is the demo application the CLI boots: a small greeting
// service wired entirely through bean definitions.
package app

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/km-arc/go-beans/framework/config"
	"github.com/km-arc/go-beans/framework/logging"
)

// Clock tells the time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Greeter builds greetings.
type Greeter interface {
	Greet(name string) string
}

// Defaults are the lowest-precedence configuration values of the demo.
var Defaults = map[string]string{
	"greeting.word": "Hello",
}

// GreetingSettings are bound from the "greeting" config prefix.
type GreetingSettings struct {
	Word     string               `config:"word" validate:"required"`
	Shout    bool                 `config:"shout"`
	Farewell config.Value[string] `config:"farewell"`
}

// PoliteGreeter is the default Greeter.
type PoliteGreeter struct {
	Settings GreetingSettings `config:"greeting"`
	Clock    Clock            `autowire:"@"`
}

func (g *PoliteGreeter) Greet(name string) string {
	msg := fmt.Sprintf("%s, %s", g.Settings.Word, name)
	if g.Settings.Shout {
		msg = strings.ToUpper(msg)
	}
	if g.Clock.Now().Hour() >= 22 && g.Settings.Farewell.Bound() {
		msg += ". " + g.Settings.Farewell.Get()
	}
	return msg
}

// TimedGreeter wraps every Greeter and logs how long a greeting took.
type TimedGreeter struct {
	Log   logging.Logger `autowire:"@"`
	inner Greeter
}

func (t *TimedGreeter) SetProxyTarget(target any) { t.inner = target.(Greeter) }

func (t *TimedGreeter) Greet(name string) string {
	start := time.Now()
	msg := t.inner.Greet(name)
	t.Log.WithField("took", time.Since(start).String()).Debug("greeted ", name)
	return msg
}

// VisitCounter counts greetings. It is built on first use.
type VisitCounter struct {
	n atomic.Int64
}

func (v *VisitCounter) Add() int64 { return v.n.Add(1) }
