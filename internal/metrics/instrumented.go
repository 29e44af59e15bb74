package metrics

import (
	"errors"
	"time"

	"github.com/4lexvav/logkv/pkg/kv"
)

// InstrumentedEngine wraps any kv.Engine with Prometheus instrumentation.
// The pattern works for every backend behind the interface.
type InstrumentedEngine struct {
	engine kv.Engine
}

var _ kv.Engine = (*InstrumentedEngine)(nil)

func NewInstrumentedEngine(engine kv.Engine) *InstrumentedEngine {
	return &InstrumentedEngine{engine: engine}
}

func (i *InstrumentedEngine) Get(key string) (string, bool, error) {
	start := time.Now()
	value, found, err := i.engine.Get(key)
	observe("get", start, err)
	return value, found, err
}

func (i *InstrumentedEngine) Set(key, value string) error {
	start := time.Now()
	err := i.engine.Set(key, value)
	observe("set", start, err)
	return err
}

func (i *InstrumentedEngine) Remove(key string) error {
	start := time.Now()
	err := i.engine.Remove(key)
	observe("remove", start, err)
	return err
}

func (i *InstrumentedEngine) Reset() error {
	start := time.Now()
	err := i.engine.Reset()
	observe("reset", start, err)
	return err
}

func (i *InstrumentedEngine) Close() error {
	return i.engine.Close()
}

func observe(op string, start time.Time, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, kv.ErrKeyNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}

	OpsTotal.WithLabelValues(op, outcome).Inc()
	OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
