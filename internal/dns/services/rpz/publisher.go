package rpz

import (
	"sync"
	"sync/atomic"
)

type published struct {
	engine *Engine
	gen    uint64
}

// Publisher hands out the current Engine to readers without locking.
// Writers build or clone an Engine off to the side and swap it in.
type Publisher struct {
	current atomic.Pointer[published]
	writeMu sync.Mutex
}

// NewPublisher returns a Publisher serving e. A nil e means an empty engine.
func NewPublisher(e *Engine) *Publisher {
	if e == nil {
		e = NewEngine()
	}
	p := &Publisher{}
	p.current.Store(&published{engine: e, gen: 1})
	return p
}

// Load returns the engine visible to readers. It must not be modified.
func (p *Publisher) Load() *Engine {
	return p.current.Load().engine
}

// Generation increases by one on every Publish.
func (p *Publisher) Generation() uint64 {
	return p.current.Load().gen
}

func (p *Publisher) snapshot() *published {
	return p.current.Load()
}

// Publish makes e visible to readers and returns its generation.
func (p *Publisher) Publish(e *Engine) uint64 {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.publishLocked(e)
}

func (p *Publisher) publishLocked(e *Engine) uint64 {
	if e == nil {
		e = NewEngine()
	}
	next := &published{engine: e, gen: p.current.Load().gen + 1}
	p.current.Store(next)
	return next.gen
}

// ReplaceZone publishes a copy of the current engine with z at index,
// growing the slot list as needed.
func (p *Publisher) ReplaceZone(index int, z *Zone) (uint64, error) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	next := p.Load().Clone()
	next.AssureZones(index)
	if err := next.SetZone(index, z); err != nil {
		return 0, err
	}
	return p.publishLocked(next), nil
}
