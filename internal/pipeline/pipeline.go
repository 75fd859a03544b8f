// Package pipeline drives an experiment execution through
// Idle -> Confirmed -> Running -> Complete, sequencing and timestamping the
// events a producer emits. The pipeline never interprets event text; it only
// stamps, appends, and detects end-of-stream.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Phase is the pipeline's lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConfirmed
	PhaseRunning
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConfirmed:
		return "confirmed"
	case PhaseRunning:
		return "running"
	case PhaseComplete:
		return "complete"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// EventKind classifies an execution event.
type EventKind int

const (
	KindInfo EventKind = iota
	KindSuccess
	KindChaos
	KindError
)

func (k EventKind) String() string {
	switch k {
	case KindInfo:
		return "info"
	case KindSuccess:
		return "success"
	case KindChaos:
		return "chaos"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one stamped entry of the execution log. Elapsed is a monotonic
// offset from the moment the run started; emission order is append order.
type Event struct {
	Elapsed time.Duration `yaml:"elapsed"`
	Text    string        `yaml:"text"`
	Kind    EventKind     `yaml:"kind"`
}

// StreamEvent is what a producer emits: text plus classification, or a
// mid-stream failure. Producers close their channel to signal end-of-stream.
type StreamEvent struct {
	Text string
	Kind EventKind
	Err  error
}

// Request carries everything a producer needs to execute an experiment.
type Request struct {
	DocumentKind string
	Action       string
	Target       string
	Duration     string
	Manifest     string
}

// Executor produces a lazy, finite, non-restartable event stream for a
// request. Implementations may suspend arbitrarily between events; the
// returned channel must be closed exactly once.
type Executor interface {
	Run(ctx context.Context, req Request) <-chan StreamEvent
}

var (
	// ErrNotConfirmed rejects starting a run that was never confirmed.
	ErrNotConfirmed = errors.New("pipeline: execution has not been confirmed")
	// ErrAlreadyStarted rejects confirm/cancel once a run is in flight.
	ErrAlreadyStarted = errors.New("pipeline: execution already started")
)

// Option customizes a pipeline instance.
type Option func(*Pipeline)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// Pipeline is the state machine for one execution. A pipeline is single-use:
// after Complete it can only be read, never restarted.
type Pipeline struct {
	mu          sync.Mutex
	phase       Phase
	events      []Event
	clock       func() time.Time
	started     time.Time
	lastElapsed time.Duration
	runID       string
	values      map[string]string
	finalValues map[string]string
	out         chan Event
	done        chan struct{}
}

// New returns an idle pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		phase: PhaseIdle,
		clock: time.Now,
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Phase returns the current lifecycle state.
func (p *Pipeline) Phase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// RunID identifies this execution once started.
func (p *Pipeline) RunID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runID
}

// Confirm records the operator's explicit approval. It is the only way out of
// Idle; nothing confirms implicitly.
func (p *Pipeline) Confirm() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.phase {
	case PhaseIdle:
		p.phase = PhaseConfirmed
		return nil
	case PhaseConfirmed:
		return nil
	default:
		return ErrAlreadyStarted
	}
}

// Cancel walks the single backward edge, Confirmed -> Idle. Once Running has
// begun there is no abort.
func (p *Pipeline) Cancel() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.phase {
	case PhaseConfirmed:
		p.phase = PhaseIdle
		return nil
	case PhaseIdle:
		return nil
	default:
		return ErrAlreadyStarted
	}
}

// Start transitions Confirmed -> Running and begins consuming the producer.
// Events are delivered incrementally on the returned channel, which is closed
// when the pipeline reaches Complete. The values map is referenced until
// completion; the caller guarantees it is not mutated while the run is active
// (the navigation lock enforces this).
func (p *Pipeline) Start(ctx context.Context, exec Executor, req Request, values map[string]string) (<-chan Event, error) {
	p.mu.Lock()
	if p.phase != PhaseConfirmed {
		p.mu.Unlock()
		if p.phase == PhaseIdle {
			return nil, ErrNotConfirmed
		}
		return nil, ErrAlreadyStarted
	}
	p.phase = PhaseRunning
	p.runID = uuid.NewString()
	p.started = p.clock()
	p.values = values
	p.out = make(chan Event, 16)
	out := p.out
	p.mu.Unlock()

	go p.consume(exec.Run(ctx, req))
	return out, nil
}

func (p *Pipeline) consume(stream <-chan StreamEvent) {
	for ev := range stream {
		if ev.Err != nil {
			// A producer failure terminates the run: one Error event, then
			// Complete. Retry policy belongs to the producer, not here.
			p.append(Event{Text: ev.Err.Error(), Kind: KindError})
			// Drain whatever the producer still emits before closing so its
			// goroutine never blocks on an abandoned send.
			go func() {
				for range stream {
				}
			}()
			break
		}
		p.append(Event{Text: ev.Text, Kind: ev.Kind})
	}
	p.complete()
}

// append stamps the event with a strictly increasing offset and forwards it
// to the subscriber.
func (p *Pipeline) append(ev Event) {
	p.mu.Lock()
	elapsed := p.clock().Sub(p.started)
	if elapsed <= p.lastElapsed {
		elapsed = p.lastElapsed + time.Nanosecond
	}
	p.lastElapsed = elapsed
	ev.Elapsed = elapsed
	p.events = append(p.events, ev)
	out := p.out
	p.mu.Unlock()
	out <- ev
}

func (p *Pipeline) complete() {
	p.mu.Lock()
	if p.phase == PhaseComplete {
		p.mu.Unlock()
		return
	}
	p.phase = PhaseComplete
	p.finalValues = make(map[string]string, len(p.values))
	for k, v := range p.values {
		p.finalValues[k] = v
	}
	out := p.out
	p.mu.Unlock()
	close(out)
	close(p.done)
}

// Events returns a copy of the stamped event log so far.
func (p *Pipeline) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	events := make([]Event, len(p.events))
	copy(events, p.events)
	return events
}

// FinalValues returns the field values frozen at completion. Nil until the
// pipeline reaches Complete.
func (p *Pipeline) FinalValues() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finalValues == nil {
		return nil
	}
	values := make(map[string]string, len(p.finalValues))
	for k, v := range p.finalValues {
		values[k] = v
	}
	return values
}

// Done is closed when the pipeline reaches Complete.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}
