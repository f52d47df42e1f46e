package opl

import (
	"fmt"
	"io"
)

// EventKind identifies a recorded backend call.
type EventKind int

const (
	EventWrite EventKind = iota
	EventDelay
	EventClock
)

// Event is one backend call seen by a Recorder.
type Event struct {
	Kind           EventKind
	Which          int
	Reg            int
	Data           byte
	Ticks          int
	SamplesPerTick float64
}

func (e Event) String() string {
	switch e.Kind {
	case EventDelay:
		return fmt.Sprintf("delay %d", e.Ticks)
	case EventClock:
		return fmt.Sprintf("clock %.3f samples/tick", e.SamplesPerTick)
	default:
		return fmt.Sprintf("chip %d reg %03X = %02X", e.Which, e.Reg, e.Data)
	}
}

// Recorder is a Backend that logs everything written to it. With Trace
// set, each event is also printed as it happens.
type Recorder struct {
	Events []Event
	Trace  io.Writer

	// Mode reported to IO; OPL3 doubles the channels per chip.
	OPL3Mode bool
}

func (r *Recorder) Open(numChips int) (int, error) { return numChips, nil }
func (r *Recorder) Close() error                   { return nil }
func (r *Recorder) OPL3() bool                     { return r.OPL3Mode }

func (r *Recorder) WriteReg(which, reg int, data byte) {
	r.add(Event{Kind: EventWrite, Which: which, Reg: reg, Data: data})
}

func (r *Recorder) SetClockRate(samplesPerTick float64) {
	r.add(Event{Kind: EventClock, SamplesPerTick: samplesPerTick})
}

func (r *Recorder) WriteDelay(ticks int) {
	if ticks > 0 {
		r.add(Event{Kind: EventDelay, Ticks: ticks})
	}
}

func (r *Recorder) add(e Event) {
	r.Events = append(r.Events, e)
	if r.Trace != nil {
		fmt.Fprintln(r.Trace, e)
	}
}

// Writes returns only the register writes.
func (r *Recorder) Writes() []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Kind == EventWrite {
			out = append(out, e)
		}
	}
	return out
}

// Reset discards the recorded events.
func (r *Recorder) Reset() {
	r.Events = r.Events[:0]
}
