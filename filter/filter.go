// Package filter provides a composable byte-stream pipeline placed between a
// network connection and its consumer. Stages transform bytes one way, from
// the wire toward the consumer, and can be inserted or removed while the
// stream is live without losing buffered data.
//
// A pipeline is confined to its connection's read goroutine. Stages never
// need internal locking for pipeline calls; a stage that runs its own
// goroutine (GzipDecoder) synchronizes internally.
package filter

import (
	"fmt"

	"github.com/c360/camstream/errors"
)

// Sink receives bytes flowing toward the consumer. Feed payloads are only
// valid for the duration of the call; implementations must copy bytes they
// retain. Close ends the stream, with a nil error for a clean close.
type Sink interface {
	Feed(p []byte) error
	Close(err error)
}

// Stage is a sink that transforms its input and forwards the result to a
// downstream sink.
type Stage interface {
	Sink

	// SetDownstream wires the sink that receives this stage's output.
	SetDownstream(s Sink)

	// Downstream returns the currently wired sink.
	Downstream() Sink

	// TakePending surrenders buffered input the stage has not transformed
	// yet. Called during removal so no bytes are lost at the seam.
	TakePending() []byte
}

// baseStage carries the downstream wiring shared by stage implementations.
type baseStage struct {
	downstream Sink
}

func (b *baseStage) SetDownstream(s Sink) { b.downstream = s }

func (b *baseStage) Downstream() Sink { return b.downstream }

// Pipeline is an ordered chain of stages ending in a terminal consumer.
// The zero stage pipeline feeds the terminal directly.
type Pipeline struct {
	head Sink
}

// NewPipeline creates a pipeline that delivers everything to terminal.
func NewPipeline(terminal Sink) *Pipeline {
	return &Pipeline{head: terminal}
}

// Feed pushes bytes into the chain.
func (p *Pipeline) Feed(b []byte) error {
	return p.head.Feed(b)
}

// Close propagates end of stream through every stage to the terminal.
func (p *Pipeline) Close(err error) {
	p.head.Close(err)
}

// Insert places stage immediately upstream of before, then replays pushback
// through the new stage so bytes buffered at the insertion point are not
// lost. before must already be in the chain.
func (p *Pipeline) Insert(stage Stage, before Sink, pushback []byte) error {
	if p.head == before {
		stage.SetDownstream(before)
		p.head = stage
	} else {
		upstream, err := p.upstreamOf(before)
		if err != nil {
			return errors.WrapInvalid(err, "Pipeline", "Insert", "sink not in pipeline")
		}
		stage.SetDownstream(before)
		upstream.SetDownstream(stage)
	}

	if len(pushback) > 0 {
		return stage.Feed(pushback)
	}
	return nil
}

// Remove detaches stage, reconnecting its neighbors directly. Input the
// stage had buffered but not transformed is handed to its former downstream
// verbatim before any further Feed calls.
func (p *Pipeline) Remove(stage Stage) error {
	next := stage.Downstream()

	if p.head == stage {
		p.head = next
	} else {
		upstream, err := p.upstreamOf(stage)
		if err != nil {
			return errors.WrapInvalid(err, "Pipeline", "Remove", "stage not in pipeline")
		}
		upstream.SetDownstream(next)
	}

	if pending := stage.TakePending(); len(pending) > 0 {
		return next.Feed(pending)
	}
	return nil
}

// upstreamOf walks the chain for the stage whose downstream is target.
func (p *Pipeline) upstreamOf(target Sink) (Stage, error) {
	cur := p.head
	for {
		st, ok := cur.(Stage)
		if !ok {
			return nil, fmt.Errorf("sink not found in chain")
		}
		if st.Downstream() == target {
			return st, nil
		}
		cur = st.Downstream()
		if cur == nil {
			return nil, fmt.Errorf("sink not found in chain")
		}
	}
}
