package events

import (
	"context"
	"sync"

	"github.com/serenitylab/meditation-pipeline/internal/telemetry"
)

// Publisher delivers events in the background. Callers return immediately
// and delivery failures surface only as telemetry.
type Publisher struct {
	sink    Sink
	emitter telemetry.Emitter
	wg      sync.WaitGroup
}

// NewPublisher wraps a sink with fire-and-forget delivery.
func NewPublisher(sink Sink, emitter telemetry.Emitter) *Publisher {
	if sink == nil {
		sink = Noop{}
	}
	if emitter == nil {
		emitter = telemetry.Noop{}
	}
	return &Publisher{sink: sink, emitter: emitter}
}

// Publish schedules delivery and returns without waiting for it.
func (p *Publisher) Publish(event Event) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sink.Publish(context.Background(), event); err != nil {
			p.emitter.EmitLog("warn", "analytics delivery failed: "+err.Error(),
				map[string]string{"event_type": event.Type},
				telemetry.Correlation{SessionID: event.SessionID, Stage: "events"})
		}
	}()
}

// Flush waits for in-flight deliveries. Intended for shutdown and tests.
func (p *Publisher) Flush() {
	p.wg.Wait()
}
