package telemetry

import (
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/tidemark-ai/coxswain/internal/core/domain"
	"github.com/tidemark-ai/coxswain/internal/core/ports"
	"github.com/tidemark-ai/coxswain/internal/logger"
)

// NoopEmitter is the default sink: the engine core carries no dependency
// on any telemetry backend.
type NoopEmitter struct{}

func NewNoopEmitter() *NoopEmitter {
	return &NoopEmitter{}
}

func (*NoopEmitter) Emit(*domain.TelemetryEvent) {}
func (*NoopEmitter) Close()                      {}

// LogEmitter writes outcome events to the structured log, the built-in
// sink for deployments without an external telemetry backend.
type LogEmitter struct {
	logger *logger.StyledLogger
}

func NewLogEmitter(styled *logger.StyledLogger) *LogEmitter {
	return &LogEmitter{logger: styled}
}

func (e *LogEmitter) Emit(event *domain.TelemetryEvent) {
	args := []any{
		"model", event.Model,
		"task_type", event.TaskType.String(),
		"success", event.Success,
		"latency_ms", event.LatencyMs,
		"cost_usd", event.CostUSD,
		"tenant", event.TenantID,
		"tokens", event.TokensUsed,
	}
	if event.QualityScore != nil {
		args = append(args, "quality", *event.QualityScore)
	}
	e.logger.Debug("routing.outcome", args...)
}

func (e *LogEmitter) Close() {}

const defaultBufferSize = 256

// AsyncEmitter decouples emission from the request path: events are
// dispatched on a single background goroutine and dropped, counted, when
// the buffer is full. A failing or slow sink can never slow down or fail
// an outcome recording.
type AsyncEmitter struct {
	sink    ports.TelemetryEmitter
	events  chan *domain.TelemetryEvent
	stop    chan struct{}
	done    chan struct{}
	dropped *xsync.Counter
	logger  *logger.StyledLogger
}

func NewAsyncEmitter(sink ports.TelemetryEmitter, styled *logger.StyledLogger) *AsyncEmitter {
	e := &AsyncEmitter{
		sink:    sink,
		events:  make(chan *domain.TelemetryEvent, defaultBufferSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		dropped: xsync.NewCounter(),
		logger:  styled,
	}
	go e.dispatchLoop()
	return e
}

func (e *AsyncEmitter) Emit(event *domain.TelemetryEvent) {
	select {
	case e.events <- event:
	default:
		e.dropped.Inc()
	}
}

func (e *AsyncEmitter) Dropped() int64 {
	return e.dropped.Value()
}

func (e *AsyncEmitter) Close() {
	close(e.stop)
	<-e.done
	e.sink.Close()
}

func (e *AsyncEmitter) dispatchLoop() {
	defer close(e.done)

	for {
		select {
		case event := <-e.events:
			e.dispatch(event)
		case <-e.stop:
			// Drain whatever was already queued.
			for {
				select {
				case event := <-e.events:
					e.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (e *AsyncEmitter) dispatch(event *domain.TelemetryEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("telemetry sink panicked", "panic", r)
		}
	}()
	e.sink.Emit(event)
}

// MultiEmitter fans one event out to several sinks, each isolated from
// the others' failures.
type MultiEmitter struct {
	sinks  []ports.TelemetryEmitter
	logger *logger.StyledLogger
}

func NewMultiEmitter(styled *logger.StyledLogger, sinks ...ports.TelemetryEmitter) *MultiEmitter {
	return &MultiEmitter{sinks: sinks, logger: styled}
}

func (e *MultiEmitter) Emit(event *domain.TelemetryEvent) {
	for _, sink := range e.sinks {
		e.emitOne(sink, event)
	}
}

func (e *MultiEmitter) emitOne(sink ports.TelemetryEmitter, event *domain.TelemetryEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("telemetry sink panicked", "panic", r)
		}
	}()
	sink.Emit(event)
}

func (e *MultiEmitter) Close() {
	for _, sink := range e.sinks {
		sink.Close()
	}
}
