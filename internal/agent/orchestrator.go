package agent

import (
	"context"
	"math"
	"time"

	"github.com/neomind-iot/neomind/internal/observability"
	"github.com/neomind-iot/neomind/internal/registry"
	"github.com/neomind-iot/neomind/internal/telemetry"
	"github.com/neomind-iot/neomind/pkg/models"
)

// Orchestrator wraps a Runtime with the turn-level decisions that happen
// before the agentic loop ever starts: classify the inbound message's
// intent, try to answer it directly from the Device Registry/Telemetry
// Store without a model round trip, and only fall through to the full
// Runtime.ProcessStream loop when neither is possible. It mirrors the way
// Runtime.ProcessStream itself wraps the agentic loop with event emission
// and session locking — another composition layer, not a rewrite.
type Orchestrator struct {
	runtime    *Runtime
	fastPath   *FastPathRouter
	safeguards StreamSafeguards
	toolCache  *ToolResultCache
}

// NewOrchestrator builds an Orchestrator around an existing Runtime. reg and
// store may be nil, in which case the fast path is always skipped and every
// turn falls straight through to the Runtime.
func NewOrchestrator(runtime *Runtime, reg registry.Registry, store telemetry.Store, safeguards StreamSafeguards) *Orchestrator {
	var fp *FastPathRouter
	if reg != nil && store != nil {
		fp = NewFastPathRouter(reg, store)
	}
	return &Orchestrator{
		runtime:    runtime,
		fastPath:   fp,
		safeguards: sanitizeStreamSafeguards(safeguards),
		toolCache:  NewToolResultCache(5 * time.Minute),
	}
}

// ToolCache exposes the orchestrator's shared tool-result cache so callers
// wiring up a ToolRegistry can consult it before executing a cacheable tool.
func (o *Orchestrator) ToolCache() *ToolResultCache {
	return o.toolCache
}

// ProcessStream classifies the inbound message, attempts a direct answer via
// the fast path, and either emits a short-circuited event stream (intent
// classified, fast path taken, model completed, run finished) or delegates
// unchanged to Runtime.ProcessStream, prefixed with the same intent.classified
// event so downstream consumers see a consistent event sequence either way.
func (o *Orchestrator) ProcessStream(ctx context.Context, session *models.Session, msg *models.Message) (<-chan models.AgentEvent, error) {
	intent := ClassifyIntent(msg.Content)

	if o.fastPath != nil {
		answer, handled, err := o.fastPath.Try(ctx, intent, msg.Content)
		if err == nil && handled {
			return o.shortCircuit(ctx, session, msg, intent, answer), nil
		}
	}

	eventCh, err := o.runtime.ProcessStream(ctx, session, msg)
	if err != nil {
		return nil, err
	}
	return o.prefixIntent(ctx, session, msg, intent, eventCh), nil
}

// shortCircuit builds a minimal, self-contained event stream for a fast-path
// answer: no tool calls, no model round trip, just the four events a client
// needs to render the turn and know it finished.
func (o *Orchestrator) shortCircuit(ctx context.Context, session *models.Session, msg *models.Message, intent IntentResult, answer string) <-chan models.AgentEvent {
	bpSink, eventCh := NewBackpressureSink(DefaultBackpressureConfig())

	go func() {
		defer bpSink.Close()

		runID := session.ID + "-" + msg.ID
		statsCollector := NewStatsCollector(runID)
		statsSink := NewCallbackSink(statsCollector.OnEvent)
		sink := NewMultiSink(bpSink, NewPluginSink(o.runtime.plugins), statsSink)
		emitter := NewEventEmitter(runID, sink)

		runCtx := observability.AddRunID(ctx, runID)
		runCtx = observability.AddSessionID(runCtx, session.ID)
		runCtx = observability.AddMessageID(runCtx, msg.ID)
		if session.AgentID != "" {
			runCtx = observability.AddAgentID(runCtx, session.AgentID)
		}

		emitter.RunStarted(runCtx)
		emitter.IntentClassified(runCtx, string(intent.Category), intent.Confidence, intent.Keywords)
		emitter.FastPathTaken(runCtx, "device-registry")
		emitter.ModelDelta(runCtx, answer)
		emitter.ModelCompleted(runCtx, "fastpath", "", 0, 0)

		stats := statsCollector.Stats()
		dropped := bpSink.DroppedCount()
		if dropped > uint64(math.MaxInt) {
			stats.DroppedEvents = math.MaxInt
		} else {
			stats.DroppedEvents = int(dropped)
		}
		emitter.RunFinished(context.Background(), stats)
	}()

	return eventCh
}

// prefixIntent passes an already-running Runtime event stream through
// unchanged, first emitting a standalone intent.classified event so a fast
// path miss is just as observable as a hit.
func (o *Orchestrator) prefixIntent(ctx context.Context, session *models.Session, msg *models.Message, intent IntentResult, upstream <-chan models.AgentEvent) <-chan models.AgentEvent {
	out := make(chan models.AgentEvent, cap(upstream))
	go func() {
		defer close(out)

		runID := session.ID + "-" + msg.ID
		emitter := NewEventEmitter(runID, NewCallbackSink(func(_ context.Context, e models.AgentEvent) {
			out <- e
		}))
		emitter.IntentClassified(ctx, string(intent.Category), intent.Confidence, intent.Keywords)

		for event := range upstream {
			out <- event
		}
	}()
	return out
}
