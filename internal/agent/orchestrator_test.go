package agent

import (
	"context"
	"testing"
	"time"

	"github.com/neomind-iot/neomind/internal/sessions"
	"github.com/neomind-iot/neomind/pkg/models"
)

// doneProvider is a minimal LLMProvider that always answers "done" with no
// tool calls, standing in for a real model in orchestrator fall-through tests.
type doneProvider struct {
	calls int
}

func (p *doneProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	p.calls++
	ch := make(chan *CompletionChunk, 2)
	ch <- &CompletionChunk{Text: "done"}
	ch <- &CompletionChunk{Done: true}
	close(ch)
	return ch, nil
}

func drainEvents(ch <-chan models.AgentEvent, timeout time.Duration) []models.AgentEvent {
	var events []models.AgentEvent
	deadline := time.After(timeout)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, e)
		case <-deadline:
			return events
		}
	}
}

func TestOrchestratorFastPathShortCircuitsWithoutCallingRuntime(t *testing.T) {
	reg, store := setupFastPathFixtures(t)
	provider := &doneProvider{}
	runtime := NewRuntime(provider, sessions.NewMemoryStore())
	orch := NewOrchestrator(runtime, reg, store, DefaultStreamSafeguards())

	session := &models.Session{ID: "fastpath-session", Channel: models.ChannelTelegram}
	msg := &models.Message{ID: "m1", Role: models.RoleUser, Content: "is the kitchen thermostat online?"}

	ch, err := orch.ProcessStream(context.Background(), session, msg)
	if err != nil {
		t.Fatalf("ProcessStream: %v", err)
	}
	events := drainEvents(ch, time.Second)

	var sawIntent, sawFastPath, sawRunFinished bool
	for _, e := range events {
		switch e.Type {
		case models.AgentEventIntentClassified:
			sawIntent = true
		case models.AgentEventFastPathTaken:
			sawFastPath = true
		case models.AgentEventRunFinished:
			sawRunFinished = true
		}
	}
	if !sawIntent {
		t.Error("expected an intent.classified event")
	}
	if !sawFastPath {
		t.Error("expected a fastpath.taken event")
	}
	if !sawRunFinished {
		t.Error("expected a run.finished event")
	}
	if provider.calls != 0 {
		t.Fatalf("expected fast path to avoid calling the LLM provider, got %d calls", provider.calls)
	}
}

func TestOrchestratorFallsThroughToRuntimeOnFastPathMiss(t *testing.T) {
	reg, store := setupFastPathFixtures(t)
	provider := &doneProvider{}
	runtime := NewRuntime(provider, sessions.NewMemoryStore())
	orch := NewOrchestrator(runtime, reg, store, DefaultStreamSafeguards())

	session := &models.Session{ID: "fallthrough-session", Channel: models.ChannelTelegram}
	msg := &models.Message{ID: "m1", Role: models.RoleUser, Content: "write me a poem about clouds"}

	ch, err := orch.ProcessStream(context.Background(), session, msg)
	if err != nil {
		t.Fatalf("ProcessStream: %v", err)
	}
	events := drainEvents(ch, 2*time.Second)

	var sawIntent, sawFastPath, sawRunFinished bool
	for _, e := range events {
		switch e.Type {
		case models.AgentEventIntentClassified:
			sawIntent = true
		case models.AgentEventFastPathTaken:
			sawFastPath = true
		case models.AgentEventRunFinished:
			sawRunFinished = true
		}
	}
	if !sawIntent {
		t.Error("expected an intent.classified event even on a fast-path miss")
	}
	if sawFastPath {
		t.Error("did not expect a fastpath.taken event for an unrelated prompt")
	}
	if !sawRunFinished {
		t.Error("expected the full run to complete")
	}
	if provider.calls == 0 {
		t.Fatal("expected the LLM provider to be invoked on a fast-path miss")
	}
}

func TestOrchestratorWithoutRegistryAlwaysFallsThrough(t *testing.T) {
	provider := &doneProvider{}
	runtime := NewRuntime(provider, sessions.NewMemoryStore())
	orch := NewOrchestrator(runtime, nil, nil, DefaultStreamSafeguards())

	session := &models.Session{ID: "no-fastpath-session", Channel: models.ChannelTelegram}
	msg := &models.Message{ID: "m1", Role: models.RoleUser, Content: "is the kitchen thermostat online?"}

	ch, err := orch.ProcessStream(context.Background(), session, msg)
	if err != nil {
		t.Fatalf("ProcessStream: %v", err)
	}
	drainEvents(ch, 2*time.Second)

	if provider.calls == 0 {
		t.Fatal("expected the LLM provider to be invoked when no fast path is configured")
	}
}
