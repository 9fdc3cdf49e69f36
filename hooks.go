package uniqloc

import (
	"sync"

	"github.com/openagenda-tools/uniqloc/pkg/reconciler"
)

// Phase names a pipeline step.
type Phase string

// Pipeline phases, in run order.
const (
	PhaseLoad      Phase = "load"
	PhaseReconcile Phase = "reconcile"
	PhaseAssign    Phase = "assign"
	PhasePatch     Phase = "patch"
	PhaseReport    Phase = "report"
)

// Hook function types for run events
type (
	// DecisionHook is called for every event before its decision is applied
	DecisionHook func(ev reconciler.Event, d reconciler.Decision)

	// PhaseHook is called after a phase ends, with its error if any
	PhaseHook func(phase Phase, err error)
)

// hooks manages run callbacks
type hooks struct {
	mu         sync.RWMutex
	onDecision []DecisionHook
	onPhase    []PhaseHook
}

func newHooks() *hooks {
	return &hooks{}
}

// OnDecision registers a decision callback
func (h *hooks) OnDecision(fn DecisionHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDecision = append(h.onDecision, fn)
}

// OnPhase registers a phase callback
func (h *hooks) OnPhase(fn PhaseHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onPhase = append(h.onPhase, fn)
}

func (h *hooks) triggerDecision(ev reconciler.Event, d reconciler.Decision) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onDecision {
		fn(ev, d)
	}
}

func (h *hooks) triggerPhase(phase Phase, err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onPhase {
		fn(phase, err)
	}
}
