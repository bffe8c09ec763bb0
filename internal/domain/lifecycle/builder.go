package lifecycle

import (
	"context"
	"fmt"
)

// GuardFunc evaluates whether a transition should be allowed
type GuardFunc func(ctx context.Context) bool

// Builder configures transitions and builds machines from them
type Builder interface {
	// Configure returns the configuration for the given state
	Configure(state State) StateConfiguration

	// Build creates a machine starting in initialState
	Build(initialState State) StateMachine
}

// StateConfiguration configures transitions out of one state
type StateConfiguration interface {
	// Permit allows a trigger to transition to the target state
	Permit(trigger Trigger, toState State) StateConfiguration

	// PermitIf allows the transition only when the guard passes
	PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration
}

type transition struct {
	toState State
	guard   GuardFunc
}

type stateConfig struct {
	transitions map[Trigger][]transition
}

type builder struct {
	configurations map[State]*stateConfig
}

type stateMachine struct {
	currentState   State
	configurations map[State]*stateConfig
}

// NewBuilder creates a new state machine builder
func NewBuilder() Builder {
	return &builder{
		configurations: make(map[State]*stateConfig),
	}
}

// NewSessionMachine builds the reconciliation lifecycle of one work item.
// isSubmitted decides whether a loaded item needs its prior submission located.
func NewSessionMachine(isSubmitted GuardFunc) StateMachine {
	notSubmitted := func(ctx context.Context) bool { return !isSubmitted(ctx) }

	b := NewBuilder()
	b.Configure(StateUnopened).
		Permit(TriggerLoad, StateLoaded)
	b.Configure(StateLoaded).
		PermitIf(TriggerEvaluate, StateLocating, isSubmitted).
		PermitIf(TriggerEvaluate, StateDrafting, notSubmitted)
	b.Configure(StateLocating).
		Permit(TriggerFound, StateEditing).
		Permit(TriggerNotFound, StateDrafting)
	b.Configure(StateDrafting).
		Permit(TriggerSubmitSucceeded, StateSubmitted)
	b.Configure(StateEditing).
		Permit(TriggerSubmitSucceeded, StateSubmitted)

	return b.Build(StateUnopened)
}

// Configure returns the configuration for the given state
func (b *builder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}

	config, exists := b.configurations[state]
	if !exists {
		config = &stateConfig{transitions: make(map[Trigger][]transition)}
		b.configurations[state] = config
	}
	return config
}

// Build creates a machine with its own copy of the configuration
func (b *builder) Build(initialState State) StateMachine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}

	configs := make(map[State]*stateConfig, len(b.configurations))
	for state, config := range b.configurations {
		transitions := make(map[Trigger][]transition, len(config.transitions))
		for trigger, ts := range config.transitions {
			transitions[trigger] = append([]transition{}, ts...)
		}
		configs[state] = &stateConfig{transitions: transitions}
	}

	return &stateMachine{
		currentState:   initialState,
		configurations: configs,
	}
}

// Permit allows a trigger to transition to the target state
func (c *stateConfig) Permit(trigger Trigger, toState State) StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

// PermitIf allows the transition only when the guard passes
func (c *stateConfig) PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}

	c.transitions[trigger] = append(c.transitions[trigger], transition{
		toState: toState,
		guard:   guard,
	})
	return c
}

func (m *stateMachine) State() State {
	return m.currentState
}

func (m *stateMachine) CanFire(trigger Trigger) bool {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return false
	}
	return len(config.transitions[trigger]) > 0
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return fmt.Errorf("%w: cannot fire %s from %s (no configuration)", ErrInvalidTransition, trigger, m.currentState)
	}

	transitions := config.transitions[trigger]
	if len(transitions) == 0 {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.currentState)
	}

	// First transition whose guard passes wins
	for _, t := range transitions {
		if t.guard == nil || t.guard(ctx) {
			m.currentState = t.toState
			return nil
		}
	}

	return fmt.Errorf("%w: trigger %s from state %s", ErrGuardFailed, trigger, m.currentState)
}
