// Package task tracks user requests through the lifecycle from receipt to a
// terminal outcome and emits an event for every observable step.
package task

import "github.com/iambrandonn/actuator/internal/protocol"

// transitions lists the allowed next states. Terminal states have no entry.
var transitions = map[protocol.TaskState][]protocol.TaskState{
	protocol.StateReceived: {
		protocol.StateRouted,
		protocol.StateFailed,
	},
	protocol.StateRouted: {
		protocol.StateContextCollected,
		protocol.StateFailed,
	},
	protocol.StateContextCollected: {
		protocol.StateProposing,
		protocol.StateFailed,
	},
	protocol.StateProposing: {
		protocol.StateProposalReady,
		protocol.StateFailed,
	},
	protocol.StateProposalReady: {
		protocol.StateWaitingApproval,
		protocol.StateExecuting,
		protocol.StateCompleted,
		protocol.StateFailed,
	},
	protocol.StateWaitingApproval: {
		protocol.StateExecuting,
		protocol.StateRejected,
		protocol.StateFailed,
		protocol.StateCompleted,
	},
	protocol.StateExecuting: {
		protocol.StateWaitingApproval,
		protocol.StateCompleted,
		protocol.StateFailed,
		protocol.StateRejected,
	},
}

// CanTransition reports whether from -> to is in the transition table
func CanTransition(from, to protocol.TaskState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether state has no outgoing transitions
func IsTerminal(state protocol.TaskState) bool {
	switch state {
	case protocol.StateCompleted, protocol.StateFailed, protocol.StateRejected:
		return true
	}
	return false
}

// AllowedTransitions returns the states reachable from state in one step
func AllowedTransitions(state protocol.TaskState) []protocol.TaskState {
	return append([]protocol.TaskState(nil), transitions[state]...)
}
