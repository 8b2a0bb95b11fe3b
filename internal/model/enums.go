package model

// SessionStatus is the lifecycle state of a staged session. Queued and running
// states come in pairs; the underscore prefix marks a record a worker has
// actually claimed, which is what lets the dispatch scan skip in-flight work.
type SessionStatus string

const (
	StatusReceiving       SessionStatus = "RECEIVING"
	StatusQueuedBuilding  SessionStatus = "QUEUED_BUILDING"
	StatusBuilding        SessionStatus = "_BUILDING"
	StatusQueuedArchiving SessionStatus = "QUEUED_ARCHIVING"
	StatusArchiving       SessionStatus = "_ARCHIVING"
	StatusError           SessionStatus = "ERROR"
)

func (s SessionStatus) String() string { return string(s) }

// IsRunning reports whether a worker currently owns the record.
func (s SessionStatus) IsRunning() bool {
	return s == StatusBuilding || s == StatusArchiving
}

func (s SessionStatus) IsQueued() bool {
	return s == StatusQueuedBuilding || s == StatusQueuedArchiving
}

func (s SessionStatus) IsTerminal() bool {
	return s == StatusError
}

// QueuedState returns the queued counterpart of a running state, or the
// status itself if it has none.
func (s SessionStatus) QueuedState() SessionStatus {
	switch s {
	case StatusBuilding:
		return StatusQueuedBuilding
	case StatusArchiving:
		return StatusQueuedArchiving
	default:
		return s
	}
}

// legalEdges is the session state machine. A transition absent from this
// map is rejected by the registry. Resets back to RECEIVING and the
// running-to-queued edges are administrative recovery paths, included here
// so the registry enforces them uniformly.
var legalEdges = map[SessionStatus][]SessionStatus{
	StatusReceiving:       {StatusQueuedBuilding},
	StatusQueuedBuilding:  {StatusBuilding, StatusReceiving},
	StatusBuilding:        {StatusQueuedArchiving, StatusError, StatusQueuedBuilding},
	StatusQueuedArchiving: {StatusArchiving, StatusReceiving},
	StatusArchiving:       {StatusError, StatusQueuedArchiving},
	StatusError:           {StatusReceiving},
}

// CanTransition reports whether the edge from -> to is part of the state
// machine.
func CanTransition(from, to SessionStatus) bool {
	for _, next := range legalEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseSessionStatus converts a stored string to a SessionStatus. Unknown
// values map to the empty status.
func ParseSessionStatus(s string) SessionStatus {
	switch SessionStatus(s) {
	case StatusReceiving, StatusQueuedBuilding, StatusBuilding,
		StatusQueuedArchiving, StatusArchiving, StatusError:
		return SessionStatus(s)
	default:
		return ""
	}
}

// WorkflowStatus tracks the audit record opened for each archive attempt.
type WorkflowStatus string

const (
	WorkflowStatusOpen     WorkflowStatus = "open"
	WorkflowStatusComplete WorkflowStatus = "complete"
	WorkflowStatusFailed   WorkflowStatus = "failed"
)

// ReviewCode classifies how a prearchive entry should be handled by
// operators.
type ReviewCode string

const (
	// ReviewCodeManual marks data moved out of the direct-archive path that
	// needs operator attention before it can be archived.
	ReviewCodeManual ReviewCode = "manual"
	ReviewCodeAuto   ReviewCode = "auto"
)
