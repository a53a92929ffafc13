package models

// LifecycleState is the state of the top-level orchestrator.
type LifecycleState string

const (
	LifecycleStarting     LifecycleState = "starting"
	LifecycleDegraded     LifecycleState = "degraded"
	LifecycleActive       LifecycleState = "active"
	LifecycleShuttingDown LifecycleState = "shutting_down"
	LifecycleExited       LifecycleState = "exited"
)

// Visibility is the lifecycle of a single window.
// Hidden means no window object exists; showing it again builds a new one.
type Visibility string

const (
	VisibilityCreated Visibility = "created"
	VisibilityVisible Visibility = "visible"
	VisibilityHidden  Visibility = "hidden"
)

// HandshakeState is the progress of one exit handshake.
type HandshakeState string

const (
	HandshakeIdle         HandshakeState = "idle"
	HandshakeRequested    HandshakeState = "requested"
	HandshakeAcknowledged HandshakeState = "acknowledged"
)

// Tray toggle labels. The label names the next available action.
const (
	LabelShow = "Show"
	LabelHide = "Hide"
)
