// Package models contains shared data structures used across the application.
package models

import (
	"fmt"
	"time"
)

// Role classifies a process by the outcome of the instance bind attempt.
// It is decided once at startup and never changes afterwards.
type Role int

const (
	RolePrimary Role = iota
	RoleSecondary
)

func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleSecondary:
		return "secondary"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ListenerState tracks whether the instance channel accepts forwarded arguments.
type ListenerState int

const (
	ListenerUnbound ListenerState = iota
	ListenerListening
	ListenerStopped
)

func (s ListenerState) String() string {
	switch s {
	case ListenerUnbound:
		return "unbound"
	case ListenerListening:
		return "listening"
	case ListenerStopped:
		return "stopped"
	default:
		return fmt.Sprintf("listener(%d)", int(s))
	}
}

// ArgumentBatch is the ordered list of file paths passed on the command line.
type ArgumentBatch []string

// Clone returns an independent copy of the batch.
func (b ArgumentBatch) Clone() ArgumentBatch {
	if b == nil {
		return nil
	}
	dup := make(ArgumentBatch, len(b))
	copy(dup, b)
	return dup
}

// InstanceInfo describes the running primary instance.
// This corresponds to ~/.trgui/instance.yaml.
type InstanceInfo struct {
	Version   int       `yaml:"version"`
	PID       int       `yaml:"pid"`
	Socket    string    `yaml:"socket"`
	StartedAt time.Time `yaml:"started_at"`
}

// NewInstanceInfo creates instance info with current values.
func NewInstanceInfo(socket string, pid int) *InstanceInfo {
	return &InstanceInfo{
		Version:   1,
		PID:       pid,
		Socket:    socket,
		StartedAt: time.Now().UTC(),
	}
}
