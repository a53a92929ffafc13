// Package window abstracts the presentation layer's top-level windows and
// keeps a registry of the ones that currently exist.
//
// Hiding a window destroys it. Showing it again builds a new one through the
// Factory, so "exists" and "visible" mean the same thing to callers.
package window

import (
	"context"
	"errors"
)

// MainLabel identifies the primary application window.
const MainLabel = "main"

// ErrClosed is returned by operations on a destroyed window.
var ErrClosed = errors.New("window is closed")

// Window is one live top-level window.
type Window interface {
	ID() string
	Label() string
	Show() error
	Focus() error
	SetTitle(title string) error
	// Close destroys the window. Calling it more than once is safe.
	Close() error
	// Done is closed once the window is destroyed, whoever destroyed it.
	Done() <-chan struct{}
}

// Spec describes a window to build.
type Spec struct {
	ID    string
	Label string
	Title string
}

// Factory builds windows.
type Factory interface {
	NewWindow(ctx context.Context, spec Spec) (Window, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, spec Spec) (Window, error)

func (f FactoryFunc) NewWindow(ctx context.Context, spec Spec) (Window, error) {
	return f(ctx, spec)
}
