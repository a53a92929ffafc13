// Package ui is the presentation layer: a terminal window built on bubbletea
// and a headless window for sessions without a terminal.
//
// Both answer the host's exit handshake the same way. On exit-requested they
// flush their preferences to prefs.toml and reply frontend-done; the host
// destroys them afterwards.
package ui
