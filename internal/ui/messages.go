package ui

import (
	"time"

	"github.com/trgui-ng/trgui/internal/models"
)

// tickMsg triggers a refresh from the snapshot store.
type tickMsg time.Time

// exitRequestedMsg carries the host's exit-requested event.
type exitRequestedMsg struct {
	Attempt string
}

// openTorrentsMsg carries a forwarded argument batch.
type openTorrentsMsg struct {
	Batch models.ArgumentBatch
}

// setTitleMsg changes the terminal title.
type setTitleMsg struct {
	Title string
}

// focusMsg is sent when the host focuses the window.
type focusMsg struct{}

// errorMsg carries an error to display.
type errorMsg struct {
	Err error
}
