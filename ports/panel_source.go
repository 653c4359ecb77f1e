package ports

import (
	"io"

	"geocausal/domain/panel"
)

// PanelSource loads country-year panels from tabular sources. Implementations
// own parsing and key-column validation; they fail with a load error for
// unreadable, empty, or keyless sources.
type PanelSource interface {
	// ReadPanel loads a panel from a file path. Implementations may memoize
	// per distinct path; a different path invalidates nothing but itself.
	ReadPanel(path string) (*panel.Panel, error)

	// ReadPanelFrom loads a panel from an uploaded buffer. Never memoized.
	ReadPanelFrom(r io.Reader, name string) (*panel.Panel, error)
}
