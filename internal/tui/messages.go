package tui

import "github.com/rgehrsitz/nrtax/internal/batch"

// Messages for the Bubble Tea update cycle

// ReportLoadedMsg carries a computed return.
type ReportLoadedMsg struct {
	Report *batch.Report
}

// ErrorMsg displays an error to the user
type ErrorMsg struct {
	Err error
}
