package domain

// Mode selects both the retrieval strategy and the answer template for a
// query.
type Mode string

const (
	ModeStandard   Mode = "standard"
	ModeComparison Mode = "comparison"
	ModeLecturer   Mode = "lecturer"

	// ModeError marks responses produced by the orchestrator's top-level
	// failure handler, never by classification.
	ModeError Mode = "error"
)
