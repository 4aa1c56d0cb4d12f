package tasks

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchShelves Phase = iota
	FetchVolumes
	ExportShelf
	RecordExport
)

func (p Phase) String() string {
	switch p {
	case FetchShelves:
		return "fetch_shelves"
	case FetchVolumes:
		return "fetch_volumes"
	case ExportShelf:
		return "export_shelf"
	case RecordExport:
		return "record_export"
	default:
		return ""
	}
}

func fetchShelvesUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchShelves,
		Step:    step,
		Total:   total,
		Message: "Fetching bookshelves...",
	}
}

func fetchVolumesUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchVolumes,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Reading %s...", step, total, title),
	}
}

func exportCompletedUpdate(step, total int, title string, volumes, files int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportShelf,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d volumes, %d files)", step, total, title, volumes, files),
	}
}

func exportFailedUpdate(step, total int, title string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportShelf,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, title, err),
	}
}

func recordExportUpdate(runID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RecordExport,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Recording export %s...", runID),
		Data:    runID,
	}
}
