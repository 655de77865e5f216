// internal/models/outcome.go
package models

// SaveOutcome is the result of validating and diffing an edited entry.
type SaveOutcome int

const (
	KeepEditing SaveOutcome = iota
	NotChanged
	Changed
)

func (o SaveOutcome) String() string {
	switch o {
	case KeepEditing:
		return "keep_editing"
	case NotChanged:
		return "not_changed"
	case Changed:
		return "changed"
	default:
		return "unknown"
	}
}

// MarshalText lets outcomes travel as strings in JSON responses.
func (o SaveOutcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// SaveResult carries the candidate payload when the outcome is Changed.
type SaveResult struct {
	Outcome SaveOutcome `json:"outcome"`
	Entry   *SaveEntry  `json:"entry,omitempty"`
}

// EvaluateSave validates the draft against the live entry and decides whether
// it needs persisting. Only Error is written on the entry, and only for
// KeepEditing; persisted fields are never touched here.
func EvaluateSave(entry *Entry, draft Content, projection Projection) SaveResult {
	if message := draft.Validate(); message != "" {
		entry.Error = message
		return SaveResult{Outcome: KeepEditing}
	}

	candidate := CreateSaveEntry(entry, projection)
	draft.ApplyTo(candidate)
	if !HasChanged(entry, candidate, ComparisonFor(entry.Type)) {
		return SaveResult{Outcome: NotChanged}
	}
	return SaveResult{Outcome: Changed, Entry: candidate}
}
