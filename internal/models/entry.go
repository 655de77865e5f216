// internal/models/entry.go
package models

import (
	"encoding/json"
	"slices"
	"strings"
)

// Entry types understood by the workspace.
const (
	EntryTypeChapter    = "chapter"
	EntryTypeSection    = "section"
	EntryTypeSubsection = "subsection"
	EntryTypeMarkdown   = "markdown"
	EntryTypeCommand    = "command"
	EntryTypeQuestion   = "question"
	EntryTypeVariable   = "variable"
	EntryTypeCreate     = "create"
	EntryTypeReplace    = "replace"
	EntryTypeDownload   = "download"
)

// Entry is one content unit of a chapter. Key, Edit, Failed, Output and Error
// are workspace state and never reach the persistence boundary.
type Entry struct {
	Type                 string            `json:"type" yaml:"type"`
	ID                   string            `json:"id,omitempty" yaml:"id,omitempty"`
	Name                 string            `json:"name,omitempty" yaml:"name,omitempty"`
	WorkingDirectory     string            `json:"workingDirectory,omitempty" yaml:"workingDirectory,omitempty"`
	Parameters           []string          `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Variables            []string          `json:"variables,omitempty" yaml:"variables,omitempty"`
	EnvironmentVariables []string          `json:"environmentVariables,omitempty" yaml:"environmentVariables,omitempty"`
	Values               map[string]string `json:"values,omitempty" yaml:"values,omitempty"`
	IgnoreErrors         bool              `json:"ignoreErrors,omitempty" yaml:"ignoreErrors,omitempty"`
	PushChanges          bool              `json:"pushChanges,omitempty" yaml:"pushChanges,omitempty"`
	DryRun               bool              `json:"dryRun,omitempty" yaml:"dryRun,omitempty"`
	Sensitive            bool              `json:"sensitive,omitempty" yaml:"sensitive,omitempty"`
	ExpectedExitValue    int               `json:"expectedExitValue,omitempty" yaml:"expectedExitValue,omitempty"`
	CommandTimeout       int               `json:"commandTimeout,omitempty" yaml:"commandTimeout,omitempty"`

	Key    string `json:"-" yaml:"-"`
	Edit   bool   `json:"edit,omitempty" yaml:"-"`
	Failed bool   `json:"failed,omitempty" yaml:"-"`
	Output string `json:"output,omitempty" yaml:"-"`
	Error  string `json:"error,omitempty" yaml:"-"`
}

// SaveEntry is the payload accepted by the persistence boundary. The service
// rejects unknown fields, so this struct is the exact field set sent.
type SaveEntry struct {
	Type                 string            `json:"type"`
	ID                   string            `json:"id,omitempty"`
	Name                 string            `json:"name,omitempty"`
	WorkingDirectory     string            `json:"workingDirectory,omitempty"`
	Parameters           []string          `json:"parameters"`
	Variables            []string          `json:"variables"`
	EnvironmentVariables []string          `json:"environmentVariables"`
	Values               map[string]string `json:"values,omitempty"`
	IgnoreErrors         bool              `json:"ignoreErrors"`
	PushChanges          bool              `json:"pushChanges"`
	DryRun               bool              `json:"dryRun"`
	Sensitive            bool              `json:"sensitive"`
	ExpectedExitValue    int               `json:"expectedExitValue"`
	CommandTimeout       int               `json:"commandTimeout"`
}

// MarshalJSON sends values whenever they are set, even as an empty mapping.
// A nil map leaves the field off the wire.
func (s SaveEntry) MarshalJSON() ([]byte, error) {
	type payload SaveEntry
	if s.Values == nil {
		return json.Marshal(payload(s))
	}
	return json.Marshal(struct {
		payload
		Values map[string]string `json:"values"`
	}{payload(s), s.Values})
}

// RunnableEntry is what the execution collaborator accepts.
type RunnableEntry struct {
	Type                 string            `json:"type"`
	ID                   string            `json:"id,omitempty"`
	Name                 string            `json:"name,omitempty"`
	WorkPath             string            `json:"workPath"`
	WorkingDirectory     string            `json:"workingDirectory,omitempty"`
	Parameters           []string          `json:"parameters"`
	Variables            []string          `json:"variables"`
	EnvironmentVariables []string          `json:"environmentVariables"`
	Values               map[string]string `json:"values"`
	IgnoreErrors         bool              `json:"ignoreErrors"`
	PushChanges          bool              `json:"pushChanges"`
	DryRun               bool              `json:"dryRun"`
	ExpectedExitValue    int               `json:"expectedExitValue"`
	CommandTimeout       int               `json:"commandTimeout"`
}

// VariableBinding signals that a variable entry produced or changed a value.
// PreviousValue is only set for updates.
type VariableBinding struct {
	Name          string  `json:"name"`
	Value         string  `json:"value"`
	PreviousValue *string `json:"previousValue,omitempty"`
}

// Projection configures CreateSaveEntry.
type Projection struct {
	// IncludeValues sends the variable bindings with the entry. When false the
	// service recomputes bindings itself and values are left off the wire.
	IncludeValues bool
}

// DeclaresVariable reports whether name is listed in the entry's variables.
func (e *Entry) DeclaresVariable(name string) bool {
	return slices.Contains(e.Variables, name)
}

// IsComposite reports whether the entry type stores multipart parameters.
func (e *Entry) IsComposite() bool {
	return e.Type == EntryTypeChapter || e.Type == EntryTypeQuestion
}

// Join concatenates lines with a newline. A nil slice yields the default.
func Join(lines []string, defaultValue ...string) string {
	if lines == nil {
		if len(defaultValue) > 0 {
			return defaultValue[0]
		}
		return ""
	}
	return strings.Join(lines, "\n")
}

// SplitLines is the inverse of Join for user supplied text.
func SplitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

// CreateSaveEntry projects the entry onto the persisted field set. Slices and
// maps are copied so changes to the result never reach the live entry.
func CreateSaveEntry(entry *Entry, projection Projection) *SaveEntry {
	save := &SaveEntry{
		Type:                 entry.Type,
		ID:                   entry.ID,
		Name:                 entry.Name,
		WorkingDirectory:     entry.WorkingDirectory,
		Parameters:           copyLines(entry.Parameters),
		Variables:            copyLines(entry.Variables),
		EnvironmentVariables: copyLines(entry.EnvironmentVariables),
		IgnoreErrors:         entry.IgnoreErrors,
		PushChanges:          entry.PushChanges,
		DryRun:               entry.DryRun,
		Sensitive:            entry.Sensitive,
		ExpectedExitValue:    entry.ExpectedExitValue,
		CommandTimeout:       entry.CommandTimeout,
	}
	if projection.IncludeValues {
		save.Values = copyValues(entry.Values)
		if save.Values == nil {
			save.Values = make(map[string]string)
		}
	}
	return save
}

// CreateRunnableEntry projects the entry onto the execution collaborator's shape.
func CreateRunnableEntry(entry *Entry, workPath string) *RunnableEntry {
	values := copyValues(entry.Values)
	if values == nil {
		values = make(map[string]string)
	}
	return &RunnableEntry{
		Type:                 entry.Type,
		ID:                   entry.ID,
		Name:                 entry.Name,
		WorkPath:             workPath,
		WorkingDirectory:     entry.WorkingDirectory,
		Parameters:           copyLines(entry.Parameters),
		Variables:            copyLines(entry.Variables),
		EnvironmentVariables: copyLines(entry.EnvironmentVariables),
		Values:               values,
		IgnoreErrors:         entry.IgnoreErrors,
		PushChanges:          entry.PushChanges,
		DryRun:               entry.DryRun,
		ExpectedExitValue:    entry.ExpectedExitValue,
		CommandTimeout:       entry.CommandTimeout,
	}
}

// Persisted returns a copy of the entry holding only its persisted fields.
func (e *Entry) Persisted() Entry {
	return Entry{
		Type:                 e.Type,
		ID:                   e.ID,
		Name:                 e.Name,
		WorkingDirectory:     e.WorkingDirectory,
		Parameters:           slices.Clone(e.Parameters),
		Variables:            slices.Clone(e.Variables),
		EnvironmentVariables: slices.Clone(e.EnvironmentVariables),
		Values:               copyValues(e.Values),
		IgnoreErrors:         e.IgnoreErrors,
		PushChanges:          e.PushChanges,
		DryRun:               e.DryRun,
		Sensitive:            e.Sensitive,
		ExpectedExitValue:    e.ExpectedExitValue,
		CommandTimeout:       e.CommandTimeout,
	}
}

// ReplacePersisted overwrites every persisted field with the given ones and
// leaves the UI state alone. Nothing is merged.
func (e *Entry) ReplacePersisted(canonical Entry) {
	e.Type = canonical.Type
	e.ID = canonical.ID
	e.Name = canonical.Name
	e.WorkingDirectory = canonical.WorkingDirectory
	e.Parameters = slices.Clone(canonical.Parameters)
	e.Variables = slices.Clone(canonical.Variables)
	e.EnvironmentVariables = slices.Clone(canonical.EnvironmentVariables)
	e.Values = copyValues(canonical.Values)
	e.IgnoreErrors = canonical.IgnoreErrors
	e.PushChanges = canonical.PushChanges
	e.DryRun = canonical.DryRun
	e.Sensitive = canonical.Sensitive
	e.ExpectedExitValue = canonical.ExpectedExitValue
	e.CommandTimeout = canonical.CommandTimeout
}

// Entry converts the payload back into an entry, as a service echo would.
func (s *SaveEntry) Entry() Entry {
	return Entry{
		Type:                 s.Type,
		ID:                   s.ID,
		Name:                 s.Name,
		WorkingDirectory:     s.WorkingDirectory,
		Parameters:           slices.Clone(s.Parameters),
		Variables:            slices.Clone(s.Variables),
		EnvironmentVariables: slices.Clone(s.EnvironmentVariables),
		Values:               copyValues(s.Values),
		IgnoreErrors:         s.IgnoreErrors,
		PushChanges:          s.PushChanges,
		DryRun:               s.DryRun,
		Sensitive:            s.Sensitive,
		ExpectedExitValue:    s.ExpectedExitValue,
		CommandTimeout:       s.CommandTimeout,
	}
}

func copyLines(lines []string) []string {
	if lines == nil {
		return []string{}
	}
	return slices.Clone(lines)
}

func copyValues(values map[string]string) map[string]string {
	if values == nil {
		return nil
	}
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return copied
}
