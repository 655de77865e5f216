// internal/models/content.go
package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Content is the typed view of an entry's parameters for one entry type.
// Validate returns an empty string when the content may be saved.
type Content interface {
	EntryType() string
	Validate() string
	ApplyTo(save *SaveEntry)
}

// ChapterContent is stored as Title and Description parts.
type ChapterContent struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// QuestionContent is stored as Question and Answer parts.
type QuestionContent struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// SectionContent is a single heading line, used for sections and subsections.
type SectionContent struct {
	Kind string `json:"-"`
	Text string `json:"text"`
}

// MarkdownContent is free text that may reference declared variables.
type MarkdownContent struct {
	Text      string   `json:"text"`
	Variables []string `json:"variables"`
}

// CommandContent holds one command per line plus its execution settings.
type CommandContent struct {
	Commands             string   `json:"commands"`
	WorkingDirectory     string   `json:"workingDirectory"`
	Variables            []string `json:"variables"`
	EnvironmentVariables []string `json:"environmentVariables"`
	IgnoreErrors         bool     `json:"ignoreErrors"`
	DryRun               bool     `json:"dryRun"`
	ExpectedExitValue    int      `json:"expectedExitValue"`
	CommandTimeout       int      `json:"commandTimeout"`
}

// VariableContent declares a variable and its optional default value.
type VariableContent struct {
	Name         string `json:"name"`
	DefaultValue string `json:"defaultValue"`
	Sensitive    bool   `json:"sensitive"`
}

// GenericContent covers file and tool entries (create, replace, download,
// git-*, docker-*) whose parameters are edited as raw lines.
type GenericContent struct {
	Type                 string   `json:"-"`
	Parameters           []string `json:"parameters"`
	WorkingDirectory     string   `json:"workingDirectory"`
	Variables            []string `json:"variables"`
	EnvironmentVariables []string `json:"environmentVariables"`
	IgnoreErrors         bool     `json:"ignoreErrors"`
	PushChanges          bool     `json:"pushChanges"`
	DryRun               bool     `json:"dryRun"`
	ExpectedExitValue    int      `json:"expectedExitValue"`
	CommandTimeout       int      `json:"commandTimeout"`
}

// UnsupportedContent is what an unknown entry type decodes to. It renders a
// diagnostic and can never be saved.
type UnsupportedContent struct {
	Type string `json:"-"`
}

func (c *ChapterContent) EntryType() string { return EntryTypeChapter }

func (c *ChapterContent) Validate() string {
	if strings.TrimSpace(c.Title) == "" {
		return "The chapter cannot be empty"
	}
	return ""
}

func (c *ChapterContent) ApplyTo(save *SaveEntry) {
	save.Parameters = SetPart(PartTitle, []string{c.Title}, save.Parameters)
	save.Parameters = setOptionalPart(PartDescription, c.Description, save.Parameters)
}

func (c *QuestionContent) EntryType() string { return EntryTypeQuestion }

func (c *QuestionContent) Validate() string {
	if strings.TrimSpace(c.Question) == "" {
		return "The question cannot be empty"
	}
	return ""
}

func (c *QuestionContent) ApplyTo(save *SaveEntry) {
	save.Parameters = SetPart(PartQuestion, textLines(c.Question), save.Parameters)
	save.Parameters = setOptionalPart(PartAnswer, c.Answer, save.Parameters)
}

func (c *SectionContent) EntryType() string { return c.Kind }

func (c *SectionContent) Validate() string {
	if strings.TrimSpace(c.Text) == "" {
		return fmt.Sprintf("The %s cannot be empty", c.Kind)
	}
	return ""
}

func (c *SectionContent) ApplyTo(save *SaveEntry) {
	save.Parameters = []string{c.Text}
}

func (c *MarkdownContent) EntryType() string { return EntryTypeMarkdown }

func (c *MarkdownContent) Validate() string {
	return validateVariableNames(c.Variables)
}

func (c *MarkdownContent) ApplyTo(save *SaveEntry) {
	save.Parameters = textLines(c.Text)
	save.Variables = copyLines(c.Variables)
}

func (c *CommandContent) EntryType() string { return EntryTypeCommand }

func (c *CommandContent) Validate() string {
	if strings.TrimSpace(c.Commands) == "" {
		return "The command cannot be empty"
	}
	return validateVariableNames(c.Variables)
}

func (c *CommandContent) ApplyTo(save *SaveEntry) {
	save.Parameters = textLines(c.Commands)
	save.WorkingDirectory = c.WorkingDirectory
	save.Variables = copyLines(c.Variables)
	save.EnvironmentVariables = copyLines(c.EnvironmentVariables)
	save.IgnoreErrors = c.IgnoreErrors
	save.DryRun = c.DryRun
	save.ExpectedExitValue = c.ExpectedExitValue
	save.CommandTimeout = c.CommandTimeout
}

func (c *VariableContent) EntryType() string { return EntryTypeVariable }

func (c *VariableContent) Validate() string {
	if strings.TrimSpace(c.Name) == "" {
		return "The variable name cannot be empty"
	}
	return ""
}

func (c *VariableContent) ApplyTo(save *SaveEntry) {
	save.Name = c.Name
	save.Sensitive = c.Sensitive
	if c.DefaultValue == "" {
		save.Parameters = []string{}
		return
	}
	save.Parameters = []string{c.DefaultValue}
}

func (c *GenericContent) EntryType() string { return c.Type }

func (c *GenericContent) Validate() string {
	return validateVariableNames(c.Variables)
}

func (c *GenericContent) ApplyTo(save *SaveEntry) {
	save.Parameters = copyLines(c.Parameters)
	save.WorkingDirectory = c.WorkingDirectory
	save.Variables = copyLines(c.Variables)
	save.EnvironmentVariables = copyLines(c.EnvironmentVariables)
	save.IgnoreErrors = c.IgnoreErrors
	save.PushChanges = c.PushChanges
	save.DryRun = c.DryRun
	save.ExpectedExitValue = c.ExpectedExitValue
	save.CommandTimeout = c.CommandTimeout
}

func (c *UnsupportedContent) EntryType() string { return c.Type }

func (c *UnsupportedContent) Validate() string { return c.Diagnostic() }

func (c *UnsupportedContent) ApplyTo(*SaveEntry) {}

// Diagnostic is the text shown in place of an entry of unknown type.
func (c *UnsupportedContent) Diagnostic() string {
	return "Unsupported entry type " + c.Type
}

// IsSupportedType reports whether the entry type has a dedicated content variant.
func IsSupportedType(entryType string) bool {
	switch entryType {
	case EntryTypeChapter, EntryTypeQuestion, EntryTypeSection, EntryTypeSubsection,
		EntryTypeMarkdown, EntryTypeCommand, EntryTypeVariable,
		EntryTypeCreate, EntryTypeReplace, EntryTypeDownload:
		return true
	}
	return strings.HasPrefix(entryType, "git-") || strings.HasPrefix(entryType, "docker-")
}

// DecodeContent reads the typed content out of an entry. The entry is not modified.
func DecodeContent(entry *Entry) Content {
	switch entry.Type {
	case EntryTypeChapter:
		return &ChapterContent{
			Title:       Join(GetPart(PartTitle, entry.Parameters)),
			Description: Join(GetPart(PartDescription, entry.Parameters)),
		}
	case EntryTypeQuestion:
		return &QuestionContent{
			Question: Join(GetPart(PartQuestion, entry.Parameters)),
			Answer:   Join(GetPart(PartAnswer, entry.Parameters)),
		}
	case EntryTypeSection, EntryTypeSubsection:
		return &SectionContent{Kind: entry.Type, Text: Join(entry.Parameters)}
	case EntryTypeMarkdown:
		return &MarkdownContent{Text: Join(entry.Parameters), Variables: slices.Clone(entry.Variables)}
	case EntryTypeCommand:
		return &CommandContent{
			Commands:             Join(entry.Parameters),
			WorkingDirectory:     entry.WorkingDirectory,
			Variables:            slices.Clone(entry.Variables),
			EnvironmentVariables: slices.Clone(entry.EnvironmentVariables),
			IgnoreErrors:         entry.IgnoreErrors,
			DryRun:               entry.DryRun,
			ExpectedExitValue:    entry.ExpectedExitValue,
			CommandTimeout:       entry.CommandTimeout,
		}
	case EntryTypeVariable:
		return &VariableContent{Name: entry.Name, DefaultValue: Join(entry.Parameters), Sensitive: entry.Sensitive}
	}

	if !IsSupportedType(entry.Type) {
		return &UnsupportedContent{Type: entry.Type}
	}
	return &GenericContent{
		Type:                 entry.Type,
		Parameters:           slices.Clone(entry.Parameters),
		WorkingDirectory:     entry.WorkingDirectory,
		Variables:            slices.Clone(entry.Variables),
		EnvironmentVariables: slices.Clone(entry.EnvironmentVariables),
		IgnoreErrors:         entry.IgnoreErrors,
		PushChanges:          entry.PushChanges,
		DryRun:               entry.DryRun,
		ExpectedExitValue:    entry.ExpectedExitValue,
		CommandTimeout:       entry.CommandTimeout,
	}
}

// DecodeDraft reads user edits for an entry of the given type. The draft
// starts from the entry's current content so omitted fields keep their value.
func DecodeDraft(entry *Entry, data []byte) (Content, error) {
	content := DecodeContent(entry)
	if _, ok := content.(*UnsupportedContent); ok {
		return content, nil
	}
	if len(data) == 0 {
		return content, nil
	}
	if err := json.Unmarshal(data, content); err != nil {
		return nil, fmt.Errorf("invalid %s draft: %w", entry.Type, err)
	}
	return content, nil
}

func validateVariableNames(names []string) string {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return "The variable name cannot be empty"
		}
		if _, ok := seen[name]; ok {
			return fmt.Sprintf("The variable %s is declared more than once", name)
		}
		seen[name] = struct{}{}
	}
	return ""
}

// setOptionalPart leaves an absent part absent while its content is empty.
func setOptionalPart(name, text string, parameters []string) []string {
	if text == "" && !HasPart(name, parameters) {
		return parameters
	}
	return SetPart(name, textLines(text), parameters)
}

func textLines(text string) []string {
	if text == "" {
		return []string{}
	}
	return SplitLines(text)
}
