// internal/models/chapter.go
package models

import (
	"fmt"

	"go.uber.org/multierr"
)

// MissingChapterEntry is shown when a chapter has no entry of type chapter.
const MissingChapterEntry = "Missing chapter entry"

// Book is an opened book and its working copy.
type Book struct {
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Chapters        []ChapterSummary `json:"chapters"`
	BookPath        string           `json:"bookPath"`
	WorkPath        string           `json:"workPath"`
	ChapterPath     string           `json:"chapterPath,omitempty"`
	SelectedChapter int              `json:"selectedChapter"`
	Error           string           `json:"error,omitempty"`
}

// ChapterSummary is a table of contents line.
type ChapterSummary struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	DescriptionHTML string `json:"descriptionHtml,omitempty"`
	DescriptionText string `json:"descriptionText,omitempty"`
	Path            string `json:"path"`
	Error           string `json:"error,omitempty"`
}

// Chapter is the ordered list of entries stored under one chapter path.
type Chapter struct {
	ChapterPath string   `json:"chapterPath"`
	BookPath    string   `json:"bookPath"`
	WorkPath    string   `json:"workPath"`
	Entries     []*Entry `json:"entries"`
	Error       string   `json:"error,omitempty"`
}

// MarkdownRenderer turns markdown into HTML.
type MarkdownRenderer interface {
	Render(markdown string) string
}

// AssignKeys gives every entry a key unique within the chapter. An entry
// keeps its id as key; entries without an id, or repeating one, get a key
// derived from their position.
func (c *Chapter) AssignKeys() {
	ids := make(map[string]bool, len(c.Entries))
	for _, entry := range c.Entries {
		if entry.ID != "" {
			ids[entry.ID] = true
		}
	}

	used := make(map[string]bool, len(c.Entries))
	for i, entry := range c.Entries {
		key := entry.ID
		if key == "" || used[key] {
			key = fmt.Sprintf("entry-%d", i)
			for ids[key] || used[key] {
				key += "_"
			}
		}
		used[key] = true
		entry.Key = key
	}
}

// FindEntry returns the entry with the given key or nil.
func (c *Chapter) FindEntry(key string) *Entry {
	if key == "" {
		return nil
	}
	for _, entry := range c.Entries {
		if entry.Key == key {
			return entry
		}
	}
	return nil
}

// FindChapterEntry returns the first entry of type chapter or nil.
func (c *Chapter) FindChapterEntry() *Entry {
	for _, entry := range c.Entries {
		if entry.Type == EntryTypeChapter {
			return entry
		}
	}
	return nil
}

// Title is the joined Title part of the chapter entry.
func (c *Chapter) Title() string {
	entry := c.FindChapterEntry()
	if entry == nil {
		return MissingChapterEntry
	}
	return Join(GetPart(PartTitle, entry.Parameters))
}

// Description renders the joined Description part of the chapter entry.
// A nil renderer returns the markdown as is.
func (c *Chapter) Description(renderer MarkdownRenderer) string {
	entry := c.FindChapterEntry()
	if entry == nil {
		return MissingChapterEntry
	}
	markdown := Join(GetPart(PartDescription, entry.Parameters))
	if renderer == nil {
		return markdown
	}
	return renderer.Render(markdown)
}

// InitialBindings collects the default values of the chapter's variable
// entries in order of appearance. Variables without a default are skipped.
func (c *Chapter) InitialBindings() []VariableBinding {
	var bindings []VariableBinding
	for _, entry := range c.Entries {
		if entry.Type != EntryTypeVariable || entry.Name == "" {
			continue
		}
		if value := Join(entry.Parameters); value != "" {
			bindings = append(bindings, VariableBinding{Name: entry.Name, Value: value})
		}
	}
	return bindings
}

// Bind applies the binding to every entry of the chapter that declares it and
// returns how many entries were updated.
func (c *Chapter) Bind(binding VariableBinding) int {
	updated := 0
	for _, entry := range c.Entries {
		if UpdateValue(entry, binding) {
			updated++
		}
	}
	return updated
}

// CheckEntries reports structural problems in the multipart parameters of
// every composite entry.
func (c *Chapter) CheckEntries() error {
	var err error
	for i, entry := range c.Entries {
		if !entry.IsComposite() {
			continue
		}
		if checkErr := CheckParts(entry.Parameters); checkErr != nil {
			err = appendEntryError(err, i, entry, checkErr)
		}
	}
	return err
}

func appendEntryError(err error, index int, entry *Entry, cause error) error {
	for _, problem := range multierr.Errors(cause) {
		err = multierr.Append(err, fmt.Errorf("entry %d (%s %s): %w", index, entry.Type, entry.ID, problem))
	}
	return err
}
