package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func sampleEntry() *Entry {
	return &Entry{
		Type:                 "test-type",
		ID:                   "86e03298-367e-48f9-afa8-2d90438f4d2b",
		Name:                 "copy all values",
		WorkingDirectory:     "working-directory",
		Parameters:           []string{"param-1", "param-2"},
		Variables:            []string{"var-1", "var-2"},
		EnvironmentVariables: []string{"env-1", "env-2"},
		Values:               map[string]string{"NAME": "Albert", "SURNAME": "Attard"},
		IgnoreErrors:         true,
		PushChanges:          true,
		DryRun:               true,
		Sensitive:            true,
		ExpectedExitValue:    1,
		CommandTimeout:       600,
		Edit:                 true,
		Output:               "output",
	}
}

func TestCreateSaveEntryEmpty(t *testing.T) {
	got := CreateSaveEntry(&Entry{}, Projection{IncludeValues: true})
	want := &SaveEntry{
		Parameters:           []string{},
		Variables:            []string{},
		EnvironmentVariables: []string{},
		Values:               map[string]string{},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CreateSaveEntry() = %#v, want %#v", got, want)
	}
}

func TestCreateSaveEntrySendsEmptyValues(t *testing.T) {
	data, err := json.Marshal(CreateSaveEntry(&Entry{Type: EntryTypeCommand}, Projection{IncludeValues: true}))
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	if string(fields["values"]) != "{}" {
		t.Errorf("values = %s, want {}: %s", fields["values"], data)
	}
	if string(fields["type"]) != `"command"` {
		t.Errorf("type = %s", fields["type"])
	}
}

func TestCreateSaveEntryCopiesAllValues(t *testing.T) {
	entry := sampleEntry()
	got := CreateSaveEntry(entry, Projection{IncludeValues: true})
	want := &SaveEntry{
		Type:                 "test-type",
		ID:                   "86e03298-367e-48f9-afa8-2d90438f4d2b",
		Name:                 "copy all values",
		WorkingDirectory:     "working-directory",
		Parameters:           []string{"param-1", "param-2"},
		Variables:            []string{"var-1", "var-2"},
		EnvironmentVariables: []string{"env-1", "env-2"},
		Values:               map[string]string{"NAME": "Albert", "SURNAME": "Attard"},
		IgnoreErrors:         true,
		PushChanges:          true,
		DryRun:               true,
		Sensitive:            true,
		ExpectedExitValue:    1,
		CommandTimeout:       600,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CreateSaveEntry() = %#v, want %#v", got, want)
	}
}

func TestCreateSaveEntryWithoutValues(t *testing.T) {
	got := CreateSaveEntry(sampleEntry(), Projection{})
	if got.Values != nil {
		t.Fatalf("values should be left out, got %v", got.Values)
	}

	data, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"values", "edit", "failed", "output", "error"} {
		if _, ok := fields[key]; ok {
			t.Errorf("payload carries %q: %s", key, data)
		}
	}
}

func TestCreateSaveEntryIsolation(t *testing.T) {
	entry := sampleEntry()
	save := CreateSaveEntry(entry, Projection{IncludeValues: true})

	save.Parameters[0] = "mutated"
	save.Parameters = append(save.Parameters, "extra")
	save.Variables[0] = "mutated"
	save.Values["NAME"] = "mutated"

	if !reflect.DeepEqual(entry.Parameters, []string{"param-1", "param-2"}) {
		t.Errorf("entry parameters changed: %v", entry.Parameters)
	}
	if entry.Variables[0] != "var-1" {
		t.Errorf("entry variables changed: %v", entry.Variables)
	}
	if entry.Values["NAME"] != "Albert" {
		t.Errorf("entry values changed: %v", entry.Values)
	}
}

func TestCreateRunnableEntry(t *testing.T) {
	runnable := CreateRunnableEntry(sampleEntry(), "/work")
	if runnable.WorkPath != "/work" || runnable.Values["NAME"] != "Albert" {
		t.Fatalf("CreateRunnableEntry() = %#v", runnable)
	}

	data, err := json.Marshal(runnable)
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	if _, ok := fields["sensitive"]; ok {
		t.Errorf("runnable entry carries sensitive: %s", data)
	}
}

func TestPersistedAndReplace(t *testing.T) {
	entry := sampleEntry()
	snapshot := entry.Persisted()
	if snapshot.Edit || snapshot.Output != "" {
		t.Fatalf("snapshot carries UI state: %#v", snapshot)
	}

	entry.Parameters[0] = "edited"
	entry.Error = "boom"
	entry.ReplacePersisted(snapshot)

	if entry.Parameters[0] != "param-1" {
		t.Errorf("parameters not restored: %v", entry.Parameters)
	}
	if !entry.Edit || entry.Error != "boom" || entry.Output != "output" {
		t.Errorf("UI state changed: %#v", entry)
	}

	canonical := Entry{Type: "test-type", ID: "id", Parameters: []string{"server"}}
	entry.ReplacePersisted(canonical)
	if entry.Variables != nil || entry.Values != nil || entry.Name != "" {
		t.Errorf("fields were merged instead of replaced: %#v", entry)
	}
}

func TestJoin(t *testing.T) {
	if got := Join(nil); got != "" {
		t.Errorf("Join(nil) = %q", got)
	}
	if got := Join(nil, "Default value"); got != "Default value" {
		t.Errorf("Join(nil, default) = %q", got)
	}
	if got := Join([]string{}, "Default value"); got != "" {
		t.Errorf("Join(empty, default) = %q", got)
	}
	if got := Join([]string{"a", "b"}); got != "a\nb" {
		t.Errorf("Join() = %q", got)
	}
}
