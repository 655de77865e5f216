package models

import (
	"reflect"
	"strings"
	"testing"

	"go.uber.org/multierr"
)

func TestGetPart(t *testing.T) {
	tests := []struct {
		name       string
		part       string
		parameters []string
		want       []string
	}{
		{"empty sequence", "SOMETHING", []string{}, []string{}},
		{"nil sequence", "SOMETHING", nil, []string{}},
		{
			"between other parts",
			"SOMETHING",
			[]string{"OTHER-1:1", "x", "SOMETHING:2", "A", "B", "OTHER-2:1", "y"},
			[]string{"A", "B"},
		},
		{"zero length", "Answer", []string{"Question:1", "Why?", "Answer:0"}, []string{}},
		{
			"content that looks like a header is skipped",
			"Answer",
			[]string{"Question:2", "Answer:1", "trap", "Answer:1", "real"},
			[]string{"real"},
		},
		{"overrun is clamped", "Title", []string{"Title:3", "a"}, []string{"a"}},
		{"malformed header stops the scan", "Title", []string{"broken", "Title:1", "a"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetPart(tt.part, tt.parameters)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GetPart(%q) = %#v, want %#v", tt.part, got, tt.want)
			}
		})
	}
}

func TestGetPartReturnsCopy(t *testing.T) {
	parameters := []string{"Title:1", "Hello"}
	part := GetPart(PartTitle, parameters)
	part[0] = "changed"
	if parameters[1] != "Hello" {
		t.Fatalf("GetPart shares storage with the sequence: %v", parameters)
	}
}

func TestFindPartNotFound(t *testing.T) {
	index, length := FindPart("Missing", []string{"Title:1", "x"})
	if index != -1 || length != -1 {
		t.Fatalf("FindPart() = (%d, %d), want (-1, -1)", index, length)
	}
}

func TestSetPart(t *testing.T) {
	tests := []struct {
		name       string
		parameters []string
		content    []string
		want       []string
	}{
		{
			"appends when absent",
			[]string{"OTHER:1", "x"},
			[]string{"A", "B"},
			[]string{"OTHER:1", "x", "SOMETHING:2", "A", "B"},
		},
		{
			"shrinks an existing part",
			[]string{"OTHER:1", "x", "SOMETHING:5", "a", "b", "c", "d", "e"},
			[]string{"A", "B"},
			[]string{"OTHER:1", "x", "SOMETHING:2", "A", "B"},
		},
		{
			"grows an existing part",
			[]string{"OTHER:1", "x", "SOMETHING:1", "a"},
			[]string{"A", "B"},
			[]string{"OTHER:1", "x", "SOMETHING:2", "A", "B"},
		},
		{
			"keeps the parts after the replaced one",
			[]string{"SOMETHING:3", "a", "b", "c", "OTHER:1", "x"},
			[]string{"A"},
			[]string{"SOMETHING:1", "A", "OTHER:1", "x"},
		},
		{
			"empty content",
			[]string{"SOMETHING:2", "a", "b", "OTHER:1", "x"},
			[]string{},
			[]string{"SOMETHING:0", "OTHER:1", "x"},
		},
		{"nil sequence", nil, []string{"A"}, []string{"SOMETHING:1", "A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SetPart("SOMETHING", tt.content, tt.parameters)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SetPart() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestSetPartRoundTrip(t *testing.T) {
	sequences := [][]string{
		{},
		{"Title:1", "old"},
		{"Before:2", "a", "b", "Title:3", "x", "y", "z", "After:1", "c"},
		{"Before:1", "Title:9"},
	}
	contents := [][]string{{}, {"one"}, {"one", "Title:1", "three"}}

	for _, sequence := range sequences {
		for _, content := range contents {
			updated := SetPart(PartTitle, content, sequence)
			if got := GetPart(PartTitle, updated); !reflect.DeepEqual(got, content) {
				t.Errorf("round trip over %v with %v = %v", sequence, content, got)
			}
		}
	}
}

func TestSetPartPreservesNeighbours(t *testing.T) {
	parameters := []string{"Before:2", "a", "b", "Title:3", "x", "y", "z", "After:1", "c"}
	for _, content := range [][]string{{"short"}, {"l", "o", "n", "g", "er"}} {
		updated := SetPart(PartTitle, content, parameters)
		if got := GetPart("Before", updated); !reflect.DeepEqual(got, []string{"a", "b"}) {
			t.Errorf("Before part = %v", got)
		}
		if got := GetPart("After", updated); !reflect.DeepEqual(got, []string{"c"}) {
			t.Errorf("After part = %v", got)
		}
		if got := PartNames(updated); !reflect.DeepEqual(got, []string{"Before", "Title", "After"}) {
			t.Errorf("PartNames() = %v", got)
		}
	}
	if parameters[3] != "Title:3" {
		t.Fatalf("SetPart modified its input: %v", parameters)
	}
}

func TestParsePartHeader(t *testing.T) {
	tests := []struct {
		header string
		name   string
		length int
		ok     bool
	}{
		{"Title:1", "Title", 1, true},
		{"Title:0", "Title", 0, true},
		{"a:b:2", "a:b", 2, true},
		{"Title", "", 0, false},
		{"Title:x", "", 0, false},
		{"Title:-1", "", 0, false},
		{"Title:99999999999999999999", "", 0, false},
	}
	for _, tt := range tests {
		name, length, ok := ParsePartHeader(tt.header)
		if name != tt.name || length != tt.length || ok != tt.ok {
			t.Errorf("ParsePartHeader(%q) = (%q, %d, %v)", tt.header, name, length, ok)
		}
	}
}

func TestCheckParts(t *testing.T) {
	if err := CheckParts([]string{"Title:1", "a", "Description:0"}); err != nil {
		t.Fatalf("CheckParts() on a valid sequence = %v", err)
	}

	err := CheckParts([]string{"Title:1", "a", "Title:0", "Answer:4", "x"})
	if err == nil {
		t.Fatal("CheckParts() should report problems")
	}
	problems := multierr.Errors(err)
	if len(problems) != 2 {
		t.Fatalf("expected 2 problems, got %d: %v", len(problems), err)
	}
	if !strings.Contains(problems[0].Error(), "duplicates") {
		t.Errorf("first problem = %v", problems[0])
	}
	if !strings.Contains(problems[1].Error(), "declares 4 lines") {
		t.Errorf("second problem = %v", problems[1])
	}

	if err := CheckParts([]string{"nonsense"}); err == nil || !strings.Contains(err.Error(), "malformed") {
		t.Fatalf("CheckParts() malformed = %v", err)
	}

	err = CheckParts([]string{"X:9223372036854775807", "a"})
	if problems := multierr.Errors(err); len(problems) != 1 || !strings.Contains(problems[0].Error(), "only 1 follow") {
		t.Errorf("CheckParts() with a huge length = %v", err)
	}
}

func TestHugeDeclaredLength(t *testing.T) {
	const huge = "Other:9223372036854775807"

	if index, length := FindPart("Title", []string{huge, "x", "Title:1", "Hello"}); index != -1 || length != -1 {
		t.Errorf("FindPart() behind a huge part = (%d, %d)", index, length)
	}
	if got := PartNames([]string{huge, "x", "Title:1", "Hello"}); !reflect.DeepEqual(got, []string{"Other"}) {
		t.Errorf("PartNames() = %v", got)
	}

	parameters := []string{"Title:9223372036854775807", "Hello"}
	if got := GetPart("Title", parameters); !reflect.DeepEqual(got, []string{"Hello"}) {
		t.Errorf("GetPart() = %v", got)
	}
	if got := SetPart("Title", []string{"Hallo"}, parameters); !reflect.DeepEqual(got, []string{"Title:1", "Hallo"}) {
		t.Errorf("SetPart() = %v", got)
	}
}
