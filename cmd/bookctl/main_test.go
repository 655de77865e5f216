package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newCommand()
	cmd.Writer = &out
	cmd.ErrWriter = &out
	err := cmd.Run(context.Background(), append([]string{"bookctl"}, args...))
	return out.String(), err
}

func TestPartGet(t *testing.T) {
	out, err := run(t, "part", "get", "--name", "Description", "Title:1", "Hello", "Description:2", "line 1", "line 2")
	if err != nil {
		t.Fatal(err)
	}
	if out != "line 1\nline 2\n" {
		t.Errorf("output = %q", out)
	}

	if _, err := run(t, "part", "get", "--name", "Answer", "Title:1", "Hello"); err == nil {
		t.Error("missing part should fail")
	}
}

func TestPartSet(t *testing.T) {
	out, err := run(t, "part", "set", "--name", "Title", "--value", "Hallo Welt", "Title:1", "Hello", "Description:1", "d")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Title:1\nHallo Welt\nDescription:1\nd\n" {
		t.Errorf("output = %q", out)
	}
}

func TestPartNames(t *testing.T) {
	out, err := run(t, "part", "names", "Title:1", "Hello", "Description:0")
	if err != nil || out != "Title\nDescription\n" {
		t.Errorf("names = %q, %v", out, err)
	}

	if _, err := run(t, "part", "names", "Title:5", "Hello"); err == nil {
		t.Error("overrunning part should fail")
	}
}

func TestInterpolate(t *testing.T) {
	out, err := run(t, "interpolate", "--var", "NAME=Albert", "--var", "GREETING=Hi", "${GREETING} ${NAME} ${OTHER}")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Hi Albert ${OTHER}\n" {
		t.Errorf("output = %q", out)
	}

	if _, err := run(t, "interpolate", "--var", "broken", "x"); err == nil {
		t.Error("malformed variable should fail")
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	writeChapter(t, good, `entries:
  - type: chapter
    id: c1
    parameters: ["Title:1", "Hello"]
  - type: command
    id: cmd
    parameters: ["echo ${NAME}"]
    variables: [NAME]
`)
	writeChapter(t, bad, `entries:
  - type: chapter
    id: c1
    parameters: ["Title:3", "Hello"]
  - type: command
    id: cmd
    parameters: ["echo ${NAME}"]
  - type: mystery
    id: x
`)

	out, err := run(t, "check", good)
	if err != nil || !strings.Contains(out, "2 entries, no problems") {
		t.Errorf("good = %q, %v", out, err)
	}

	out, err = run(t, "check", bad)
	if err == nil || err.Error() != "3 problems found" {
		t.Fatalf("bad = %v", err)
	}
	for _, want := range []string{"entry 0 (chapter c1)", "undeclared variables NAME", "unsupported entry type"} {
		if !strings.Contains(out, want) {
			t.Errorf("output misses %q:\n%s", want, out)
		}
	}

	if _, err := run(t, "check"); err == nil {
		t.Error("check without a file should fail")
	}
}

func writeChapter(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
