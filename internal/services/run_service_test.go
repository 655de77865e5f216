package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	apperrors "github.com/Corphon/BookRunner/internal/errors"
	"github.com/Corphon/BookRunner/internal/utils"
)

func TestRunStreamsOutput(t *testing.T) {
	workspace := openWorkspace(t, newFakeBackend())
	runner := &fakeRunner{output: []string{"Albert", "done\n"}, outcome: "0"}
	publisher := &recordingPublisher{}
	runs := NewRunService(workspace, runner, publisher, utils.NewAPIMetrics())

	report, err := runs.Run(context.Background(), "intro.yaml", "cmd")
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if report.Outcome != "0" || report.Entry.Output != "Albert\ndone\n" || report.Entry.Failed {
		t.Errorf("report = %+v", report)
	}
	if runner.got.WorkPath != "/work" || runner.got.Values["NAME"] != "Albert" {
		t.Errorf("runnable = %+v", runner.got)
	}
	want := []string{RunEventStarted, RunEventOutput, RunEventOutput, RunEventOutcome}
	if !reflect.DeepEqual(publisher.kinds(), want) {
		t.Errorf("events = %v", publisher.kinds())
	}
	if runs.Running("intro.yaml", "cmd") {
		t.Error("run should be released")
	}
}

func TestRunRequiresValues(t *testing.T) {
	workspace := openWorkspace(t, newFakeBackend())
	runner := &fakeRunner{}
	runs := NewRunService(workspace, runner, nil, nil)

	_, err := runs.Run(context.Background(), "intro.yaml", "greet")
	if !apperrors.IsValidationError(err) || !strings.Contains(err.Error(), "GREETING") {
		t.Fatalf("Run() = %v", err)
	}
	if runner.got != nil {
		t.Error("runner should not be called")
	}

	workspace.UpdateVariable("intro.yaml", "GREETING", "Hi")
	if _, err := runs.Run(context.Background(), "intro.yaml", "greet"); err != nil {
		t.Fatalf("Run() after binding = %v", err)
	}
	if runner.got.Values["GREETING"] != "Hi" {
		t.Errorf("runnable values = %v", runner.got.Values)
	}
}

func TestRunTransportFailure(t *testing.T) {
	workspace := openWorkspace(t, newFakeBackend())
	runner := &fakeRunner{output: []string{"partial"}, err: errors.New("runner connection lost")}
	publisher := &recordingPublisher{}
	runs := NewRunService(workspace, runner, publisher, nil)

	report, err := runs.Run(context.Background(), "intro.yaml", "cmd")
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if !report.Entry.Failed || report.Entry.Error != "Failed to run entry (runner connection lost)" {
		t.Errorf("entry = %+v", report.Entry)
	}
	if report.Entry.Output != "partial\n" {
		t.Errorf("output = %q", report.Entry.Output)
	}
	kinds := publisher.kinds()
	if kinds[len(kinds)-1] != RunEventFailed {
		t.Errorf("events = %v", kinds)
	}

	// a new run starts from a clean state
	runner.err = nil
	runner.output = nil
	report, _ = runs.Run(context.Background(), "intro.yaml", "cmd")
	if report.Entry.Failed || report.Entry.Error != "" || report.Entry.Output != "" {
		t.Errorf("entry after rerun = %+v", report.Entry)
	}
}

func TestLockManagerClaims(t *testing.T) {
	locks := NewLockManager()
	if !locks.TryClaim("a") || locks.TryClaim("a") {
		t.Fatal("a key can only be claimed once")
	}
	if !locks.IsClaimed("a") || locks.InFlight() != 1 {
		t.Error("claim not tracked")
	}
	locks.Release("a")
	if locks.IsClaimed("a") || !locks.TryClaim("a") {
		t.Error("released key should be claimable")
	}

	if locks.GetChapterLock("x") != locks.GetChapterLock("x") {
		t.Error("a chapter always gets the same lock")
	}
}
