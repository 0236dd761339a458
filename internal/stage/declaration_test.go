package stage

import (
	"errors"
	"testing"

	"treadle/internal/services"
)

func ids(decls []Declaration) []string {
	out := make([]string, len(decls))
	for i, d := range decls {
		out[i] = d.ID
	}
	return out
}

func TestPlanOrdersDependenciesFirst(t *testing.T) {
	ordered, err := Plan([]Declaration{
		{ID: "summarize", DependsOn: []string{"transcribe", "diarize"}},
		{ID: "diarize", DependsOn: []string{"transcribe"}},
		{ID: "transcribe"},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	got := ids(ordered)
	want := []string{"transcribe", "diarize", "summarize"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestPlanKeepsDeclarationOrderForIndependentStages(t *testing.T) {
	ordered, err := Plan([]Declaration{
		{ID: "transcribe"},
		{ID: "classify"},
		{ID: "normalize"},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	got := ids(ordered)
	want := []string{"transcribe", "classify", "normalize"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestPlanRejectsCycles(t *testing.T) {
	_, err := Plan([]Declaration{
		{ID: "a", DependsOn: []string{"b"}},
		{ID: "b", DependsOn: []string{"a"}},
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestPlanRejectsUnknownDependency(t *testing.T) {
	_, err := Plan([]Declaration{{ID: "a", DependsOn: []string{"missing"}}})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestPlanRejectsDuplicatesAndEmpty(t *testing.T) {
	if _, err := Plan(nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("empty: err = %v, want validation error", err)
	}
	_, err := Plan([]Declaration{{ID: "a"}, {ID: "a"}})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("duplicate: err = %v, want validation error", err)
	}
}

func TestRetryableClassification(t *testing.T) {
	base := errors.New("gpu out of memory")
	retryable := NewExecutionError("transcribe", true, base)
	if !Retryable(retryable) {
		t.Error("expected retryable classification")
	}
	if Retryable(NewExecutionError("transcribe", false, base)) {
		t.Error("terminal execution error classified retryable")
	}
	if Retryable(base) {
		t.Error("bare error classified retryable")
	}
	if !errors.Is(retryable, base) {
		t.Error("execution error should unwrap to cause")
	}
}
