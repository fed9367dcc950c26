package pipeline

import (
	"errors"
	"testing"

	"testpipe/internal/domain/testrun"
)

func TestCollectorPreservesOrder(t *testing.T) {
	t.Parallel()

	collector := NewCollector()
	collector.Record(testrun.Assertf("first"))
	collector.Record(nil)
	collector.Record(testrun.Assertf("second"))

	failures := collector.Failures()
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(failures))
	}
	if failures[0].Msg != "first" || failures[1].Msg != "second" {
		t.Fatalf("failures out of order: %v", failures)
	}
}

func TestRunIsolatedRecordsAssertionFailures(t *testing.T) {
	t.Parallel()

	collector := NewCollector()
	err := collector.RunIsolated(func() error {
		return testrun.Assertf("expected %d, got %d", 1, 2)
	})
	if err != nil {
		t.Fatalf("assertion failure should not propagate, got %v", err)
	}
	if len(collector.Failures()) != 1 {
		t.Fatalf("expected one recorded failure, got %d", len(collector.Failures()))
	}
}

func TestRunIsolatedUnpacksJoinedAssertions(t *testing.T) {
	t.Parallel()

	collector := NewCollector()
	err := collector.RunIsolated(func() error {
		return errors.Join(
			testrun.Assertf("mismatch a"),
			testrun.Assertf("mismatch b"),
		)
	})
	if err != nil {
		t.Fatalf("joined assertions should not propagate, got %v", err)
	}

	failures := collector.Failures()
	if len(failures) != 2 {
		t.Fatalf("expected 2 recorded failures, got %d", len(failures))
	}
	if failures[0].Msg != "mismatch a" || failures[1].Msg != "mismatch b" {
		t.Fatalf("joined failures recorded out of order: %v", failures)
	}
}

func TestRunIsolatedPropagatesUnexpectedErrors(t *testing.T) {
	t.Parallel()

	collector := NewCollector()
	boom := errors.New("boom")

	err := collector.RunIsolated(func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected unexpected error to propagate, got %v", err)
	}
	if len(collector.Failures()) != 0 {
		t.Fatal("unexpected error must not be recorded by RunIsolated")
	}
}

func TestRunIsolatedPropagatesMixedJoins(t *testing.T) {
	t.Parallel()

	collector := NewCollector()
	mixed := errors.Join(testrun.Assertf("mismatch"), errors.New("boom"))

	err := collector.RunIsolated(func() error { return mixed })
	if err == nil {
		t.Fatal("a join containing a non-assertion error must propagate")
	}
	if len(collector.Failures()) != 0 {
		t.Fatal("mixed join must not be partially recorded")
	}
}

func TestIsAssertionClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"plain assertion", testrun.Assertf("x"), true},
		{"assertion with cause", testrun.AssertCause("x", errors.New("y")), true},
		{"joined assertions", errors.Join(testrun.Assertf("a"), testrun.Assertf("b")), true},
		{"plain error", errors.New("boom"), false},
		{"mixed join", errors.Join(testrun.Assertf("a"), errors.New("boom")), false},
		{"nil", nil, false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := testrun.IsAssertion(tc.err); got != tc.want {
				t.Fatalf("IsAssertion(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
