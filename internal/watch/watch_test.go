package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestWaitUntil_AlreadySatisfied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "math.ts")
	writeFile(t, path, "export const a = 1\n")

	got, err := New(nil).WaitUntil(context.Background(), path, Resolved)
	if err != nil {
		t.Fatalf("WaitUntil: %v", err)
	}
	if got != "export const a = 1\n" {
		t.Errorf("content = %q", got)
	}
}

func TestWaitUntil_ResolvesAfterEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "math.ts")
	writeFile(t, path, "<<<<<<< HEAD\na\n=======\nb\n>>>>>>> fix\n")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	type result struct {
		content string
		err     error
	}
	done := make(chan result, 1)
	go func() {
		c, err := New(nil).WaitUntil(ctx, path, Resolved)
		done <- result{c, err}
	}()

	// Still conflicted: the wait must keep blocking.
	time.Sleep(200 * time.Millisecond)
	writeFile(t, path, "<<<<<<< HEAD\na\n")
	select {
	case r := <-done:
		t.Fatalf("returned early: %+v", r)
	case <-time.After(200 * time.Millisecond):
	}

	writeFile(t, path, "b\n")
	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("WaitUntil: %v", r.err)
		}
		if r.content != "b\n" {
			t.Errorf("content = %q", r.content)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for resolution")
	}
}

func TestWaitUntil_PredicateErrorFailsWait(t *testing.T) {
	path := filepath.Join(t.TempDir(), "math.ts")
	writeFile(t, path, "x")
	boom := errors.New("bad predicate")

	_, err := New(nil).WaitUntil(context.Background(), path, func(string) (bool, error) {
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestWaitUntil_ContextCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "math.ts")
	writeFile(t, path, "=======")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := New(nil).WaitUntil(ctx, path, Resolved)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestHasConflictMarkers(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"clean code", false},
		{"<<<<<<< HEAD\n", true},
		{"a\n=======\nb", true},
		{">>>>>>> branch", true},
		{"<<<<<< HEAD", false},
	}
	for _, tt := range tests {
		if got := HasConflictMarkers(tt.in); got != tt.want {
			t.Errorf("HasConflictMarkers(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestResolved_EmptyIsPending(t *testing.T) {
	ok, err := Resolved("  \n")
	if err != nil || ok {
		t.Errorf("Resolved(empty) = %v, %v; want false, nil", ok, err)
	}
}
