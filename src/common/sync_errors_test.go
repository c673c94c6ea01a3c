package common

import (
	"errors"
	"fmt"
	"testing"
)

func TestSyncErr(t *testing.T) {
	err := NewSyncErr("commit", UserActionable, "stage authors for commit first")

	if !IsSync(err, UserActionable) {
		t.Fatalf("expected UserActionable")
	}

	if IsSync(err, Internal) {
		t.Fatalf("unexpected Internal")
	}

	wrapped := fmt.Errorf("api: %w", err)
	if !IsSync(wrapped, UserActionable) {
		t.Fatalf("wrapped error lost its type")
	}

	if err.Message() != "stage authors for commit first" {
		t.Fatalf("message mismatch: %s", err.Message())
	}
}

func TestWrapSyncErr(t *testing.T) {
	cause := errors.New("exit status 128")
	err := WrapSyncErr("stage", RepositoryCommand, cause)

	if !errors.Is(err, cause) {
		t.Fatalf("cause not unwrapped")
	}

	if err.Type() != RepositoryCommand {
		t.Fatalf("type mismatch: %s", err.Type())
	}
}

func TestIsStore(t *testing.T) {
	err := NewStoreErr("Record", KeyNotFound, "a.txt")

	if !IsStore(err, KeyNotFound) {
		t.Fatalf("expected KeyNotFound")
	}

	if IsStore(errors.New("nope"), KeyNotFound) {
		t.Fatalf("plain error is not a StoreErr")
	}
}
