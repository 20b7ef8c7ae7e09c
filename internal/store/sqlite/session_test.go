package sqlite

import (
	"context"
	"testing"
)

func TestSessionValues(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	got, err := db.GetValue(ctx, "user_id")
	if err != nil {
		t.Fatalf("GetValue() error: %v", err)
	}
	if got != "" {
		t.Errorf("missing key = %q, want empty", got)
	}

	if err := db.SetValue(ctx, "user_id", "42"); err != nil {
		t.Fatalf("SetValue() error: %v", err)
	}
	if err := db.SetValue(ctx, "user_id", "43"); err != nil {
		t.Fatalf("SetValue() overwrite error: %v", err)
	}
	got, _ = db.GetValue(ctx, "user_id")
	if got != "43" {
		t.Errorf("GetValue() = %q, want 43", got)
	}

	if err := db.DeleteValue(ctx, "user_id"); err != nil {
		t.Fatalf("DeleteValue() error: %v", err)
	}
	if err := db.DeleteValue(ctx, "user_id"); err != nil {
		t.Errorf("DeleteValue() of missing key error: %v", err)
	}
	got, _ = db.GetValue(ctx, "user_id")
	if got != "" {
		t.Errorf("after delete = %q, want empty", got)
	}
}
