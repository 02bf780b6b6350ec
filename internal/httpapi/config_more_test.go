package httpapi

import (
	"context"
	"testing"
	"time"
)

func TestSetMaxBodyBytes_DefaultWhenNonPositive(t *testing.T) {
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB, got %d", maxBodyBytes)
	}
	SetMaxBodyBytes(0)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB on zero, got %d", maxBodyBytes)
	}
}

func TestSetMaxBodyBytes_PositiveSetsValue(t *testing.T) {
	SetMaxBodyBytes(1234)
	defer SetMaxBodyBytes(0)
	if maxBodyBytes != 1234 {
		t.Fatalf("expected 1234, got %d", maxBodyBytes)
	}
}

func TestSetEventHeartbeat_NormalizesNonPositive(t *testing.T) {
	SetEventHeartbeat(-time.Second)
	if eventHeartbeat != 15*time.Second {
		t.Fatalf("expected default, got %s", eventHeartbeat)
	}
	SetEventHeartbeat(time.Second)
	defer SetEventHeartbeat(0)
	if eventHeartbeat != time.Second {
		t.Fatalf("expected 1s, got %s", eventHeartbeat)
	}
}

func TestSetBaseContext_NilResetsToBackground(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	SetBaseContext(ctx)
	cancel()
	// nolint:staticcheck // SA1012: this test intentionally passes nil to verify fallback behavior
	SetBaseContext(nil)
	if serverBaseCtx.Err() != nil {
		t.Fatal("base context should be reset to Background")
	}
}
