package util

import (
	"context"
	"testing"
	"time"
)

func TestRebuildLimiterDisabled(t *testing.T) {
	if l := NewRebuildLimiter(0); l != nil {
		t.Fatal("zero rate should disable the limiter")
	}
	if l := NewRebuildLimiter(-1); l != nil {
		t.Fatal("negative rate should disable the limiter")
	}
}

func TestRebuildLimiterSpacesReruns(t *testing.T) {
	l := NewRebuildLimiter(20)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first rerun should be immediate: %v", err)
	}
	if l.Delayed() != 0 {
		t.Fatalf("expected no delayed reruns, got %d", l.Delayed())
	}

	start := time.Now()
	if err := l.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("second rerun should wait for the next token")
	}
	if l.Delayed() != 1 {
		t.Fatalf("expected one delayed rerun, got %d", l.Delayed())
	}
}

func TestRebuildLimiterWaitHonorsContext(t *testing.T) {
	l := NewRebuildLimiter(0.01)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first rerun should be immediate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Fatal("expected wait to fail before the next token")
	}
}
