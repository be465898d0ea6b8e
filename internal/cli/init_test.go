package cli

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	applog "sheetlink/internal/log"
)

func discardLogger() *applog.Logger {
	return applog.New(applog.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func TestGracefulShutdownCancelsBeforeCleanup(t *testing.T) {
	var ctx context.Context
	ctxErrAtCleanup := make(chan error, 1)

	c, cancel, done := GracefulShutdown(discardLogger(), time.Second, func() {
		ctxErrAtCleanup <- ctx.Err()
	})
	ctx = c

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("shutdown did not complete")
	}

	select {
	case err := <-ctxErrAtCleanup:
		if err == nil {
			t.Fatalf("cleanup ran before the context was cancelled")
		}
	default:
		t.Fatalf("cleanup did not run")
	}
}

func TestGracefulShutdownCleanupTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	_, cancel, done := GracefulShutdown(discardLogger(), 10*time.Millisecond, func() {
		<-block
	})
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("shutdown did not complete after cleanup timeout")
	}
}
