package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/skillbook/internal/models"
)

// fakeWriter implements StatusWriter for tests
type fakeWriter struct {
	fail   int // number of times to fail before succeeding
	calls  int
	fields map[string]interface{}
}

func (f *fakeWriter) SetStatus(ctx context.Context, submissionID string, fields map[string]interface{}) error {
	f.calls++
	if f.calls <= f.fail {
		return errors.New("redis fail")
	}
	f.fields = fields
	return nil
}

func TestUpdateStatusWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeWriter{fail: 1}
	ev := &models.BookingEvent{SubmissionID: "sub1", SessionID: "sess1", State: models.StateSuccess, Method: models.MethodSparkToken, At: time.Now()}
	ctx := context.Background()
	start := time.Now()
	if err := updateStatusWithRetry(ctx, f, ev, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.calls < 2 {
		t.Fatalf("expected retries, got calls=%d", f.calls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
	if f.fields["state"] != "SUCCESS" || f.fields["method"] != "SPARK_TOKEN" {
		t.Fatalf("fields = %v", f.fields)
	}
}

func TestUpdateStatusWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeWriter{fail: 5}
	ev := &models.BookingEvent{SubmissionID: "sub1", State: models.StateFailed, At: time.Now()}
	if err := updateStatusWithRetry(context.Background(), f, ev, 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
}
