package jobs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) Purge(context.Context) (int64, error) {
	p.calls.Add(1)
	return 3, p.err
}

func TestNewJanitor_Validation(t *testing.T) {
	if _, err := NewJanitor(nil, time.Minute, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for nil purger")
	}
	if _, err := NewJanitor(&countingPurger{}, 0, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for zero interval")
	}
}

func TestJanitor_RunOnceLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	p := &countingPurger{err: errors.New("db down")}
	j, err := NewJanitor(p, time.Hour, zerolog.New(&buf))
	if err != nil {
		t.Fatalf("NewJanitor: %v", err)
	}

	j.RunOnce()
	if p.calls.Load() != 1 {
		t.Fatalf("calls=%d", p.calls.Load())
	}
	if !strings.Contains(buf.String(), "purge failed") || !strings.Contains(buf.String(), `"job":"event_purge"`) {
		t.Fatalf("log=%s", buf.String())
	}
}

func TestJanitor_StartRunsImmediately(t *testing.T) {
	p := &countingPurger{}
	j, err := NewJanitor(p, time.Hour, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewJanitor: %v", err)
	}
	j.Start()
	defer j.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for p.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if p.calls.Load() == 0 {
		t.Fatalf("job did not run after Start")
	}
}
