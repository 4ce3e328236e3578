package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndSkipsNil(t *testing.T) {
	rewards := &stubJob{name: "weekly-rewards"}
	reconcile := &stubJob{name: "claim-reconcile"}
	registry := NewRegistry(rewards, nil)
	registry.Register(nil)
	registry.Register(reconcile)

	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != rewards || jobs[1] != reconcile {
		t.Fatalf("jobs returned out of order")
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryReplacesJobWithSameName(t *testing.T) {
	first := &stubJob{name: "weekly-rewards"}
	retention := &stubJob{name: "outbox-retention"}
	second := &stubJob{name: "weekly-rewards"}
	registry := NewRegistry(first, retention, second)

	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != second {
		t.Fatalf("expected replacement to keep the original position")
	}
	got, ok := registry.Lookup("weekly-rewards")
	if !ok || got != second {
		t.Fatalf("lookup returned %v, %v", got, ok)
	}
	if _, ok := registry.Lookup("order-ttl"); ok {
		t.Fatalf("unexpected job found")
	}
}
