package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/aescanero/scenegen/pkg/domain"
)

func TestJobStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewJobStore()

	job := domain.NewJob("job-1", "make a circle")
	if err := store.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, job); err == nil {
		t.Fatal("expected duplicate create to fail")
	}

	if err := job.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.JobStatusRunning {
		t.Fatalf("status = %s, want running", got.Status)
	}
}

func TestJobStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewJobStore()

	job := domain.NewJob("job-1", "prompt")
	_ = store.Create(ctx, job)
	job.Prompt = "mutated after create"

	got, _ := store.Get(ctx, "job-1")
	got.Status = domain.JobStatusFailed

	again, _ := store.Get(ctx, "job-1")
	if again.Prompt != "prompt" || again.Status != domain.JobStatusQueued {
		t.Fatalf("stored job was mutated through a copy: %+v", again)
	}
}

func TestJobStoreNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewJobStore()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("get err = %v, want ErrJobNotFound", err)
	}
	if err := store.Update(ctx, domain.NewJob("missing", "p")); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("update err = %v, want ErrJobNotFound", err)
	}
}

func TestJobStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewJobStore()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		id := fmt.Sprintf("job-%d", i)
		go func() {
			defer wg.Done()
			_ = store.Create(ctx, domain.NewJob(id, "p"))
		}()
		go func() {
			defer wg.Done()
			_, _ = store.Get(ctx, id)
		}()
	}
	wg.Wait()

	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 100 {
		t.Fatalf("jobs = %d, want 100", len(jobs))
	}
}
