package taskpool

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func bandTask(band int, tenant string, i int) Task[int] {
	return Task[int]{
		ID:      fmt.Sprintf("b%d-%s-%d", band, tenant, i),
		Tenant:  tenant,
		Band:    band,
		Payload: i,
	}
}

func pullBands(s *Scheduler[int], n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		task, ok := s.TryPull()
		if !ok {
			break
		}
		sb.WriteString(fmt.Sprint(task.Band))
	}
	return sb.String()
}

func TestSchedulerBudgetCycle(t *testing.T) {
	t.Parallel()

	s := NewScheduler[int](0, []int{2, 1})
	for i := 0; i < 6; i++ {
		s.Push(bandTask(0, "t", i))
	}
	for i := 0; i < 3; i++ {
		s.Push(bandTask(1, "t", i))
	}

	if got, want := pullBands(s, 9), "001001001"; got != want {
		t.Fatalf("bands = %s; want %s", got, want)
	}
}

func TestSchedulerDefaultBudgetsBoundStarvation(t *testing.T) {
	t.Parallel()

	s := NewScheduler[int](0, nil)
	if s.Bands() != len(DefaultBudgets) {
		t.Fatalf("bands = %d; want %d", s.Bands(), len(DefaultBudgets))
	}
	for b := 0; b < 3; b++ {
		for i := 0; i < 200; i++ {
			s.Push(bandTask(b, "t", i))
		}
	}

	counts := make([]int, 3)
	for i := 0; i < 101; i++ {
		task, ok := s.TryPull()
		if !ok {
			t.Fatalf("pull %d failed", i)
		}
		counts[task.Band]++
	}
	if counts[0] != 70 || counts[1] != 30 || counts[2] != 1 {
		t.Fatalf("per-band deliveries in one cycle = %v; want [70 30 1]", counts)
	}
}

func TestSchedulerEmptyBandDoesNotSpendBudget(t *testing.T) {
	t.Parallel()

	s := NewScheduler[int](0, []int{2, 1})
	for i := 0; i < 3; i++ {
		s.Push(bandTask(1, "t", i))
	}
	if got, want := pullBands(s, 3), "111"; got != want {
		t.Fatalf("bands = %s; want %s", got, want)
	}

	for i := 0; i < 2; i++ {
		s.Push(bandTask(0, "t", i))
	}
	if got, want := pullBands(s, 2), "00"; got != want {
		t.Fatalf("bands = %s; want %s", got, want)
	}
}

func TestSchedulerBandsAreFairAcrossTenants(t *testing.T) {
	t.Parallel()

	s := NewScheduler[int](0, []int{1})
	for i := 0; i < 4; i++ {
		s.Push(bandTask(0, "A", i))
	}
	s.Push(bandTask(0, "B", 0))

	var sb strings.Builder
	for {
		task, ok := s.TryPull()
		if !ok {
			break
		}
		sb.WriteString(task.Tenant)
	}
	if got, want := sb.String(), "ABAAA"; got != want {
		t.Fatalf("tenants = %s; want %s", got, want)
	}
}

func TestSchedulerNormalizeBand(t *testing.T) {
	t.Parallel()

	s := NewScheduler[int](0, []int{1, 1, 1})
	cases := []struct {
		in, want int
	}{
		{-5, 0},
		{0, 0},
		{1, 1},
		{2, 2},
		{99, 2},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.in), func(t *testing.T) {
			if got := s.NormalizeBand(tc.in); got != tc.want {
				t.Fatalf("NormalizeBand(%d) = %d; want %d", tc.in, got, tc.want)
			}
		})
	}

	s.Push(bandTask(99, "t", 0))
	if s.BandLen(2) != 1 {
		t.Fatalf("out-of-range band not clamped to the lowest band")
	}
}

func TestSchedulerDisabledBandRejects(t *testing.T) {
	t.Parallel()

	s := NewScheduler[int](0, []int{1, 0})
	if s.Push(bandTask(1, "t", 0)) {
		t.Fatal("push into zero-budget band succeeded")
	}
	if !s.Push(bandTask(0, "t", 0)) {
		t.Fatal("push into enabled band failed")
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d; want 1", s.Len())
	}
}

func TestSchedulerCancel(t *testing.T) {
	t.Parallel()

	t.Run("skips queued task", func(t *testing.T) {
		var discarded atomic.Int32
		s := NewScheduler[int](0, []int{1})
		s.onDiscard = func(n int) { discarded.Add(int32(n)) }

		s.Push(Task[int]{ID: "x", Tenant: "A"})
		s.Push(Task[int]{ID: "y", Tenant: "A"})
		if !s.Cancel("x") {
			t.Fatal("cancel returned false")
		}
		if s.Cancel("x") {
			t.Fatal("second cancel of the same id returned true")
		}

		task, ok := s.TryPull()
		if !ok || task.ID != "y" {
			t.Fatalf("pull = %s,%v; want y,true", task.ID, ok)
		}
		if discarded.Load() != 1 {
			t.Fatalf("discarded = %d; want 1", discarded.Load())
		}
	})

	t.Run("fresh submission clears tombstone", func(t *testing.T) {
		s := NewScheduler[int](0, []int{1})
		s.Cancel("x")
		s.Push(Task[int]{ID: "x", Tenant: "A"})

		task, ok := s.TryPull()
		if !ok || task.ID != "x" {
			t.Fatalf("pull = %s,%v; want x,true", task.ID, ok)
		}
	})

	t.Run("requeue keeps tombstone", func(t *testing.T) {
		s := NewScheduler[int](0, []int{1})
		s.Cancel("x")
		s.Requeue(Task[int]{ID: "x", Tenant: "A", Attempt: 1})

		if _, ok := s.TryPull(); ok {
			t.Fatal("requeued task was not cancelled")
		}
		if s.Len() != 0 {
			t.Fatalf("len = %d; want 0", s.Len())
		}
	})

	t.Run("blocked pull survives discards", func(t *testing.T) {
		s := NewScheduler[int](0, []int{1})
		s.Push(Task[int]{ID: "x", Tenant: "A"})
		s.Cancel("x")

		res := make(chan string, 1)
		go func() {
			task, _ := s.Pull()
			res <- task.ID
		}()
		time.Sleep(10 * time.Millisecond)
		s.Push(Task[int]{ID: "y", Tenant: "B"})

		select {
		case id := <-res:
			if id != "y" {
				t.Fatalf("pull = %s; want y", id)
			}
		case <-time.After(time.Second):
			t.Fatal("pull did not return")
		}
	})
}

func TestSchedulerBlocking(t *testing.T) {
	t.Parallel()

	t.Run("push waits for capacity", func(t *testing.T) {
		s := NewScheduler[int](1, []int{1})
		s.Push(bandTask(0, "t", 0))
		if s.TryPush(bandTask(0, "t", 1)) {
			t.Fatal("TryPush on full scheduler succeeded")
		}

		done := make(chan bool)
		go func() { done <- s.Push(bandTask(0, "t", 1)) }()
		time.Sleep(10 * time.Millisecond)
		s.Pull()

		select {
		case ok := <-done:
			if !ok {
				t.Fatal("push returned false")
			}
		case <-time.After(time.Second):
			t.Fatal("push not released by pull")
		}
	})

	t.Run("pull waits for work", func(t *testing.T) {
		s := NewScheduler[int](0, nil)
		res := make(chan int, 1)
		go func() {
			task, _ := s.Pull()
			res <- task.Payload
		}()
		time.Sleep(10 * time.Millisecond)
		s.Push(bandTask(2, "t", 7))

		select {
		case v := <-res:
			if v != 7 {
				t.Fatalf("payload = %d; want 7", v)
			}
		case <-time.After(time.Second):
			t.Fatal("pull not released by push")
		}
	})

	t.Run("close drains", func(t *testing.T) {
		s := NewScheduler[int](0, nil)
		s.Push(bandTask(0, "t", 0))
		s.Close()
		if s.Push(bandTask(0, "t", 1)) {
			t.Fatal("push after close succeeded")
		}
		if _, ok := s.Pull(); !ok {
			t.Fatal("queued task lost on close")
		}
		if _, ok := s.Pull(); ok {
			t.Fatal("pull on closed empty scheduler succeeded")
		}
	})

	t.Run("abort abandons", func(t *testing.T) {
		s := NewScheduler[int](0, nil)
		s.Push(bandTask(0, "t", 0))
		s.Abort()
		if _, ok := s.Pull(); ok {
			t.Fatal("pull after abort succeeded")
		}
		if _, ok := s.TryPull(); ok {
			t.Fatal("TryPull after abort succeeded")
		}
	})

	t.Run("abort wakes blocked push", func(t *testing.T) {
		s := NewScheduler[int](1, nil)
		s.Push(bandTask(0, "t", 0))
		done := make(chan bool)
		go func() { done <- s.Push(bandTask(0, "t", 1)) }()
		time.Sleep(10 * time.Millisecond)
		s.Abort()

		select {
		case ok := <-done:
			if ok {
				t.Fatal("push succeeded after abort")
			}
		case <-time.After(time.Second):
			t.Fatal("push not woken by abort")
		}
	})
}
