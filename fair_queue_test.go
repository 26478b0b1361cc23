package taskpool

import (
	"fmt"
	"strings"
	"testing"
)

func tenantTask(tenant string, i int) Task[int] {
	return Task[int]{ID: fmt.Sprintf("%s%d", tenant, i), Tenant: tenant, Payload: i}
}

func drainTenants(q *FairQueue[int], ts *Tombstones) string {
	var sb strings.Builder
	for {
		task, ok := q.PopOne(ts)
		if !ok {
			return sb.String()
		}
		sb.WriteString(task.Tenant)
	}
}

func TestFairQueueRoundRobin(t *testing.T) {
	t.Parallel()

	q := NewFairQueue[int]()
	for i := 0; i < 10; i++ {
		q.Push(tenantTask("A", i))
	}
	for i := 0; i < 3; i++ {
		q.Push(tenantTask("B", i))
	}
	for i := 0; i < 3; i++ {
		q.Push(tenantTask("C", i))
	}

	if q.Tenants() != 3 {
		t.Fatalf("tenants = %d; want 3", q.Tenants())
	}
	if got, want := drainTenants(q, nil), "ABCABCABCAAAAAAA"; got != want {
		t.Fatalf("order = %s; want %s", got, want)
	}
	if !q.Empty() || q.Tenants() != 0 {
		t.Fatalf("queue not empty: len=%d tenants=%d", q.Len(), q.Tenants())
	}
}

func TestFairQueuePreservesTenantOrder(t *testing.T) {
	t.Parallel()

	q := NewFairQueue[int]()
	for i := 0; i < 5; i++ {
		q.Push(tenantTask("A", i))
		q.Push(tenantTask("B", i))
	}

	next := map[string]int{}
	for {
		task, ok := q.PopOne(nil)
		if !ok {
			break
		}
		if task.Payload != next[task.Tenant] {
			t.Fatalf("tenant %s got payload %d; want %d", task.Tenant, task.Payload, next[task.Tenant])
		}
		next[task.Tenant]++
	}
}

func TestFairQueueTenantRejoinsRing(t *testing.T) {
	t.Parallel()

	q := NewFairQueue[int]()
	q.Push(tenantTask("A", 0))
	q.Push(tenantTask("B", 0))

	if task, _ := q.PopOne(nil); task.Tenant != "A" {
		t.Fatalf("first = %s; want A", task.Tenant)
	}
	// A left the ring when its backlog emptied and rejoins at the tail.
	q.Push(tenantTask("A", 1))
	if got, want := drainTenants(q, nil), "BA"; got != want {
		t.Fatalf("order = %s; want %s", got, want)
	}
}

func TestFairQueueTombstoneKeepsTurn(t *testing.T) {
	t.Parallel()

	q := NewFairQueue[int]()
	q.Push(tenantTask("A", 0))
	q.Push(tenantTask("A", 1))
	q.Push(tenantTask("B", 0))

	ts := NewTombstones()
	ts.Plant("A0")

	task, ok := q.PopOne(ts)
	if !ok || task.ID != "A1" {
		t.Fatalf("pop = %s,%v; want A1,true", task.ID, ok)
	}
	if ts.Len() != 0 {
		t.Fatalf("tombstone not consumed")
	}
	if task, _ := q.PopOne(ts); task.ID != "B0" {
		t.Fatalf("pop = %s; want B0", task.ID)
	}
	if !q.Empty() {
		t.Fatalf("len = %d; want 0", q.Len())
	}
}

func TestFairQueueTombstonedBacklogYieldsNextTenant(t *testing.T) {
	t.Parallel()

	q := NewFairQueue[int]()
	q.Push(tenantTask("A", 0))
	q.Push(tenantTask("B", 0))

	ts := NewTombstones()
	ts.Plant("A0")

	task, ok := q.PopOne(ts)
	if !ok || task.ID != "B0" {
		t.Fatalf("pop = %s,%v; want B0,true", task.ID, ok)
	}
	if _, ok := q.PopOne(ts); ok {
		t.Fatal("queue should be empty")
	}
}

func TestFairQueueSkipsStaleRingEntries(t *testing.T) {
	t.Parallel()

	q := NewFairQueue[int]()
	for i := 0; i < 1000; i++ {
		q.ring.PushBack(fmt.Sprintf("ghost-%d", i))
	}
	q.Push(tenantTask("A", 0))

	task, ok := q.PopOne(nil)
	if !ok || task.ID != "A0" {
		t.Fatalf("pop = %s,%v; want A0,true", task.ID, ok)
	}
	if q.Tenants() != 0 {
		t.Fatalf("tenants = %d; want 0", q.Tenants())
	}
}

func TestFairQueueEmpty(t *testing.T) {
	t.Parallel()

	q := NewFairQueue[int]()
	if _, ok := q.PopOne(nil); ok {
		t.Fatal("pop on empty queue succeeded")
	}
	if !q.Empty() {
		t.Fatal("new queue not empty")
	}
}
