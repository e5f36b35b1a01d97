package grain

import "testing"

func fill(t *testing.T, p *Pool) {
	t.Helper()
	for i := 0; i < PoolSize; i++ {
		v, ok := p.Allocate()
		if !ok {
			t.Fatalf("allocation %d failed", i)
		}
		p.Activate(v, Params{Duration: 0.1, Rate: 1})
	}
}

func TestAllocateFirstIdle(t *testing.T) {
	p := NewPool()
	a, _ := p.Allocate()
	p.Activate(a, Params{Duration: 0.1, Rate: 1})
	b, _ := p.Allocate()
	if a.Slot != 0 || b.Slot != 1 {
		t.Fatalf("expected slots 0 and 1, got %d and %d", a.Slot, b.Slot)
	}
	p.Release(a)
	c, _ := p.Allocate()
	if c.Slot != 0 {
		t.Fatalf("released slot should be reused first, got %d", c.Slot)
	}
}

func TestPoolExhaustion(t *testing.T) {
	p := NewPool()
	fill(t, p)
	if p.Active() != PoolSize {
		t.Fatalf("Active() = %d, want %d", p.Active(), PoolSize)
	}
	if v, ok := p.Allocate(); ok || v != nil {
		t.Fatalf("allocation from a full pool should fail")
	}
	if p.Active() != PoolSize {
		t.Fatalf("failed allocation changed the active count")
	}
}

func TestReleaseIdempotent(t *testing.T) {
	p := NewPool()
	v, _ := p.Allocate()
	p.Activate(v, Params{Duration: 0.1})
	if !p.Release(v) {
		t.Fatalf("first release should succeed")
	}
	if p.Release(v) {
		t.Fatalf("second release should be a no-op")
	}
	if p.Active() != 0 {
		t.Fatalf("Active() = %d after double release", p.Active())
	}
}

func TestReleaseGrainIgnoresStaleID(t *testing.T) {
	p := NewPool()
	v, _ := p.Allocate()
	first := p.Activate(v, Params{Duration: 0.1})
	p.Release(v)
	v, _ = p.Allocate()
	second := p.Activate(v, Params{Duration: 0.1})
	if first == second {
		t.Fatalf("grain ids must be unique")
	}
	if p.ReleaseGrain(v.Slot, first) {
		t.Fatalf("stale completion released the new grain")
	}
	if !p.ReleaseGrain(v.Slot, second) {
		t.Fatalf("current grain should release")
	}
	if p.ReleaseGrain(PoolSize, second) {
		t.Fatalf("out-of-range slot should not release")
	}
}

func TestStopAll(t *testing.T) {
	p := NewPool()
	fill(t, p)
	stopped := p.StopAll()
	if len(stopped) != PoolSize || p.Active() != 0 {
		t.Fatalf("StopAll stopped %d, active %d", len(stopped), p.Active())
	}
	count := 0
	p.Each(func(*Voice) { count++ })
	if count != 0 {
		t.Fatalf("Each visited %d voices after StopAll", count)
	}
}
