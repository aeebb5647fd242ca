package physics

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func overlapBody(serial uint64, owner any, group uint16) *Body {
	return &Body{serial: serial, owner: owner, def: BodyDef{Group: group}}
}

func TestOverlapCacheEnterExit(t *testing.T) {
	cache := newOverlapCache(16, zap.NewNop())

	a := overlapBody(1, "a", 1)
	b := overlapBody(2, "b", 2)

	var enters, exits []TriggerEvent
	args := &StepArgs{
		TriggerEnter: func(e TriggerEvent) { enters = append(enters, e) },
		TriggerExit:  func(e TriggerEvent) { exits = append(exits, e) },
	}

	cache.beginScan()
	cache.add(a, b, args)
	cache.prune(args)
	if len(enters) != 1 || len(exits) != 0 {
		t.Fatalf("expected 1 enter and 0 exits, got %d and %d", len(enters), len(exits))
	}
	e := enters[0]
	if e.OwnerA != "a" || e.OwnerB != "b" || e.GroupA != 1 || e.GroupB != 2 {
		t.Fatalf("unexpected enter event %+v", e)
	}

	// Still overlapping, reported with the bodies swapped: stays silent.
	cache.beginScan()
	cache.add(b, a, args)
	cache.prune(args)
	if len(enters) != 1 || len(exits) != 0 {
		t.Fatalf("expected steady overlap to stay silent, got %d and %d", len(enters), len(exits))
	}

	// The exit reports the snapshot taken at enter time even if the body
	// changed groups in between.
	b.def.Group = 9
	cache.beginScan()
	cache.prune(args)
	if len(exits) != 1 {
		t.Fatalf("expected 1 exit, got %d", len(exits))
	}
	x := exits[0]
	if x.OwnerA != "a" || x.OwnerB != "b" || x.GroupB != 2 {
		t.Fatalf("unexpected exit event %+v", x)
	}

	if len(cache.pairs) != 0 || len(cache.counts) != 0 {
		t.Fatalf("expected empty cache, got %d pairs and %d counts", len(cache.pairs), len(cache.counts))
	}
}

func TestOverlapCacheCapacity(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cache := newOverlapCache(1, zap.New(core))

	a := overlapBody(1, "a", 1)
	b := overlapBody(2, "b", 1)
	c := overlapBody(3, "c", 1)

	var enters, exits int
	args := &StepArgs{
		TriggerEnter: func(TriggerEvent) { enters++ },
		TriggerExit:  func(TriggerEvent) { exits++ },
	}

	cache.beginScan()
	cache.add(a, b, args)
	cache.add(a, c, args)
	cache.add(b, c, args)
	cache.prune(args)
	if enters != 1 {
		t.Fatalf("expected only the first pair to enter, got %d", enters)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected a single capacity warning, got %d", logs.Len())
	}

	// Dropped pairs must not produce phantom exits.
	cache.beginScan()
	cache.prune(args)
	if exits != 1 {
		t.Fatalf("expected only the cached pair to exit, got %d", exits)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected the warning to fire once, got %d", logs.Len())
	}
}

func TestOverlapCacheRemoveBody(t *testing.T) {
	cache := newOverlapCache(16, zap.NewNop())

	a := overlapBody(1, "a", 1)
	b := overlapBody(2, "b", 1)
	c := overlapBody(3, "c", 1)

	var enters, exits int
	args := &StepArgs{
		TriggerEnter: func(TriggerEvent) { enters++ },
		TriggerExit:  func(TriggerEvent) { exits++ },
	}

	cache.beginScan()
	cache.add(a, b, args)
	cache.add(a, c, args)
	cache.prune(args)
	if enters != 2 {
		t.Fatalf("expected 2 enters, got %d", enters)
	}

	// Destroying a body drops its overlaps without exit events.
	cache.removeBody(1)
	if exits != 0 {
		t.Fatalf("expected no exits on removal, got %d", exits)
	}
	if len(cache.pairs) != 0 {
		t.Fatalf("expected pairs cleared, got %d", len(cache.pairs))
	}

	// The freed slots accept new overlaps.
	cache.beginScan()
	cache.add(b, c, args)
	cache.prune(args)
	if enters != 3 {
		t.Fatalf("expected a fresh enter after removal, got %d", enters)
	}
	if n := len(cache.counts); n != 2 {
		t.Fatalf("expected counts for 2 bodies, got %d", n)
	}
}
