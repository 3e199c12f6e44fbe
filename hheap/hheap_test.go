package hheap

import (
	"testing"

	"github.com/westrhh/hhrun/block"
	"github.com/westrhh/hhrun/gcstate"
)

func TestExtendCreatesLevelAndSetsLastAllocatedChunk(t *testing.T) {
	alloc := block.NewAllocator(0)
	defer alloc.Close()

	hh := NewHH()
	if err := hh.Extend(alloc, 2, 64); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if hh.Levels[2] == nil || hh.Levels[2].Count() != 1 {
		t.Fatal("level 2 should have exactly one chunk")
	}
	if hh.LastAllocatedChunk != hh.Levels[2].Tail {
		t.Fatal("lastAllocatedChunk should be the newly appended chunk")
	}
	if hh.GetFrontier() != hh.LastAllocatedChunk.Start {
		t.Fatal("fresh chunk's frontier should sit at its start")
	}
}

func TestEnsureNotEmptyIsIdempotent(t *testing.T) {
	alloc := block.NewAllocator(0)
	defer alloc.Close()

	hh := NewHH()
	if err := hh.EnsureNotEmpty(alloc, 0); err != nil {
		t.Fatalf("EnsureNotEmpty: %v", err)
	}
	c := hh.LastAllocatedChunk
	if err := hh.EnsureNotEmpty(alloc, 0); err != nil {
		t.Fatalf("EnsureNotEmpty (2nd): %v", err)
	}
	if hh.LastAllocatedChunk != c {
		t.Fatal("EnsureNotEmpty should be a no-op once a chunk exists")
	}
}

func TestUpdateValuesTracksBytesAllocated(t *testing.T) {
	alloc := block.NewAllocator(0)
	defer alloc.Close()

	hh := NewHH()
	if err := hh.Extend(alloc, 0, 64); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	start := hh.GetFrontier()
	hh.UpdateValues(start + 128)
	if hh.BytesAllocatedSinceLastCollection != 128 {
		t.Fatalf("bytesAllocated = %d, want 128", hh.BytesAllocatedSinceLastCollection)
	}
	if hh.LastAllocatedChunk.Frontier != start+128 {
		t.Fatal("chunk frontier should track the mutator's frontier")
	}
}

func TestDesiredCollectionScope(t *testing.T) {
	hh := NewHH()
	hh.CollectionThreshold = 100
	cfg := gcstate.DefaultConfig()

	cfg.HHCollectionLevel = gcstate.CollectionNone
	if got := hh.DesiredCollectionScope(cfg, 3); got != 4 {
		t.Fatalf("CollectionNone should never trigger, got %d", got)
	}

	cfg.HHCollectionLevel = gcstate.CollectionAll
	hh.BytesAllocatedSinceLastCollection = 50
	if got := hh.DesiredCollectionScope(cfg, 3); got != 4 {
		t.Fatalf("below threshold should not trigger, got %d", got)
	}

	hh.BytesAllocatedSinceLastCollection = 150
	if got := hh.DesiredCollectionScope(cfg, 3); got != 3 {
		t.Fatalf("above threshold should target currentDepth, got %d", got)
	}

	cfg.HHCollectionLevel = gcstate.CollectionSuperlocal
	if got := hh.DesiredCollectionScope(cfg, 3); got != 3 {
		t.Fatalf("superlocal above threshold should target currentDepth, got %d", got)
	}
}

func TestHighestNonEmptyLevel(t *testing.T) {
	alloc := block.NewAllocator(0)
	defer alloc.Close()

	hh := NewHH()
	if _, ok := hh.HighestNonEmptyLevel(5); ok {
		t.Fatal("empty heap should report no non-empty level")
	}
	if err := hh.Extend(alloc, 1, 64); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if err := hh.Extend(alloc, 3, 64); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	top, ok := hh.HighestNonEmptyLevel(5)
	if !ok || top != 3 {
		t.Fatalf("HighestNonEmptyLevel = (%d,%v), want (3,true)", top, ok)
	}
}
