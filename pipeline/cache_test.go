package pipeline

import (
	"context"
	"testing"
)

func TestCacheDrawBuildsOnMissAndHitsOnRepeat(t *testing.T) {
	cache := NewCache(nil, Config{})
	defer cache.Close()

	req := DrawRequest{State: FixedPipelineState{Topology: 1}}

	first, err := cache.Draw(context.Background(), req, DefaultProfile(), &RuntimeInfo{})
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if first == nil || !first.IsBuilt() {
		t.Fatal("expected a built pipeline on first Draw")
	}
	if hits, misses := cache.Stats(); hits != 0 || misses != 1 {
		t.Fatalf("got hits=%d misses=%d, want 0,1", hits, misses)
	}

	cur, ok := cache.CurrentGraphicsPipeline()
	if !ok || cur != first {
		t.Fatal("expected CurrentGraphicsPipeline to report the just-built pipeline")
	}

	// The second identical Draw resolves via the hash map (a hit) and
	// also records a self-transition on first; the third Draw then takes
	// the transition fast path without touching the hash map at all.
	second, err := cache.Draw(context.Background(), req, DefaultProfile(), &RuntimeInfo{})
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if second != first {
		t.Fatal("expected the second identical Draw to resolve to the same pipeline")
	}
	if hits, misses := cache.Stats(); hits != 1 || misses != 1 {
		t.Fatalf("got hits=%d misses=%d after second draw, want 1,1", hits, misses)
	}

	third, err := cache.Draw(context.Background(), req, DefaultProfile(), &RuntimeInfo{})
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if third != first {
		t.Fatal("expected the third identical Draw to resolve to the same pipeline via the transition fast path")
	}
	if hits, misses := cache.Stats(); hits != 1 || misses != 1 {
		t.Fatalf("got hits=%d misses=%d after third draw, want still 1,1 (transition fast path bypasses the hash map)", hits, misses)
	}
}

func TestCacheDrawDistinguishesFixedState(t *testing.T) {
	cache := NewCache(nil, Config{})
	defer cache.Close()

	a, err := cache.Draw(context.Background(), DrawRequest{State: FixedPipelineState{Topology: 1}}, DefaultProfile(), &RuntimeInfo{})
	if err != nil {
		t.Fatalf("Draw a: %v", err)
	}
	b, err := cache.Draw(context.Background(), DrawRequest{State: FixedPipelineState{Topology: 2}}, DefaultProfile(), &RuntimeInfo{})
	if err != nil {
		t.Fatalf("Draw b: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct FixedPipelineState.Topology to produce distinct pipelines")
	}
	if _, misses := cache.Stats(); misses != 2 {
		t.Fatalf("expected two misses for two distinct states")
	}
}

func TestCacheLoadDiskResourcesPopulatesCache(t *testing.T) {
	cache := NewCache(nil, Config{})
	defer cache.Close()

	records := []CacheRecord{
		{Kind: CacheRecordGraphics, GraphicsKey: GraphicsKey{UniqueHashes: [5]uint64{9}}},
		{Kind: CacheRecordCompute, ComputeKey: ComputeKey{UniqueHash: 77}},
	}
	data := EncodeCacheRecords(records)

	var stages []string
	err := cache.LoadDiskResources(context.Background(), "test-title", data, func(stage string, done, total int) {
		stages = append(stages, stage)
	})
	if err != nil {
		t.Fatalf("LoadDiskResources: %v", err)
	}
	cache.buildPool.Close()

	cache.mu.RLock()
	_, hasGraphics := cache.graphics[records[0].GraphicsKey]
	_, hasCompute := cache.compute[records[1].ComputeKey]
	cache.mu.RUnlock()

	if !hasGraphics {
		t.Fatal("expected graphics record to populate the cache")
	}
	if !hasCompute {
		t.Fatal("expected compute record to populate the cache")
	}
	if len(stages) == 0 {
		t.Fatal("expected progress callback to fire")
	}
}
