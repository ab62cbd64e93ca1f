// Command shadercore-cached is a thin demonstration of the pipeline
// cache: given a raw guest shader binary, it runs the full
// decode-to-SPIR-V pipeline once through pipeline.Cache and logs the
// pipeline key, the cache hit/miss counters and the resulting descriptor
// layout. It is not a
// replacement for a real guest-program loader or a disk-cache
// management tool.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/kentjhall/shadercore/flow"
	"github.com/kentjhall/shadercore/pipeline"
)

// fileEnvironment reads a guest program from a flat binary file, with
// no constant-buffer-backed indirect-branch resolution available.
type fileEnvironment struct {
	code  []byte
	entry uint64
}

func (e *fileEnvironment) StartAddress() uint64   { return e.entry }
func (e *fileEnvironment) Code() []byte           { return e.code }
func (e *fileEnvironment) Registry() flow.Registry { return nil }

func main() {
	var (
		vertexPath   = flag.String("vertex", "", "path to a vertex-stage guest shader binary")
		fragmentPath = flag.String("fragment", "", "path to a fragment-stage guest shader binary")
		parallel     = flag.Bool("parallel", true, "dispatch builds onto the background worker pool")
	)
	flag.Parse()

	if *vertexPath == "" && *fragmentPath == "" {
		log.Fatal("shadercore-cached: at least one of -vertex or -fragment is required")
	}

	cache := pipeline.NewCache(nil, pipeline.Config{BuildInParallel: *parallel})
	defer cache.Close()

	var stages [5]pipeline.Environment
	if *vertexPath != "" {
		stages[0] = loadEnvironment(*vertexPath)
	}
	if *fragmentPath != "" {
		stages[4] = loadEnvironment(*fragmentPath)
	}

	req := pipeline.DrawRequest{Stages: stages}
	built, err := cache.Draw(context.Background(), req, pipeline.DefaultProfile(), &pipeline.RuntimeInfo{})
	if err != nil {
		log.Fatalf("shadercore-cached: draw failed: %v", err)
	}
	if built == nil {
		log.Println("shadercore-cached: draw skipped (pipeline still building)")
		return
	}

	hits, misses := cache.Stats()
	log.Printf("pipeline built: key=%+v hits=%d misses=%d", built.Key, hits, misses)
	if built.Layout != nil {
		log.Printf("descriptor layout: %d entries, %d total descriptors, push=%v",
			len(built.Layout.UpdateTemplateEntries), built.Layout.TotalDescriptors(), built.Layout.UsesPushDescriptor)
	}
}

func loadEnvironment(path string) *fileEnvironment {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("shadercore-cached: reading %s: %v", path, err)
	}
	return &fileEnvironment{code: data, entry: 0}
}
