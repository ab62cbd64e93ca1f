package pipeline

import (
	"context"
	"runtime"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"

	"github.com/kentjhall/shadercore"
	"github.com/kentjhall/shadercore/descriptor"
	"github.com/kentjhall/shadercore/ir"
	"github.com/kentjhall/shadercore/worker"
)

// Config is the small set of behavior toggles a Cache needs, mirroring
// the declarative-options-struct pattern the teacher's own render
// pipeline descriptors use.
type Config struct {
	// BuildInParallel dispatches cache-miss builds onto the build
	// worker pool instead of running them synchronously on the render
	// thread's call to Draw.
	BuildInParallel bool
	// AsyncShaders enables the "skip a disposable draw while its
	// pipeline is still building" heuristic of spec.md §4.G step 5.
	AsyncShaders bool
}

// ProgressFunc reports LoadDiskResources progress in the three stages
// spec.md §4.G names: discovering an entry, starting its build, and
// completing it.
type ProgressFunc func(stage string, done, total int)

// Cache is the render thread's pipeline store: keyed lookups into
// built graphics/compute pipelines, the fast-path transition chain off
// the current pipeline, and the background worker pools that perform
// builds and disk serialization off that thread. Grounded directly on
// the teacher's PipelineCacheCore (RWMutex + double-check locking,
// atomic hit/miss counters); the spec's single-render-thread convention
// would let the map accesses go unlocked, but a Go rewrite cannot
// assume a single OS thread the way the C++ original's "render thread"
// discipline did, so the RWMutex is kept as a deliberate deviation.
type Cache struct {
	mu       sync.RWMutex
	graphics map[GraphicsKey]*GraphicsPipeline
	compute  map[ComputeKey]*ComputePipeline

	currentGraphics *GraphicsPipeline
	currentCompute  *ComputePipeline

	device hal.Device
	cfg    Config

	buildPool *worker.Pool
	diskPool  *worker.Pool
	notify    *ShaderNotify

	hits, misses uint64
}

// NewCache constructs a Cache bound to device (may be nil for tests
// that never reach a real host pipeline-creation call), spinning up the
// build pool at max(GOMAXPROCS,2)-1 workers and a single-worker disk
// pool per spec.md §4.I/§5.
func NewCache(device hal.Device, cfg Config) *Cache {
	buildWorkers := runtime.GOMAXPROCS(0)
	if buildWorkers < 2 {
		buildWorkers = 2
	}
	buildWorkers--

	return &Cache{
		graphics:  make(map[GraphicsKey]*GraphicsPipeline),
		compute:   make(map[ComputeKey]*ComputePipeline),
		device:    device,
		cfg:       cfg,
		buildPool: worker.NewPool(buildWorkers, nil),
		diskPool:  worker.NewPool(1, nil),
		notify:    NewShaderNotify(),
	}
}

// CurrentGraphicsPipeline returns the pipeline most recently selected by
// Draw, if any.
func (c *Cache) CurrentGraphicsPipeline() (*GraphicsPipeline, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentGraphics, c.currentGraphics != nil
}

// CurrentComputePipeline returns the pipeline most recently selected for
// dispatch, if any.
func (c *Cache) CurrentComputePipeline() (*ComputePipeline, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentCompute, c.currentCompute != nil
}

// Stats returns the cache hit/miss counters the teacher's
// PipelineCacheCore also exposes.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Notify returns the in-flight build counter Draw/Build update.
func (c *Cache) Notify() *ShaderNotify { return c.notify }

// DrawRequest bundles the per-draw inputs Draw's 5-step algorithm needs:
// the refreshed stage environments (a nil Environment means that stage
// slot is empty), the refreshed fixed-function state, and the
// disposable-draw heuristics used when async shaders are enabled.
type DrawRequest struct {
	Stages      [5]Environment
	State       FixedPipelineState
	Depthless   bool
	IndexCount  int
	VertexCount int
}

// Draw implements spec.md §4.G's per-draw algorithm:
//  1. refresh each stage's unique_hashes from env.Code()/StartAddress();
//  2. the FixedPipelineState key is already refreshed by the caller (req.State);
//  3. consult the current pipeline's transition list for a fast-path match;
//  4. otherwise look up (or build) in the keyed cache;
//  5. under async shaders, return (nil, nil) for a disposable draw whose
//     pipeline isn't built yet, rather than blocking.
func (c *Cache) Draw(ctx context.Context, req DrawRequest, profile *Profile, rt *RuntimeInfo) (*GraphicsPipeline, error) {
	var key GraphicsKey
	key.State = req.State
	for i, env := range req.Stages {
		if env == nil {
			continue
		}
		key.UniqueHashes[i] = HashGuestCode(env.Code())
	}

	c.mu.RLock()
	current := c.currentGraphics
	c.mu.RUnlock()

	if current != nil {
		if next, ok := current.FindTransition(key); ok {
			c.setCurrentGraphics(next)
			return c.resolveAsync(ctx, next, req)
		}
	}

	c.mu.RLock()
	pipeline, ok := c.graphics[key]
	c.mu.RUnlock()

	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
	} else {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		pipeline = NewGraphicsPipeline(key)
		c.mu.Lock()
		c.graphics[key] = pipeline
		c.mu.Unlock()
		c.Build(pipeline, req.Stages, profile, rt)
	}

	if current != nil {
		current.AddTransition(key, pipeline)
	}
	c.setCurrentGraphics(pipeline)

	return c.resolveAsync(ctx, pipeline, req)
}

func (c *Cache) setCurrentGraphics(p *GraphicsPipeline) {
	c.mu.Lock()
	c.currentGraphics = p
	c.mu.Unlock()
}

// resolveAsync implements Draw step 5: when async shaders are enabled
// and the pipeline hasn't finished building, a disposable draw (no
// depth target and either more than six indices or more than six
// vertices — cheap enough that stalling the render thread on it would
// cost more than the visual glitch of skipping one frame's draw) is
// skipped by returning a nil pipeline; otherwise the caller blocks on
// the build condvar.
func (c *Cache) resolveAsync(ctx context.Context, p *GraphicsPipeline, req DrawRequest) (*GraphicsPipeline, error) {
	if p.IsBuilt() {
		return p, nil
	}
	if c.cfg.AsyncShaders && req.Depthless && (req.IndexCount > 6 || req.VertexCount > 6) {
		return nil, nil
	}
	p.WaitBuilt()
	_ = ctx
	return p, nil
}

// Build compiles every non-empty stage of pipeline.Key through
// compileStage, assembles the descriptor layout, and marks the pipeline
// built. When Config.BuildInParallel is set the work is dispatched onto
// the build pool; Draw's caller observes completion only via
// WaitBuilt/IsBuilt, never via this call's return.
func (c *Cache) Build(pipeline *GraphicsPipeline, stages [5]Environment, profile *Profile, rt *RuntimeInfo) {
	run := func(worker.State) {
		c.notify.MarkBuildStarted()
		defer c.notify.MarkBuildComplete()
		c.buildGraphics(pipeline, stages, profile, rt)
		c.queueDiskWrite(pipeline)
	}
	if c.cfg.BuildInParallel {
		c.buildPool.QueueWork(run)
	} else {
		run(nil)
	}
}

// buildGraphics compiles every non-empty stage and assembles the
// descriptor layout. Host pipeline-object creation itself — the actual
// vkCreateGraphicsPipelines-equivalent call through hal.Device — is left
// for a caller wiring a concrete hal backend in, the same placeholder
// shape the teacher's own createRenderPipeline leaves for its
// commented-out hal.RenderPipelineDescriptor call: Handle stays its
// zero value and the pipeline is usable for every cache/transition/
// descriptor-layout purpose this package covers.
func (c *Cache) buildGraphics(pipeline *GraphicsPipeline, stages [5]Environment, profile *Profile, rt *RuntimeInfo) {
	anyStage := false
	for i, env := range stages {
		if env == nil {
			continue
		}
		anyStage = true
		stage, err := compileStage(env, profile, rt)
		if err != nil {
			shadercore.Logger().Error("pipeline: stage build failed", "stage", i, "err", err)
			continue
		}
		pipeline.StageInfos[i] = stage.Info
	}
	if !anyStage {
		shadercore.Logger().Warn("pipeline: graphics build had no non-empty stages")
	}
	_ = c.device // reserved for a wired hal.Device's CreateRenderPipeline call

	var stageInfos []*ir.ShaderInfo
	for _, info := range pipeline.StageInfos {
		if info != nil {
			stageInfos = append(stageInfos, info)
		}
	}
	if len(stageInfos) > 0 {
		layout, err := descriptor.BuildLayout(stageInfos, c.limits())
		if err != nil {
			shadercore.Logger().Error("pipeline: BuildLayout failed", "err", err)
		} else {
			pipeline.Layout = layout
		}
	}

	pipeline.MarkBuilt()
}

func (c *Cache) limits() gpucontext.Limits {
	return gpucontext.Limits{MaxPushDescriptors: 32}
}

func (c *Cache) queueDiskWrite(pipeline *GraphicsPipeline) {
	c.diskPool.Submit(func() {
		// Serialization itself is an external-collaborator concern
		// (spec.md Non-goals: "disk file I/O primitives are out of
		// scope"); this pool slot exists so a caller wiring in a real
		// io.Writer preserves build-completion order without the
		// render thread ever blocking on it.
		_ = pipeline
	})
}

// LoadDiskResources iterates records read via DecodeCacheRecords,
// enqueuing a build job per entry onto the build pool and reporting
// progress through the three stages spec.md §4.G names. Loading is
// cooperatively cancellable: ctx cancellation stops enqueuing further
// builds, and in-flight jobs are left to finish (the worker pool never
// interrupts a job mid-unit-of-work).
func (c *Cache) LoadDiskResources(ctx context.Context, titleID string, data []byte, progress ProgressFunc) error {
	records, err := DecodeCacheRecords(data)
	if err != nil {
		return err
	}

	total := len(records)
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if progress != nil {
			progress("discover", i, total)
		}
		rec := rec
		c.buildPool.QueueWork(func(worker.State) {
			if progress != nil {
				progress("build-start", i, total)
			}
			c.loadRecord(rec)
			if progress != nil {
				progress("build-complete", i, total)
			}
		})
	}
	return nil
}

func (c *Cache) loadRecord(rec CacheRecord) {
	if rec.Kind == CacheRecordCompute {
		c.mu.Lock()
		if _, ok := c.compute[rec.ComputeKey]; !ok {
			c.compute[rec.ComputeKey] = NewComputePipeline(rec.ComputeKey)
		}
		c.mu.Unlock()
		return
	}
	c.mu.Lock()
	if _, ok := c.graphics[rec.GraphicsKey]; !ok {
		c.graphics[rec.GraphicsKey] = NewGraphicsPipeline(rec.GraphicsKey)
	}
	c.mu.Unlock()
}

// Close shuts down the cache's worker pools, waiting for in-flight
// builds and disk writes to finish.
func (c *Cache) Close() {
	c.buildPool.Close()
	c.diskPool.Close()
}
