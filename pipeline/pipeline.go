package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"

	"github.com/kentjhall/shadercore/descriptor"
	"github.com/kentjhall/shadercore/ir"
)

// transition is one fast-path link a pipeline accumulates as draws
// resolve through it: "the next time the renderer asks for key, hand
// back next without touching the hash map". Transitions are appended
// only from the render thread and scanned linearly, so no lock is
// needed beyond the render-thread-only discipline spec.md §5 documents.
type transition[K comparable] struct {
	key  K
	next *GraphicsPipeline
}

// GraphicsPipeline owns every per-stage resource a graphics draw needs:
// the stage shader modules, the assembled descriptor layout, the host
// pipeline-layout and pipeline handles, and the fast-path transition
// list a following draw consults before falling into the cache's hash
// map.
type GraphicsPipeline struct {
	Key GraphicsKey

	StageModules [5]hal.ShaderModule
	StageInfos   [5]*ir.ShaderInfo

	Layout         *descriptor.Layout
	HostLayout     hal.PipelineLayout
	Handle         hal.Pipeline

	isBuilt   atomic.Bool
	buildMu   sync.Mutex
	buildCond *sync.Cond

	transitions []transition[GraphicsKey]
}

// NewGraphicsPipeline allocates an unbuilt pipeline object for key; the
// caller is responsible for driving Build to completion (directly, or
// via worker.Pool).
func NewGraphicsPipeline(key GraphicsKey) *GraphicsPipeline {
	p := &GraphicsPipeline{Key: key}
	p.buildCond = sync.NewCond(&p.buildMu)
	return p
}

// IsBuilt reports whether the host pipeline handle is ready to bind.
func (p *GraphicsPipeline) IsBuilt() bool { return p.isBuilt.Load() }

// MarkBuilt flips the built flag under the build mutex and wakes every
// waiter, the same release-then-notify order spec.md §5 requires so a
// waiter never observes the flag set without also observing the fully
// constructed handle.
func (p *GraphicsPipeline) MarkBuilt() {
	p.buildMu.Lock()
	p.isBuilt.Store(true)
	p.buildCond.Broadcast()
	p.buildMu.Unlock()
}

// WaitBuilt blocks the caller until IsBuilt is true. Draw waits here for
// every unbuilt pipeline except a disposable draw under async shaders,
// which instead gets a nil pipeline to signal "skip this draw".
func (p *GraphicsPipeline) WaitBuilt() {
	p.buildMu.Lock()
	for !p.isBuilt.Load() {
		p.buildCond.Wait()
	}
	p.buildMu.Unlock()
}

// FindTransition linearly scans the transition list for key, the fast
// path a repeated draw sequence takes before any hash-map lookup.
func (p *GraphicsPipeline) FindTransition(key GraphicsKey) (*GraphicsPipeline, bool) {
	for _, t := range p.transitions {
		if t.key == key {
			return t.next, true
		}
	}
	return nil, false
}

// AddTransition appends a (key, next) fast-path link. Called only from
// the render thread when a draw resolves via the slow (hash-map) path.
func (p *GraphicsPipeline) AddTransition(key GraphicsKey, next *GraphicsPipeline) {
	p.transitions = append(p.transitions, transition[GraphicsKey]{key: key, next: next})
}

// ComputePipeline is GraphicsPipeline's single-stage analogue: no
// fixed-function state key, one shader module, no transition list (a
// compute dispatch never resolves through a fast-path chain the way a
// draw does).
type ComputePipeline struct {
	Key ComputeKey

	Module hal.ShaderModule
	Info   *ir.ShaderInfo

	Layout     *descriptor.Layout
	HostLayout hal.PipelineLayout
	Handle     hal.Pipeline

	isBuilt   atomic.Bool
	buildMu   sync.Mutex
	buildCond *sync.Cond
}

// NewComputePipeline allocates an unbuilt compute pipeline for key.
func NewComputePipeline(key ComputeKey) *ComputePipeline {
	p := &ComputePipeline{Key: key}
	p.buildCond = sync.NewCond(&p.buildMu)
	return p
}

// IsBuilt reports whether the host pipeline handle is ready to bind.
func (p *ComputePipeline) IsBuilt() bool { return p.isBuilt.Load() }

// MarkBuilt is GraphicsPipeline.MarkBuilt for a compute pipeline.
func (p *ComputePipeline) MarkBuilt() {
	p.buildMu.Lock()
	p.isBuilt.Store(true)
	p.buildCond.Broadcast()
	p.buildMu.Unlock()
}

// WaitBuilt is GraphicsPipeline.WaitBuilt for a compute pipeline.
func (p *ComputePipeline) WaitBuilt() {
	p.buildMu.Lock()
	for !p.isBuilt.Load() {
		p.buildCond.Wait()
	}
	p.buildMu.Unlock()
}
