package ir

// CbufUsage tracks how large a constant buffer's used region is, the
// running maximum of any offset read from it.
type CbufUsage struct {
	MaxOffset uint32
}

// Sampler is a resolved texture sampler binding, deduped by the
// constant-buffer (index, offset) pair it was read from.
type Sampler struct {
	Cbuf, Offset int
	IsBindless   bool
	IsArray      bool
	IsShadow     bool
	IsBuffer     bool
}

// Image is a resolved storage-image binding, deduped the same way as
// Sampler.
type Image struct {
	Cbuf, Offset int
	IsBindless   bool
	IsWritten    bool
	IsRead       bool
	IsAtomic     bool
}

// GmemDescriptor identifies a global-memory buffer bound through a
// bindless base-address pair read from two consecutive cbuf slots.
type GmemDescriptor struct {
	CbufIndex       int
	BaseOffset      int
}

// GmemUsage is the monotonic read/write/atomic usage merged across every
// access to one global-memory descriptor.
type GmemUsage struct {
	Read, Write, Atomic bool
}

// LoweringContext carries every side table a family-specific lowering
// function needs, replacing the C++ ShaderIR's mutable friend-class
// state with an explicit argument (spec.md §9).
type LoweringContext struct {
	Program *Program

	UsedRegisters  map[int]struct{}
	UsedPredicates map[int]struct{}
	Cbufs          map[int]*CbufUsage

	Samplers []*Sampler
	Images   []*Image

	GlobalMemory map[GmemDescriptor]*GmemUsage

	CustomVarCounter int
}

// NewLoweringContext returns an empty context bound to prog.
func NewLoweringContext(prog *Program) *LoweringContext {
	return &LoweringContext{
		Program:        prog,
		UsedRegisters:  make(map[int]struct{}),
		UsedPredicates: make(map[int]struct{}),
		Cbufs:          make(map[int]*CbufUsage),
		GlobalMemory:   make(map[GmemDescriptor]*GmemUsage),
	}
}

// MarkRegister records that a guest GPR was read or written.
func (c *LoweringContext) MarkRegister(index int) { c.UsedRegisters[index] = struct{}{} }

// MarkPredicate records that a guest predicate register was read.
func (c *LoweringContext) MarkPredicate(index int) { c.UsedPredicates[index] = struct{}{} }

// MarkCbuf records a read at offset from constant buffer index,
// extending that buffer's tracked used size if needed.
func (c *LoweringContext) MarkCbuf(index int, offset uint32) {
	u, ok := c.Cbufs[index]
	if !ok {
		u = &CbufUsage{}
		c.Cbufs[index] = u
	}
	if offset+4 > u.MaxOffset {
		u.MaxOffset = offset + 4
	}
}

// GetSampler deduplicates on (cbuf, offset) per spec.md §3's collision
// rule: two reads of the same constant-buffer slot always resolve to the
// same Sampler, whatever shape the surrounding TEX instruction implies.
func (c *LoweringContext) GetSampler(cbuf, offset int, bindless bool) *Sampler {
	for _, s := range c.Samplers {
		if s.Cbuf == cbuf && s.Offset == offset {
			return s
		}
	}
	s := &Sampler{Cbuf: cbuf, Offset: offset, IsBindless: bindless}
	c.Samplers = append(c.Samplers, s)
	return s
}

// GetBindlessSampler is GetSampler specialized for a bindless-handle read.
func (c *LoweringContext) GetBindlessSampler(cbuf, offset int) *Sampler {
	return c.GetSampler(cbuf, offset, true)
}

// GetImage mirrors GetSampler's dedup rule for storage images.
func (c *LoweringContext) GetImage(cbuf, offset int, bindless bool) *Image {
	for _, img := range c.Images {
		if img.Cbuf == cbuf && img.Offset == offset {
			return img
		}
	}
	img := &Image{Cbuf: cbuf, Offset: offset, IsBindless: bindless}
	c.Images = append(c.Images, img)
	return img
}

// MarkRead performs a monotonic OR-merge of the read flag: once set, a
// later call that omits it never clears it.
func (img *Image) MarkRead() { img.IsRead = true }

// MarkWrite monotonically marks img as having been written.
func (img *Image) MarkWrite() { img.IsWritten = true }

// MarkAtomic monotonically marks img as having been touched by an
// atomic, implying both read and write.
func (img *Image) MarkAtomic() {
	img.IsAtomic = true
	img.IsRead = true
	img.IsWritten = true
}

// MarkGlobalMemory monotonically OR-merges a global-memory access.
func (c *LoweringContext) MarkGlobalMemory(desc GmemDescriptor, read, write, atomic bool) {
	u, ok := c.GlobalMemory[desc]
	if !ok {
		u = &GmemUsage{}
		c.GlobalMemory[desc] = u
	}
	u.Read = u.Read || read
	u.Write = u.Write || write
	u.Atomic = u.Atomic || atomic
	if atomic {
		u.Read, u.Write = true, true
	}
}

// InferIndexedSamplerSizes implements the "next-highest bound-sampler
// offset" rule: an indexed (array-of-samplers) access at offset X is
// assumed to span from X up to the next statically-bound sampler offset
// in the same constant buffer, or to the end of the buffer if none
// follows.
func (c *LoweringContext) InferIndexedSamplerSizes() map[int]int {
	byCbuf := make(map[int][]int)
	for _, s := range c.Samplers {
		byCbuf[s.Cbuf] = append(byCbuf[s.Cbuf], s.Offset)
	}
	sizes := make(map[int]int)
	for cbuf, offsets := range byCbuf {
		sorted := append([]int(nil), offsets...)
		for i := 1; i < len(sorted); i++ {
			for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
				sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
			}
		}
		usage := c.Cbufs[cbuf]
		end := 0
		if usage != nil {
			end = int(usage.MaxOffset)
		}
		for i, off := range sorted {
			next := end
			if i+1 < len(sorted) {
				next = sorted[i+1]
			}
			sizes[off] = next - off
		}
	}
	return sizes
}

// ShaderInfo is the reflection structure handed to package descriptor
// and package emit: feature-usage flags, per-cbuf used sizes, and the
// resolved resource lists.
type ShaderInfo struct {
	UsesWarps          bool
	UsesIndexedSamplers bool
	UsesLegacyVaryings bool
	UsesInstanceId     bool
	UsesVertexId       bool

	CbufMask     uint32
	CbufUsedSize map[int]uint32

	Samplers []*Sampler
	Images   []*Image

	GlobalMemoryDescriptors []GmemDescriptor
}

// BuildShaderInfo snapshots a LoweringContext into the immutable
// reflection structure emit/descriptor consume.
func BuildShaderInfo(ctx *LoweringContext) *ShaderInfo {
	info := &ShaderInfo{
		CbufUsedSize: make(map[int]uint32, len(ctx.Cbufs)),
		Samplers:     ctx.Samplers,
		Images:       ctx.Images,
	}
	for idx, usage := range ctx.Cbufs {
		info.CbufMask |= 1 << uint(idx)
		info.CbufUsedSize[idx] = usage.MaxOffset
	}
	for desc := range ctx.GlobalMemory {
		info.GlobalMemoryDescriptors = append(info.GlobalMemoryDescriptors, desc)
	}
	info.UsesIndexedSamplers = len(ctx.InferIndexedSamplerSizes()) > 0 && anyBindless(ctx.Samplers)
	return info
}

func anyBindless(samplers []*Sampler) bool {
	for _, s := range samplers {
		if s.IsBindless {
			return true
		}
	}
	return false
}
