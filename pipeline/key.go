// Package pipeline caches built graphics and compute pipelines keyed by
// guest-shader hash plus fixed-function state, generalizing the
// teacher's FNV-1a descriptor-hash cache from a single fixed
// RenderPipelineDescriptor shape to the spec's per-stage keyed model.
package pipeline

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// DynamicStateMode controls how much of FixedPipelineState is hashed:
// a host exposing Vulkan's extended-dynamic-state / dynamic-vertex-input
// extensions folds the corresponding fields out of the pipeline object
// entirely, so they must also drop out of the cache key or two
// pipelines differing only in dynamic state would wrongly collide in
// one direction or miss in the other.
type DynamicStateMode int

const (
	// DynamicStateNone hashes every field: no extended dynamic state,
	// no dynamic vertex input.
	DynamicStateNone DynamicStateMode = iota
	// DynamicStateExtended drops depth/stencil/rasterizer fields the
	// host can set dynamically per draw.
	DynamicStateExtended
	// DynamicStateExtendedPlusVertexInput additionally drops the
	// vertex-attribute/binding descriptor block.
	DynamicStateExtendedPlusVertexInput
)

// StencilFaceState is one face's stencil op/compare/fail/zfail/zpass
// block, typed the way the teacher's own DepthStencilState.StencilFront/
// StencilBack are (see internal/gpu/stencil_pipeline.go): Compare reuses
// gputypes' CompareFunction, and the three ops are hal.StencilOperation
// since gputypes has no stencil-op enum of its own.
type StencilFaceState struct {
	Compare     gputypes.CompareFunction
	FailOp      hal.StencilOperation
	DepthFailOp hal.StencilOperation
	PassOp      hal.StencilOperation
}

// BlendAttachmentState is one color attachment's blend configuration,
// typed with gputypes' BlendOperation/BlendFactor the way the teacher's
// BlendComponent is.
type BlendAttachmentState struct {
	Enable    bool
	ColorOp   gputypes.BlendOperation
	ColorSrc  gputypes.BlendFactor
	ColorDst  gputypes.BlendFactor
	AlphaOp   gputypes.BlendOperation
	AlphaSrc  gputypes.BlendFactor
	AlphaDst  gputypes.BlendFactor
	WriteMask uint8
}

// AttributeDescriptor is one vertex-input attribute slot; Type mirrors
// the teacher's VertexAttribute.Format (gputypes.VertexFormat).
type AttributeDescriptor struct {
	Enabled bool
	Buffer  uint8
	Offset  uint32
	Type    gputypes.VertexFormat
	Size    uint8
}

// FixedPipelineState is the packed byte layout of every piece of
// fixed-function state that participates in a graphics pipeline cache
// key. Go has no portable "unique object representation, hash by
// memcmp" facility the way C++ does (an unsafe cast over a struct with
// padding is not a defined-behavior substitute), so the key is built by
// an explicit field-by-field encode into a byte buffer instead — the
// one place this package hand-rolls serialization rather than reaching
// for a library, justified in DESIGN.md.
//
// Fields the host can set as Vulkan dynamic state are grouped at the
// tail of the encoding (vertex input, then rasterizer/depth/stencil), so
// Size() can drop them by truncating a byte count rather than by
// skipping over interior fields.
type FixedPipelineState struct {
	Topology     gputypes.PrimitiveTopology
	MSAAMode     uint8
	ColorFormats [8]gputypes.TextureFormat
	DepthFormat  gputypes.TextureFormat

	ViewportSwizzles [8]uint32

	PatchControlPoints uint8
	LogicOp            uint8
	PrimitiveRestart   bool

	AlphaTestRef  float32
	AlphaTestFunc gputypes.CompareFunction

	EarlyZ              bool
	YNegate             bool
	ProvokingVertexLast bool
	ConservativeRaster  bool
	SmoothLines         bool

	XfbEnabled bool
	XfbStride  [4]uint32

	// -- extended-dynamic-state tail --
	// PolygonMode has no gputypes/hal equivalent evidenced anywhere in
	// the stack (WebGPU-shaped gputypes only ever fills triangles); it
	// stays a raw Vulkan VkPolygonMode ordinal.
	PolygonMode uint8
	CullMode    gputypes.CullMode
	FrontFace   gputypes.FrontFace

	DepthClampEnable  bool
	DepthBiasEnable   bool
	DepthTestEnable   bool
	DepthBoundsEnable bool
	DepthWriteEnable  bool
	DepthCompare      gputypes.CompareFunction

	StencilEnable bool
	StencilFront  StencilFaceState
	StencilBack   StencilFaceState

	Blends [8]BlendAttachmentState

	// -- dynamic-vertex-input tail (beyond the extended-dynamic-state tail) --
	Attributes      [32]AttributeDescriptor
	BindingDivisors [32]uint32
	BindingStrides  [32]uint32

	DynamicState DynamicStateMode
}

// encodeParts renders the struct as three concatenated byte spans:
// the always-hashed head, the extended-dynamic-state tail, and the
// dynamic-vertex-input tail. Size()/Hash()/Equal() use len(head),
// len(head)+len(extended), or all three depending on DynamicState.
func (s *FixedPipelineState) encodeParts() (head, extended, vertexInput []byte) {
	var hb, eb, vb []byte

	putU8 := func(buf *[]byte, v uint8) { *buf = append(*buf, v) }
	putBool := func(buf *[]byte, v bool) {
		if v {
			*buf = append(*buf, 1)
		} else {
			*buf = append(*buf, 0)
		}
	}
	putU32 := func(buf *[]byte, v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		*buf = append(*buf, b[:]...)
	}
	putF32 := func(buf *[]byte, v float32) { putU32(buf, math.Float32bits(v)) }
	putFace := func(buf *[]byte, f StencilFaceState) {
		putU32(buf, uint32(f.Compare))
		putU32(buf, uint32(f.FailOp))
		putU32(buf, uint32(f.DepthFailOp))
		putU32(buf, uint32(f.PassOp))
	}

	putU32(&hb, uint32(s.Topology))
	putU8(&hb, s.MSAAMode)
	for _, f := range s.ColorFormats {
		putU32(&hb, uint32(f))
	}
	putU32(&hb, uint32(s.DepthFormat))
	for _, v := range s.ViewportSwizzles {
		putU32(&hb, v)
	}
	putU8(&hb, s.PatchControlPoints)
	putU8(&hb, s.LogicOp)
	putBool(&hb, s.PrimitiveRestart)
	putF32(&hb, s.AlphaTestRef)
	putU32(&hb, uint32(s.AlphaTestFunc))
	putBool(&hb, s.EarlyZ)
	putBool(&hb, s.YNegate)
	putBool(&hb, s.ProvokingVertexLast)
	putBool(&hb, s.ConservativeRaster)
	putBool(&hb, s.SmoothLines)
	putBool(&hb, s.XfbEnabled)
	for _, v := range s.XfbStride {
		putU32(&hb, v)
	}

	putU8(&eb, s.PolygonMode)
	putU32(&eb, uint32(s.CullMode))
	putU32(&eb, uint32(s.FrontFace))
	putBool(&eb, s.DepthClampEnable)
	putBool(&eb, s.DepthBiasEnable)
	putBool(&eb, s.DepthTestEnable)
	putBool(&eb, s.DepthBoundsEnable)
	putBool(&eb, s.DepthWriteEnable)
	putU32(&eb, uint32(s.DepthCompare))
	putBool(&eb, s.StencilEnable)
	putFace(&eb, s.StencilFront)
	putFace(&eb, s.StencilBack)
	for _, bl := range s.Blends {
		putBool(&eb, bl.Enable)
		putU32(&eb, uint32(bl.ColorOp))
		putU32(&eb, uint32(bl.ColorSrc))
		putU32(&eb, uint32(bl.ColorDst))
		putU32(&eb, uint32(bl.AlphaOp))
		putU32(&eb, uint32(bl.AlphaSrc))
		putU32(&eb, uint32(bl.AlphaDst))
		putU8(&eb, bl.WriteMask)
	}

	for _, a := range s.Attributes {
		putBool(&vb, a.Enabled)
		putU8(&vb, a.Buffer)
		putU32(&vb, a.Offset)
		putU32(&vb, uint32(a.Type))
		putU8(&vb, a.Size)
	}
	for _, d := range s.BindingDivisors {
		putU32(&vb, d)
	}
	for _, st := range s.BindingStrides {
		putU32(&vb, st)
	}

	return hb, eb, vb
}

// encode returns the full byte encoding in the order Size() truncates
// from the tail of: head, then the dynamic-vertex-input block, then the
// extended-dynamic-state block. Dynamic vertex input is a strict
// superset extension of extended dynamic state in Vulkan, so ordering
// it first lets "drop extended dynamic state" and "drop both" each be a
// single tail truncation.
func (s *FixedPipelineState) encode() []byte {
	head, extended, vertexInput := s.encodeParts()
	buf := make([]byte, 0, len(head)+len(extended)+len(vertexInput))
	buf = append(buf, head...)
	buf = append(buf, vertexInput...)
	buf = append(buf, extended...)
	return buf
}

// Size reports how many leading bytes of the packed encoding
// participate in hashing and equality, truncating the tail a host's
// extended dynamic state / dynamic vertex input capability removes from
// the pipeline object (and therefore from what can legitimately
// distinguish two cache entries).
func (s *FixedPipelineState) Size() int {
	head, extended, vertexInput := s.encodeParts()
	switch s.DynamicState {
	case DynamicStateExtendedPlusVertexInput:
		return len(head)
	case DynamicStateExtended:
		return len(head) + len(vertexInput)
	default:
		return len(head) + len(vertexInput) + len(extended)
	}
}

// Hash mixes exactly Size() bytes of the packed encoding with FNV-1a,
// the same non-cryptographic mixer the teacher's descriptor hashing
// uses.
func (s *FixedPipelineState) Hash() uint64 {
	buf := s.encode()
	h := fnv.New64a()
	_, _ = h.Write(buf[:s.Size()])
	return h.Sum64()
}

// Equal compares two states over the shorter of their two Size()
// prefixes, mirroring the guest's memcmp-over-truncated-prefix rule.
func (s *FixedPipelineState) Equal(other *FixedPipelineState) bool {
	if s.DynamicState != other.DynamicState {
		return false
	}
	a, b := s.encode(), other.encode()
	n := s.Size()
	if n > len(a) || n > len(b) {
		return false
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// GraphicsKey identifies a graphics pipeline by its five possible
// guest-shader stage hashes (vertex-A+B merged into one slot, tess
// control, tess eval, geometry, fragment) plus the fixed-function state
// key, per spec.md §3.
type GraphicsKey struct {
	UniqueHashes [5]uint64
	State        FixedPipelineState
}

// ComputeKey identifies a compute pipeline by its single guest-shader
// hash plus the dispatch-time shared-memory size and workgroup size,
// both of which can legally vary between dispatches of the same guest
// program.
type ComputeKey struct {
	UniqueHash       uint64
	SharedMemorySize uint32
	WorkgroupSize    [3]uint32
}

// HashGuestCode computes a GraphicsKey/ComputeKey stage's unique_hash:
// an FNV-1a digest over every byte of code. Draw and compileStage pass
// the environment's whole Code() slice; the bytes are not cut at the
// control-flow reconstructor's Program.End.
func HashGuestCode(code []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(code)
	return h.Sum64()
}
