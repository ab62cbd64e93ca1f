package emit

// HostTranslateInfo narrows RuntimeInfo down to the handful of capability
// bits Emit must branch on when deciding whether an IR node can be
// emitted directly or needs a host-side workaround sequence.
type HostTranslateInfo struct {
	SupportFloat16     bool
	SupportInt64       bool
	NeedsDemoteReorder bool
}

// AlphaTestFunc selects the comparison a fragment-stage emission performs
// against RuntimeInfo.AlphaTestRef before discarding.
type AlphaTestFunc int

const (
	AlphaTestNever AlphaTestFunc = iota
	AlphaTestLess
	AlphaTestEqual
	AlphaTestLessEqual
	AlphaTestGreater
	AlphaTestNotEqual
	AlphaTestGreaterEqual
	AlphaTestAlways
)

// AttributeType records the host-visible type an input/output varying
// must be widened or narrowed to when the two adjacent shader stages
// declared it differently (a common source of link-time mismatches in
// the guest's separable-shader model).
type AttributeType int

const (
	AttributeFloat AttributeType = iota
	AttributeSint
	AttributeUint
)

// TessState mirrors the small slice of fixed-function tessellation state
// a stage's emission needs: the original pipeline carries far more, but
// only these fields affect how TCS/TES stages are lowered.
type TessState struct {
	Primitive   int
	Spacing     int
	ClockwiseCW bool
}

// RuntimeInfo is the per-draw-call context Emit folds into a pipeline's
// IR before producing SPIR-V: the previous stage's varying layout, the
// input topology, and the handful of fixed-function knobs spec.md's
// target API cannot express as shader constants.
type RuntimeInfo struct {
	Translate HostTranslateInfo

	PreviousStageStoresMask uint32
	InputTopology           int
	HasPointSize            bool

	XfbVaryings    []uint32
	Tess           TessState
	AlphaTestFunc  AlphaTestFunc
	AlphaTestRef   float32

	AttributeTypes [32]AttributeType
	ForceEarlyZ    bool
	YNegate        bool
	ConvertDepthMode bool
}
