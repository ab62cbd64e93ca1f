package emit

// BugSet flags host/driver quirks Emit must route around, mirroring the
// single-field "known bugs" bitset the teacher's native backend threads
// through its shader helpers.
type BugSet struct {
	// DirectRenderingAmdBrokenSubgroupAdd reports a subgroup add reduction
	// that silently drops lanes outside the first 32 in a workgroup.
	DirectRenderingAmdBrokenSubgroupAdd bool
	// DualSourceBlendingBroken reports a driver that ignores the second
	// color attachment in a dual-source blend pipeline.
	DualSourceBlendingBroken bool
}

// Profile is the host capability/quirk declaration Emit uses to pick a
// SPIR-V dialect and avoid driver bugs. It is a plain data struct with no
// behavior of its own, following the "declarative options struct" pattern
// the teacher uses for its own render-pipeline descriptors.
type Profile struct {
	SpirvMajorVersion int
	SpirvMinorVersion int

	SupportFloat16 bool
	SupportFloat64 bool
	SupportInt8    bool
	SupportInt16   bool
	SupportInt64   bool

	SupportFloatControls          bool
	SupportDerivativeControl      bool
	SupportGeometryShaderPassthrough bool

	ViewportIndexInNonGeometry bool
	StorageImageTypelessLoads  bool
	DemoteToHelperInvocation   bool

	KnownBugs BugSet
}

// DefaultProfile returns the conservative baseline the cache falls back to
// when a host query has not yet populated a real Profile: Vulkan 1.1's
// mandatory SPIR-V 1.3, no optional extensions, no known bugs.
func DefaultProfile() *Profile {
	return &Profile{
		SpirvMajorVersion: 1,
		SpirvMinorVersion: 3,
	}
}
