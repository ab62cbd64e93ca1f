package pipeline

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// CacheVersion is the on-disk cache format's version tag. Loading a file
// stamped with a different version returns ErrStaleDiskVersion rather
// than attempting to parse bytes laid out by an older layout.
const CacheVersion uint32 = 1

// CacheRecordKind distinguishes a graphics pipeline record from a
// compute one in the flat record stream LoadDiskResources replays.
type CacheRecordKind uint8

const (
	CacheRecordGraphics CacheRecordKind = iota
	CacheRecordCompute
)

// CacheRecord is one pipeline's worth of disk-cache state: enough to
// reconstruct its key and re-enqueue a build without needing the
// original guest program resident (the guest code hash alone identifies
// it; the actual bytes come back from the title's own code cache at
// reload).
type CacheRecord struct {
	Kind        CacheRecordKind
	GraphicsKey GraphicsKey
	ComputeKey  ComputeKey
}

// EncodeCacheRecords serializes records into the flat file format a
// Cache's disk worker writes and LoadDiskResources reads back: a
// version header (encoding/binary directly against a byte slice is a
// deliberate standard-library choice — this file format is purely
// internal wire layout, not a domain concern any pack dependency
// covers) followed by one fixed-size record per entry.
func EncodeCacheRecords(records []CacheRecord) []byte {
	buf := make([]byte, 4, 4+len(records)*recordSize)
	binary.LittleEndian.PutUint32(buf, CacheVersion)
	for _, rec := range records {
		buf = append(buf, encodeRecord(rec)...)
	}
	return buf
}

// DecodeCacheRecords parses a byte stream produced by
// EncodeCacheRecords. A version mismatch returns ErrStaleDiskVersion; a
// truncated trailing record is silently dropped (a crash mid-write
// should cost at most one pipeline's worth of cache, not the whole
// file).
func DecodeCacheRecords(data []byte) ([]CacheRecord, error) {
	if len(data) < 4 {
		return nil, ErrStaleDiskVersion
	}
	version := binary.LittleEndian.Uint32(data)
	if version != CacheVersion {
		return nil, ErrStaleDiskVersion
	}
	data = data[4:]

	var records []CacheRecord
	for len(data) >= recordSize {
		rec, err := decodeRecord(data[:recordSize])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		data = data[recordSize:]
	}
	return records, nil
}

// recordSize is the fixed byte length of one encoded CacheRecord: a
// kind tag, the 5-hash graphics key and its FixedPipelineState (at its
// maximum, untruncated size), and the compute key.
var recordSize = 1 + 5*8 + maxFixedPipelineStateSize() + 8 + 4 + 3*4

func maxFixedPipelineStateSize() int {
	s := FixedPipelineState{DynamicState: DynamicStateNone}
	return s.Size()
}

func encodeRecord(rec CacheRecord) []byte {
	buf := make([]byte, 0, recordSize)
	buf = append(buf, byte(rec.Kind))
	for _, h := range rec.GraphicsKey.UniqueHashes {
		buf = appendU64(buf, h)
	}
	state := rec.GraphicsKey.State
	state.DynamicState = DynamicStateNone
	buf = append(buf, state.encode()...)
	buf = appendU64(buf, rec.ComputeKey.UniqueHash)
	buf = appendU32(buf, rec.ComputeKey.SharedMemorySize)
	for _, w := range rec.ComputeKey.WorkgroupSize {
		buf = appendU32(buf, w)
	}
	for len(buf) < recordSize {
		buf = append(buf, 0)
	}
	return buf
}

func decodeRecord(buf []byte) (CacheRecord, error) {
	if len(buf) != recordSize {
		return CacheRecord{}, fmt.Errorf("pipeline: malformed cache record (%d bytes)", len(buf))
	}
	var rec CacheRecord
	rec.Kind = CacheRecordKind(buf[0])
	off := 1
	for i := range rec.GraphicsKey.UniqueHashes {
		rec.GraphicsKey.UniqueHashes[i] = binary.LittleEndian.Uint64(buf[off:])
		off += 8
	}
	stateSize := maxFixedPipelineStateSize()
	rec.GraphicsKey.State = decodeFixedPipelineState(buf[off : off+stateSize])
	off += stateSize
	rec.ComputeKey.UniqueHash = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	rec.ComputeKey.SharedMemorySize = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	for i := range rec.ComputeKey.WorkgroupSize {
		rec.ComputeKey.WorkgroupSize[i] = binary.LittleEndian.Uint32(buf[off:])
		off += 4
	}
	return rec, nil
}

// decodeFixedPipelineState is encodeParts's inverse for a full
// (DynamicStateNone) encoding, used only by the disk-record decoder
// where every record is always written at full size regardless of the
// live pipeline's own DynamicState mode.
func decodeFixedPipelineState(buf []byte) FixedPipelineState {
	var s FixedPipelineState
	off := 0
	getU8 := func() uint8 { v := buf[off]; off++; return v }
	getBool := func() bool { return getU8() != 0 }
	getU32 := func() uint32 { v := binary.LittleEndian.Uint32(buf[off:]); off += 4; return v }
	getF32 := func() float32 { return math.Float32frombits(getU32()) }
	getFace := func() StencilFaceState {
		return StencilFaceState{
			Compare:     gputypes.CompareFunction(getU32()),
			FailOp:      hal.StencilOperation(getU32()),
			DepthFailOp: hal.StencilOperation(getU32()),
			PassOp:      hal.StencilOperation(getU32()),
		}
	}

	s.Topology = gputypes.PrimitiveTopology(getU32())
	s.MSAAMode = getU8()
	for i := range s.ColorFormats {
		s.ColorFormats[i] = gputypes.TextureFormat(getU32())
	}
	s.DepthFormat = gputypes.TextureFormat(getU32())
	for i := range s.ViewportSwizzles {
		s.ViewportSwizzles[i] = getU32()
	}
	s.PatchControlPoints = getU8()
	s.LogicOp = getU8()
	s.PrimitiveRestart = getBool()
	s.AlphaTestRef = getF32()
	s.AlphaTestFunc = gputypes.CompareFunction(getU32())
	s.EarlyZ = getBool()
	s.YNegate = getBool()
	s.ProvokingVertexLast = getBool()
	s.ConservativeRaster = getBool()
	s.SmoothLines = getBool()
	s.XfbEnabled = getBool()
	for i := range s.XfbStride {
		s.XfbStride[i] = getU32()
	}

	for i := range s.Attributes {
		s.Attributes[i] = AttributeDescriptor{
			Enabled: getBool(),
			Buffer:  getU8(),
			Offset:  getU32(),
			Type:    gputypes.VertexFormat(getU32()),
			Size:    getU8(),
		}
	}
	for i := range s.BindingDivisors {
		s.BindingDivisors[i] = getU32()
	}
	for i := range s.BindingStrides {
		s.BindingStrides[i] = getU32()
	}

	s.PolygonMode = getU8()
	s.CullMode = gputypes.CullMode(getU32())
	s.FrontFace = gputypes.FrontFace(getU32())
	s.DepthClampEnable = getBool()
	s.DepthBiasEnable = getBool()
	s.DepthTestEnable = getBool()
	s.DepthBoundsEnable = getBool()
	s.DepthWriteEnable = getBool()
	s.DepthCompare = gputypes.CompareFunction(getU32())
	s.StencilEnable = getBool()
	s.StencilFront = getFace()
	s.StencilBack = getFace()
	for i := range s.Blends {
		s.Blends[i] = BlendAttachmentState{
			Enable:    getBool(),
			ColorOp:   gputypes.BlendOperation(getU32()),
			ColorSrc:  gputypes.BlendFactor(getU32()),
			ColorDst:  gputypes.BlendFactor(getU32()),
			AlphaOp:   gputypes.BlendOperation(getU32()),
			AlphaSrc:  gputypes.BlendFactor(getU32()),
			AlphaDst:  gputypes.BlendFactor(getU32()),
			WriteMask: getU8(),
		}
	}

	s.DynamicState = DynamicStateNone
	return s
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}
