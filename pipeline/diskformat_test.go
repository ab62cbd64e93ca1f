package pipeline

import "testing"

func TestEncodeDecodeCacheRecordsRoundTrip(t *testing.T) {
	records := []CacheRecord{
		{
			Kind: CacheRecordGraphics,
			GraphicsKey: GraphicsKey{
				UniqueHashes: [5]uint64{1, 2, 3, 4, 5},
				State:        FixedPipelineState{Topology: 4, MSAAMode: 1, AlphaTestRef: 0.5},
			},
		},
		{
			Kind: CacheRecordCompute,
			ComputeKey: ComputeKey{
				UniqueHash:       0xdeadbeef,
				SharedMemorySize: 4096,
				WorkgroupSize:    [3]uint32{8, 8, 1},
			},
		},
	}

	data := EncodeCacheRecords(records)
	got, err := DecodeCacheRecords(data)
	if err != nil {
		t.Fatalf("DecodeCacheRecords: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}
	if got[0].GraphicsKey.UniqueHashes != records[0].GraphicsKey.UniqueHashes {
		t.Fatalf("graphics hashes mismatch: %v != %v", got[0].GraphicsKey.UniqueHashes, records[0].GraphicsKey.UniqueHashes)
	}
	if got[0].GraphicsKey.State.Topology != 4 || got[0].GraphicsKey.State.AlphaTestRef != 0.5 {
		t.Fatalf("fixed state mismatch: %+v", got[0].GraphicsKey.State)
	}
	if got[1].ComputeKey != records[1].ComputeKey {
		t.Fatalf("compute key mismatch: %+v != %+v", got[1].ComputeKey, records[1].ComputeKey)
	}
}

func TestDecodeCacheRecordsRejectsStaleVersion(t *testing.T) {
	_, err := DecodeCacheRecords([]byte{0xff, 0xff, 0xff, 0xff})
	if err != ErrStaleDiskVersion {
		t.Fatalf("got err %v, want ErrStaleDiskVersion", err)
	}
}

func TestDecodeCacheRecordsDropsTruncatedTrailer(t *testing.T) {
	records := []CacheRecord{{Kind: CacheRecordCompute, ComputeKey: ComputeKey{UniqueHash: 7}}}
	data := EncodeCacheRecords(records)
	data = append(data, 1, 2, 3)

	got, err := DecodeCacheRecords(data)
	if err != nil {
		t.Fatalf("DecodeCacheRecords: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
}
