package descriptor

import (
	"context"
	"encoding/binary"
	"fmt"
)

// TextureHandle is an opaque reference a TextureCache hands back for a
// bound combined-image-sampler or storage image; UpdateSet never
// interprets it, only threads it through to MarkModification.
type TextureHandle uint64

// BufferHandle is the equivalent opaque reference for a bound uniform,
// storage, or texel buffer.
type BufferHandle uint64

// TextureCache is the external texture-cache collaborator UpdateSet
// consults to resolve a bound image descriptor and to flag a write.
type TextureCache interface {
	// ResolveImageView returns the raw descriptor payload bytes
	// (image view handle + sampler handle, host-format) for binding.
	ResolveImageView(binding uint32, index uint32) (TextureHandle, []byte, error)
	// MarkModification records that a storage image at binding/index
	// was bound for writing, so the cache can invalidate any CPU-side
	// mirror of it.
	MarkModification(handle TextureHandle)
}

// BufferCache is the external buffer-cache collaborator resolving
// uniform/storage/texel buffer bindings the same way TextureCache
// resolves images.
type BufferCache interface {
	ResolveBuffer(binding uint32, index uint32) (BufferHandle, []byte, error)
}

// UpdateSet walks layout's template entries in declared order —
// uniform buffers, storage buffers, texel buffers, combined
// image-samplers, storage images — pulling each binding's payload from
// textures/buffers and concatenating them into the descriptor-update
// template payload a host pipeline-layout update consumes. It calls
// MarkModification for every storage image it binds: the layout does not
// record which storage images a shader writes, so read-only ones are
// marked as well.
func UpdateSet(ctx context.Context, layout *Layout, textures TextureCache, buffers BufferCache) ([]byte, error) {
	if layout == nil {
		return nil, fmt.Errorf("descriptor: UpdateSet requires a layout")
	}

	var out []byte
	for _, entry := range layout.UpdateTemplateEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := uint32(0); i < entry.Count; i++ {
			switch entry.Kind {
			case KindUniformBuffer, KindStorageBuffer, KindUniformTexelBuffer, KindStorageTexelBuffer:
				_, payload, err := buffers.ResolveBuffer(entry.Binding+i, i)
				if err != nil {
					return nil, fmt.Errorf("descriptor: resolve buffer binding %d: %w", entry.Binding+i, err)
				}
				out = append(out, payload...)
			case KindCombinedImageSampler:
				_, payload, err := textures.ResolveImageView(entry.Binding+i, i)
				if err != nil {
					return nil, fmt.Errorf("descriptor: resolve sampled image binding %d: %w", entry.Binding+i, err)
				}
				out = append(out, payload...)
			case KindStorageImage:
				handle, payload, err := textures.ResolveImageView(entry.Binding+i, i)
				if err != nil {
					return nil, fmt.Errorf("descriptor: resolve storage image binding %d: %w", entry.Binding+i, err)
				}
				textures.MarkModification(handle)
				out = append(out, payload...)
			}
		}
	}
	return out, nil
}

// encodeU32 is the shared little-endian field writer UpdateSet's
// collaborators use to build their payload slices, mirroring the
// explicit binary.Write field-by-field style pipeline.FixedPipelineState
// uses for the same reason: a descriptor payload is a fixed host-ABI
// byte layout, not a self-describing serialization format.
func encodeU32(v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return buf[:]
}
