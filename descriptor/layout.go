// Package descriptor assembles the fixed-order descriptor-set layout a
// pipeline's stages need, and writes per-draw descriptor-update payloads
// against that layout.
package descriptor

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/kentjhall/shadercore/ir"
)

// Kind identifies which Vulkan descriptor type a TemplateEntry binds.
type Kind int

const (
	KindUniformBuffer Kind = iota
	KindStorageBuffer
	KindUniformTexelBuffer
	KindStorageTexelBuffer
	KindCombinedImageSampler
	KindStorageImage
)

// TemplateEntry is one binding slot in a Layout's descriptor-update
// template: which binding number it occupies, how many array elements
// it covers, and where its payload bytes land in an UpdateSet buffer.
type TemplateEntry struct {
	Kind          Kind
	Binding       uint32
	Count         uint32
	PayloadOffset uint32
}

// Layout is a pipeline's assembled descriptor-set shape: every binding
// every stage touches, numbered in the fixed order spec.md §4.H
// requires so two pipelines with the same resource usage always produce
// byte-identical descriptor layouts (needed for push-descriptor reuse
// and for disk-cache portability across runs).
type Layout struct {
	UpdateTemplateEntries []TemplateEntry
	UsesPushDescriptor    bool
	totalDescriptors      uint32
}

// BuildLayout numbers every stage's bindings in the fixed order:
// uniform buffers, storage buffers, uniform texel buffers, storage
// texel buffers, combined image-samplers, storage images. Buffer-backed
// samplers form the uniform texel buffer group. No storage texel buffer
// group is ever emitted: ir.Image carries no buffer flag, so every image
// binds as a storage image. Binding numbers are monotonic across the
// whole pipeline, not reset per stage, so a fragment stage's samplers
// never collide with a vertex stage's uniform buffers.
func BuildLayout(infos []*ir.ShaderInfo, limits gpucontext.Limits) (*Layout, error) {
	if len(infos) == 0 {
		return nil, fmt.Errorf("descriptor: BuildLayout requires at least one stage")
	}

	layout := &Layout{}
	var binding uint32
	var payloadOffset uint32

	appendGroup := func(kind Kind, count uint32, stride uint32) {
		if count == 0 {
			return
		}
		layout.UpdateTemplateEntries = append(layout.UpdateTemplateEntries, TemplateEntry{
			Kind:          kind,
			Binding:       binding,
			Count:         count,
			PayloadOffset: payloadOffset,
		})
		binding += count
		payloadOffset += count * stride
		layout.totalDescriptors += count
	}

	for _, info := range infos {
		if info == nil {
			continue
		}
		appendGroup(KindUniformBuffer, uint32(len(info.CbufUsedSize)), 16)
		appendGroup(KindStorageBuffer, uint32(len(info.GlobalMemoryDescriptors)), 16)

		var texelBuffers, combinedSamplers, storageImages uint32
		for _, s := range info.Samplers {
			if s.IsBuffer {
				texelBuffers++
				continue
			}
			combinedSamplers++
		}
		for _, im := range info.Images {
			if im.IsWritten || im.IsAtomic {
				storageImages++
				continue
			}
			// Read-only images also bind as storage images.
			storageImages++
		}
		appendGroup(KindUniformTexelBuffer, texelBuffers, 16)
		appendGroup(KindCombinedImageSampler, combinedSamplers, 8)
		appendGroup(KindStorageImage, storageImages, 8)
	}

	layout.UsesPushDescriptor = limits.MaxPushDescriptors > 0 && layout.totalDescriptors <= limits.MaxPushDescriptors
	return layout, nil
}

// TotalDescriptors returns the pipeline-wide descriptor count BuildLayout
// computed.
func (l *Layout) TotalDescriptors() uint32 { return l.totalDescriptors }
