package descriptor

import (
	"context"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/kentjhall/shadercore/ir"
)

func TestBuildLayoutOrdersBindingsByKind(t *testing.T) {
	info := &ir.ShaderInfo{
		CbufUsedSize: map[int]uint32{0: 0x40},
		Samplers:     []*ir.Sampler{{Cbuf: 0, Offset: 0x20}},
		Images:       []*ir.Image{{Cbuf: 0, Offset: 0x30, IsWritten: true}},
	}

	layout, err := BuildLayout([]*ir.ShaderInfo{info}, gpucontext.Limits{MaxPushDescriptors: 32})
	if err != nil {
		t.Fatalf("BuildLayout: %v", err)
	}
	if len(layout.UpdateTemplateEntries) != 3 {
		t.Fatalf("got %d entries, want 3 (uniform buffer, sampler, storage image)", len(layout.UpdateTemplateEntries))
	}
	if layout.UpdateTemplateEntries[0].Kind != KindUniformBuffer {
		t.Fatalf("expected uniform buffers first, got %v", layout.UpdateTemplateEntries[0].Kind)
	}
	if layout.UpdateTemplateEntries[1].Kind != KindCombinedImageSampler {
		t.Fatalf("expected combined-image-sampler second, got %v", layout.UpdateTemplateEntries[1].Kind)
	}
	if !layout.UsesPushDescriptor {
		t.Fatal("expected push descriptors to fit under the limit")
	}
}

func TestBuildLayoutRejectsNoStages(t *testing.T) {
	if _, err := BuildLayout(nil, gpucontext.Limits{}); err == nil {
		t.Fatal("expected an error for zero stages")
	}
}

type fakeTextures struct{ marked []TextureHandle }

func (f *fakeTextures) ResolveImageView(binding, index uint32) (TextureHandle, []byte, error) {
	return TextureHandle(binding), encodeU32(binding), nil
}
func (f *fakeTextures) MarkModification(h TextureHandle) { f.marked = append(f.marked, h) }

type fakeBuffers struct{}

func (fakeBuffers) ResolveBuffer(binding, index uint32) (BufferHandle, []byte, error) {
	return BufferHandle(binding), encodeU32(binding), nil
}

func TestUpdateSetMarksStorageImageWrites(t *testing.T) {
	layout := &Layout{UpdateTemplateEntries: []TemplateEntry{
		{Kind: KindUniformBuffer, Binding: 0, Count: 1},
		{Kind: KindStorageImage, Binding: 1, Count: 1},
	}}
	tex := &fakeTextures{}
	payload, err := UpdateSet(context.Background(), layout, tex, fakeBuffers{})
	if err != nil {
		t.Fatalf("UpdateSet: %v", err)
	}
	if len(payload) != 8 {
		t.Fatalf("got %d payload bytes, want 8", len(payload))
	}
	if len(tex.marked) != 1 || tex.marked[0] != 1 {
		t.Fatalf("expected storage image binding 1 marked modified, got %v", tex.marked)
	}
}
