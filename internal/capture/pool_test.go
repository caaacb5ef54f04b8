package capture

import (
	"reflect"
	"testing"

	"github.com/smazurov/uvccap/pkg/linuxav/v4l2"
)

func TestBufferPoolRelease(t *testing.T) {
	f := newFakeDriver()
	f.bufferLen = 4096

	p, err := allocateBuffers(f, 3, testLogger())
	if err != nil {
		t.Fatalf("allocateBuffers failed: %v", err)
	}
	if p.Len() != 3 || p.live() != 3 {
		t.Fatalf("expected 3 mapped buffers, got len=%d live=%d", p.Len(), p.live())
	}
	for i := range uint32(3) {
		b := p.Buffer(i)
		if b.Index != i || b.Offset != i*4096 || b.Length != 4096 {
			t.Errorf("unexpected buffer %d: %+v", i, b)
		}
		if !b.Mapped() || b.Owner() != OwnerApplication {
			t.Errorf("buffer %d: mapped=%v owner=%s", i, b.Mapped(), b.Owner())
		}
	}
	if p.Buffer(3) != nil {
		t.Error("expected nil for out-of-range index")
	}

	p.release()
	p.release()

	if f.unmaps != 3 || f.doubles != 0 {
		t.Errorf("expected 3 unmaps and no doubles, got %d and %d", f.unmaps, f.doubles)
	}
	if p.live() != 0 {
		t.Errorf("expected no live buffers, got %d", p.live())
	}
	if !reflect.DeepEqual(f.reqbufsCalls, []uint32{3, 0}) {
		t.Errorf("unexpected buffer requests %v", f.reqbufsCalls)
	}

	var nilPool *bufferPool
	nilPool.release()
}

func TestPixelFormatForIndex(t *testing.T) {
	for i, want := range SupportedFormats {
		if got := PixelFormatForIndex(i, v4l2.PixFmtMJPEG); got != want {
			t.Errorf("index %d: expected %s, got %s", i, want, got)
		}
	}
	if got := PixelFormatForIndex(len(SupportedFormats), v4l2.PixFmtMJPEG); got != v4l2.PixFmtMJPEG {
		t.Errorf("expected fallback, got %s", got)
	}
	if SupportedFormats[DefaultFormatIndex] != v4l2.PixFmtYUYV {
		t.Errorf("expected YUYV default, got %s", SupportedFormats[DefaultFormatIndex])
	}
}

func TestEstimateSize(t *testing.T) {
	tests := []struct {
		format v4l2.FourCC
		want   uint32
	}{
		{v4l2.PixFmtRGB32, 640 * 480 * 4},
		{v4l2.PixFmtRGB565, 640 * 480 * 2},
		{v4l2.PixFmtYUYV, 640 * 480 * 2},
		{v4l2.PixFmtYUV420, 640 * 480 * 3 / 2},
		{v4l2.PixFmtYUV410, 640 * 480 * 9 / 8},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			got, err := estimateSize(v4l2.PixFormat{Width: 640, Height: 480, PixelFormat: tt.format})
			if err != nil || got.SizeImage != tt.want {
				t.Errorf("expected %d, got %d (%v)", tt.want, got.SizeImage, err)
			}
		})
	}

	kept, err := estimateSize(v4l2.PixFormat{Width: 640, Height: 480, SizeImage: 1})
	if err != nil || kept.SizeImage != 1 {
		t.Errorf("expected reported size to be kept, got %d (%v)", kept.SizeImage, err)
	}

	_, err = estimateSize(v4l2.PixFormat{Width: 65536, Height: 65536, PixelFormat: v4l2.PixFmtRGB32})
	if !IsCode(err, InvalidFormatArguments) {
		t.Errorf("expected InvalidFormatArguments for a 16 GiB frame, got %v", err)
	}
}
