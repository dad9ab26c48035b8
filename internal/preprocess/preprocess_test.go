package preprocess

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/nfnt/resize"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	return buf.Bytes()
}

func TestFromBytes_ShapeAndRange(t *testing.T) {
	p := New()
	sizes := [][2]int{{640, 480}, {1, 1}, {224, 224}, {37, 1000}, {3000, 17}}

	for _, s := range sizes {
		tensor, err := p.FromBytes(encodeJPEG(t, gradient(s[0], s[1])))
		if err != nil {
			t.Fatalf("%dx%d: FromBytes failed: %v", s[0], s[1], err)
		}

		want := []int64{1, 224, 224, 3}
		if len(tensor.Shape) != 4 {
			t.Fatalf("%dx%d: expected 4 dims, got %v", s[0], s[1], tensor.Shape)
		}
		for i := range want {
			if tensor.Shape[i] != want[i] {
				t.Errorf("%dx%d: shape = %v, expected %v", s[0], s[1], tensor.Shape, want)
				break
			}
		}
		if len(tensor.Data) != 224*224*3 {
			t.Errorf("%dx%d: expected %d values, got %d", s[0], s[1], 224*224*3, len(tensor.Data))
		}
		for i, v := range tensor.Data {
			if v < 0 || v > 1 {
				t.Fatalf("%dx%d: value %d = %f outside [0,1]", s[0], s[1], i, v)
			}
		}
	}
}

func TestFromBytes_ChannelOrder(t *testing.T) {
	data := encodePNG(t, solid(50, 30, color.NRGBA{R: 255, G: 0, B: 51, A: 255}))

	bgr, err := New().FromBytes(data)
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}
	if got := bgr.At(10, 10, 0); got != float32(51)/255.0 {
		t.Errorf("BGR channel 0 = %f, expected blue %f", got, float32(51)/255.0)
	}
	if got := bgr.At(10, 10, 2); got != 1.0 {
		t.Errorf("BGR channel 2 = %f, expected red 1.0", got)
	}

	p := &Preprocessor{Interpolation: resize.Bilinear, Order: RGB}
	rgb, err := p.FromBytes(data)
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}
	if got := rgb.At(10, 10, 0); got != 1.0 {
		t.Errorf("RGB channel 0 = %f, expected red 1.0", got)
	}
	if got := rgb.At(10, 10, 1); got != 0 {
		t.Errorf("RGB channel 1 = %f, expected 0", got)
	}
}

func TestFromBytes_TransparentKeepsColor(t *testing.T) {
	data := encodePNG(t, solid(300, 300, color.NRGBA{R: 200, G: 100, B: 50, A: 0}))

	tensor, err := New().FromBytes(data)
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}

	want := []float32{50.0 / 255.0, 100.0 / 255.0, 200.0 / 255.0}
	for _, pt := range [][2]int{{0, 0}, {112, 112}, {223, 223}} {
		for c, w := range want {
			if got := tensor.At(pt[0], pt[1], c); math.Abs(float64(got-w)) > 1.0/255.0 {
				t.Errorf("(%d,%d) channel %d = %f, expected %f", pt[0], pt[1], c, got, w)
			}
		}
	}
}

func TestOpaque(t *testing.T) {
	src := solid(4, 3, color.NRGBA{R: 10, G: 20, B: 30, A: 7})

	out := Opaque(src)
	if out.Bounds().Dx() != 4 || out.Bounds().Dy() != 3 {
		t.Fatalf("Unexpected bounds %v", out.Bounds())
	}
	if px := out.NRGBAAt(2, 1); px != (color.NRGBA{R: 10, G: 20, B: 30, A: 255}) {
		t.Errorf("Expected opaque stored color, got %+v", px)
	}
	if src.NRGBAAt(2, 1).A != 7 {
		t.Error("Opaque must not modify its input")
	}
}

func TestFromBytes_Deterministic(t *testing.T) {
	data := encodeJPEG(t, gradient(640, 480))
	p := New()

	first, err := p.FromBytes(data)
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}
	second, err := p.FromBytes(data)
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}

	for i := range first.Data {
		if first.Data[i] != second.Data[i] {
			t.Fatalf("value %d differs between runs: %f vs %f", i, first.Data[i], second.Data[i])
		}
	}
}

func TestDecode_Empty(t *testing.T) {
	_, err := New().FromBytes(nil)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("Expected ErrDecode for empty input, got %v", err)
	}
}

func TestDecode_NotAnImage(t *testing.T) {
	_, err := New().FromBytes([]byte("definitely not a picture"))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("Expected ErrDecode for text input, got %v", err)
	}
}

func TestDecode_TruncatedJPEG(t *testing.T) {
	data := encodeJPEG(t, gradient(64, 64))
	_, err := New().FromBytes(data[:len(data)/3])
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("Expected ErrDecode for truncated jpeg, got %v", err)
	}
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "almond.png")
	if err := os.WriteFile(path, encodePNG(t, gradient(300, 200)), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tensor, err := New().FromFile(path)
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	if len(tensor.Data) != Width*Height*Channels {
		t.Errorf("unexpected tensor size %d", len(tensor.Data))
	}

	empty := filepath.Join(t.TempDir(), "empty.jpg")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New().FromFile(empty); !errors.Is(err, ErrDecode) {
		t.Errorf("Expected ErrDecode for zero-byte file, got %v", err)
	}

	if _, err := New().FromFile(filepath.Join(t.TempDir(), "missing.jpg")); err == nil || errors.Is(err, ErrDecode) {
		t.Errorf("Expected a plain open error for a missing file, got %v", err)
	}
}

func TestNormalize_WrongSize(t *testing.T) {
	if _, err := New().Normalize(solid(10, 10, color.NRGBA{A: 255})); err == nil {
		t.Fatal("Expected error normalizing a non-224 image")
	}
}

func TestBatch_WrongLength(t *testing.T) {
	if _, err := Batch(make([]float32, 10)); err == nil {
		t.Fatal("Expected error batching a short buffer")
	}
}

func TestParseOptions(t *testing.T) {
	if o, err := ParseChannelOrder("RGB"); err != nil || o != RGB {
		t.Errorf("ParseChannelOrder(RGB) = %v, %v", o, err)
	}
	if o, err := ParseChannelOrder(""); err != nil || o != BGR {
		t.Errorf("ParseChannelOrder(\"\") = %v, %v", o, err)
	}
	if _, err := ParseChannelOrder("yuv"); err == nil {
		t.Error("Expected error for unknown channel order")
	}

	for _, name := range []string{"nearest", "bilinear", "bicubic", "lanczos3"} {
		if _, err := ParseInterpolation(name); err != nil {
			t.Errorf("ParseInterpolation(%s) failed: %v", name, err)
		}
	}
	if _, err := ParseInterpolation("box"); err == nil {
		t.Error("Expected error for unknown interpolation")
	}
}
