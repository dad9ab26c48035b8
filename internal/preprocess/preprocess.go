// Package preprocess turns encoded images into the fixed-size tensor the ripeness
// classifier consumes: decode, resize to 224x224, scale channels to [0,1], batch of one.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"

	// jpeg, png, gif, bmp and tiff are registered by imaging
	_ "golang.org/x/image/webp"
)

// Input geometry expected by the classifier.
const (
	Width    = 224
	Height   = 224
	Channels = 3
)

// ErrDecode is returned when the bytes are not an image the codecs understand.
var ErrDecode = errors.New("image decode failed")

// ChannelOrder is the layout of the last tensor dimension.
type ChannelOrder int

const (
	// BGR matches OpenCV decoding, which the classifier was trained on.
	BGR ChannelOrder = iota
	RGB
)

func (o ChannelOrder) String() string {
	if o == RGB {
		return "rgb"
	}
	return "bgr"
}

// ParseChannelOrder maps "bgr" or "rgb" to a ChannelOrder.
func ParseChannelOrder(s string) (ChannelOrder, error) {
	switch strings.ToLower(s) {
	case "", "bgr":
		return BGR, nil
	case "rgb":
		return RGB, nil
	}
	return BGR, fmt.Errorf("unknown channel order %q", s)
}

// ParseInterpolation maps a config name to a resize kernel.
func ParseInterpolation(s string) (resize.InterpolationFunction, error) {
	switch strings.ToLower(s) {
	case "nearest":
		return resize.NearestNeighbor, nil
	case "", "bilinear":
		return resize.Bilinear, nil
	case "bicubic":
		return resize.Bicubic, nil
	case "lanczos3":
		return resize.Lanczos3, nil
	}
	return resize.Bilinear, fmt.Errorf("unknown interpolation %q", s)
}

// Tensor is a batched NHWC float32 image.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// At returns the value at row y, column x, channel c of the single batch entry.
func (t *Tensor) At(y, x, c int) float32 {
	return t.Data[(y*Width+x)*Channels+c]
}

// Preprocessor runs the decode → resize → normalize → batch chain.
type Preprocessor struct {
	Interpolation resize.InterpolationFunction
	Order         ChannelOrder
}

// New returns a preprocessor using the default bilinear kernel and BGR order.
func New() *Preprocessor {
	return &Preprocessor{Interpolation: resize.Bilinear, Order: BGR}
}

// Decode reads one image from r, applying any EXIF orientation.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: image has no pixels", ErrDecode)
	}
	return img, nil
}

// Opaque copies img with every alpha set to 255, keeping the stored color
// channels. Transparent pixels would otherwise resample to black.
func Opaque(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}

// Resize resamples img to exactly Width x Height, ignoring aspect ratio.
func (p *Preprocessor) Resize(img image.Image) image.Image {
	return resize.Resize(Width, Height, img, p.Interpolation)
}

// Normalize converts a Width x Height image to HWC floats in [0,1].
func (p *Preprocessor) Normalize(img image.Image) ([]float32, error) {
	b := img.Bounds()
	if b.Dx() != Width || b.Dy() != Height {
		return nil, fmt.Errorf("normalize expects %dx%d, got %dx%d", Width, Height, b.Dx(), b.Dy())
	}

	data := make([]float32, Height*Width*Channels)
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			px := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			r := float32(px.R) / 255.0
			g := float32(px.G) / 255.0
			bl := float32(px.B) / 255.0

			i := (y*Width + x) * Channels
			if p.Order == RGB {
				data[i], data[i+1], data[i+2] = r, g, bl
			} else {
				data[i], data[i+1], data[i+2] = bl, g, r
			}
		}
	}
	return data, nil
}

// Batch wraps HWC data in a leading batch dimension of one.
func Batch(hwc []float32) (*Tensor, error) {
	if len(hwc) != Height*Width*Channels {
		return nil, fmt.Errorf("batch expects %d values, got %d", Height*Width*Channels, len(hwc))
	}
	return &Tensor{
		Shape: []int64{1, Height, Width, Channels},
		Data:  hwc,
	}, nil
}

// FromImage drops alpha, then runs resize, normalize and batch on an already decoded image.
func (p *Preprocessor) FromImage(img image.Image) (*Tensor, error) {
	hwc, err := p.Normalize(p.Resize(Opaque(img)))
	if err != nil {
		return nil, err
	}
	return Batch(hwc)
}

// FromReader decodes r and returns the classifier tensor.
func (p *Preprocessor) FromReader(r io.Reader) (*Tensor, error) {
	img, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return p.FromImage(img)
}

// FromBytes decodes data and returns the classifier tensor.
func (p *Preprocessor) FromBytes(data []byte) (*Tensor, error) {
	return p.FromReader(bytes.NewReader(data))
}

// FromFile decodes the image stored at path and returns the classifier tensor.
func (p *Preprocessor) FromFile(path string) (*Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	return p.FromReader(f)
}
