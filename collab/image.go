package collab

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/realsocial/real/model"
)

// ErrInvalidCrop reports a crop outside the image or with no area.
var ErrInvalidCrop = errors.New("collab: invalid crop")

// Number of dominant colors extracted per image.
const dominantColors = 5

// ProcessedImage is an upload after cropping, with its derived renditions.
type ProcessedImage struct {
	Width  int
	Height int
	Colors []model.Color
	Native []byte
	// Thumbnails holds one JPEG per requested height.
	Thumbnails map[int][]byte
}

// ImageProcessor turns an uploaded image into stored renditions.
type ImageProcessor interface {
	Process(data []byte, format model.ImageFormat, crop *model.Crop, heights []int) (*ProcessedImage, error)
}

// ImagingProcessor is an ImageProcessor for JPEG and PNG uploads.
type ImagingProcessor struct {
	Quality int
}

func NewImagingProcessor() *ImagingProcessor {
	return &ImagingProcessor{Quality: 90}
}

func (p *ImagingProcessor) Process(data []byte, format model.ImageFormat, crop *model.Crop, heights []int) (*ProcessedImage, error) {
	if format == model.ImageHEIC {
		return nil, fmt.Errorf("%w: HEIC", ErrUnsupportedFormat)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if crop != nil {
		rect := image.Rect(crop.UpperLeft.X, crop.UpperLeft.Y, crop.LowerRight.X, crop.LowerRight.Y)
		if rect.Empty() || !rect.In(img.Bounds()) {
			return nil, fmt.Errorf("%w: %v outside %v", ErrInvalidCrop, rect, img.Bounds())
		}
		img = imaging.Crop(img, rect)
	}

	native, err := p.encode(img)
	if err != nil {
		return nil, err
	}
	out := &ProcessedImage{
		Width:      img.Bounds().Dx(),
		Height:     img.Bounds().Dy(),
		Colors:     DominantColors(img, dominantColors),
		Native:     native,
		Thumbnails: make(map[int][]byte, len(heights)),
	}
	for _, h := range heights {
		thumb := img
		if img.Bounds().Dy() > h {
			thumb = imaging.Resize(img, 0, h, imaging.Lanczos)
		}
		if out.Thumbnails[h], err = p.encode(thumb); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *ImagingProcessor) encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.Quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// DominantColors returns up to n colors covering most of img, most common
// first. Colors are quantized to 16 levels per channel.
func DominantColors(img image.Image, n int) []model.Color {
	small := imaging.Resize(img, 32, 32, imaging.Box)
	counts := make(map[model.Color]int)
	b := small.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := small.NRGBAAt(x, y)
			counts[model.Color{R: c.R &^ 0x0f, G: c.G &^ 0x0f, B: c.B &^ 0x0f}]++
		}
	}
	colors := make([]model.Color, 0, len(counts))
	for c := range counts {
		colors = append(colors, c)
	}
	sort.Slice(colors, func(i, j int) bool {
		if counts[colors[i]] != counts[colors[j]] {
			return counts[colors[i]] > counts[colors[j]]
		}
		return rgb(colors[i]) < rgb(colors[j])
	})
	if len(colors) > n {
		colors = colors[:n]
	}
	return colors
}

func rgb(c model.Color) int {
	return int(c.R)<<16 | int(c.G)<<8 | int(c.B)
}
