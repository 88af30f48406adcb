// internal/halftone/halftone.go
package halftone

import (
	"fmt"
	"image"
	"image/draw"
	"io"
	"math"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
)

// RasterImage is a decoded image in straight (non-premultiplied) RGBA,
// 4 bytes per pixel, row-major.
type RasterImage struct {
	Width  int
	Height int
	Pix    []byte
}

// MonochromeBitmap is a 1-bit-per-pixel bitmap packed 8 pixels per byte,
// most significant bit first. A 1 bit prints dark. Row padding bits are 0.
type MonochromeBitmap struct {
	Width  int
	Height int
	Stride int
	Rows   []byte
}

// Row returns the packed bytes of scan line y.
func (b MonochromeBitmap) Row(y int) []byte {
	return b.Rows[y*b.Stride : (y+1)*b.Stride]
}

// DecodeRaster reads a PNG, JPEG or BMP stream into a RasterImage.
func DecodeRaster(r io.Reader) (RasterImage, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return RasterImage{}, fmt.Errorf("failed to decode image: %w", err)
	}
	return FromImage(src), nil
}

// FromImage converts any image to the raster layout.
func FromImage(src image.Image) RasterImage {
	bounds := src.Bounds()
	nrgba := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), src, bounds.Min, draw.Src)
	return RasterImage{Width: nrgba.Rect.Dx(), Height: nrgba.Rect.Dy(), Pix: nrgba.Pix}
}

// Rotate90 returns the image rotated a quarter turn clockwise, for targets
// that cannot rotate natively.
func (r RasterImage) Rotate90() RasterImage {
	out := RasterImage{Width: r.Height, Height: r.Width, Pix: make([]byte, len(r.Pix))}
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			src := (y*r.Width + x) * 4
			dst := (x*out.Width + (r.Height - 1 - y)) * 4
			copy(out.Pix[dst:dst+4], r.Pix[src:src+4])
		}
	}
	return out
}

// Scale resamples to the given size with nearest-neighbor sampling, keeping
// the pipeline deterministic.
func (r RasterImage) Scale(width, height int) RasterImage {
	if width == r.Width && height == r.Height {
		return r
	}
	out := RasterImage{Width: width, Height: height, Pix: make([]byte, width*height*4)}
	if width <= 0 || height <= 0 || r.Width == 0 || r.Height == 0 {
		return out
	}
	for y := 0; y < height; y++ {
		sy := y * r.Height / height
		for x := 0; x < width; x++ {
			sx := x * r.Width / width
			src := (sy*r.Width + sx) * 4
			dst := (y*width + x) * 4
			copy(out.Pix[dst:dst+4], r.Pix[src:src+4])
		}
	}
	return out
}

// gammaLUT maps each input level through pow(v, 1/gamma), precomputed so the
// per-pixel path stays integer-only.
func gammaLUT(gamma float64) [256]int {
	if gamma < 0.1 {
		gamma = 0.1
	} else if gamma > 10.0 {
		gamma = 10.0
	}
	var lut [256]int
	inv := 1.0 / gamma
	for i := range lut {
		lut[i] = int(math.Round(255 * math.Pow(float64(i)/255, inv)))
	}
	return lut
}

// luminance composites the pixel over white and weighs RGB with the
// standard 299/587/114 coefficients. Integer arithmetic throughout.
func luminance(r, g, b, a int) int {
	r = (r*a + 255*(255-a)) / 255
	g = (g*a + 255*(255-a)) / 255
	b = (b*a + 255*(255-a)) / 255
	return (299*r + 587*g + 114*b) / 1000
}

// Encode converts a raster to a monochrome bitmap. A pixel whose corrected
// level falls below threshold prints dark. With errorDiffusion the
// quantization residual propagates half to the right neighbor and the rest
// to the pixel directly below, keeping the diffusion row-local. Same inputs
// always produce the same bytes.
func Encode(img RasterImage, threshold uint8, gamma float64, errorDiffusion bool) MonochromeBitmap {
	w, h := img.Width, img.Height
	stride := (w + 7) / 8
	out := MonochromeBitmap{Width: w, Height: h, Stride: stride, Rows: make([]byte, stride*h)}
	if w == 0 || h == 0 {
		return out
	}

	lut := gammaLUT(gamma)
	cur := make([]int, w)
	next := make([]int, w)

	for y := 0; y < h; y++ {
		row := out.Row(y)
		for x := 0; x < w; x++ {
			p := (y*w + x) * 4
			v := lut[luminance(int(img.Pix[p]), int(img.Pix[p+1]), int(img.Pix[p+2]), int(img.Pix[p+3]))]

			if errorDiffusion {
				v += cur[x]
			}

			dark := v < int(threshold)
			if dark {
				row[x>>3] |= 0x80 >> (x & 7)
			}

			if errorDiffusion {
				target := 255
				if dark {
					target = 0
				}
				residual := v - target
				right := residual / 2
				if x+1 < w {
					cur[x+1] += right
				}
				next[x] += residual - right
			}
		}
		if errorDiffusion {
			cur, next = next, cur
			for i := range next {
				next[i] = 0
			}
		}
	}
	return out
}
