// Package qr is the boundary to the QR symbol codec.  Encoding and
// decoding are delegated to go-qrcode and gozxing; this package only
// adapts their APIs to payload strings and camera frames.
package qr

import (
	"errors"
	"image"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	goqr "github.com/skip2/go-qrcode"
)

// DefaultSize is the edge length in pixels of generated PNGs.
const DefaultSize = 256

// MaxFrameEdge bounds the declared width and height of raw frames.
const MaxFrameEdge = 8192

// ErrFrameSize is returned when a raw frame buffer does not match its
// declared dimensions.
var ErrFrameSize = errors.New("frame buffer does not match width*height*4")

// Encode renders payload as a PNG QR symbol of size x size pixels.
func Encode(payload string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	return goqr.Encode(payload, goqr.Medium, size)
}

// DecodeImage returns the payload of the first QR symbol found in img.
func DecodeImage(img image.Image) (string, bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false
	}
	res, err := zxqr.NewQRCodeReader().Decode(bmp, nil)
	if err != nil || res == nil {
		return "", false
	}
	return res.GetText(), true
}

// DecodeRGBA decodes a raw RGBA frame as captured from a video element
// (4 bytes per pixel, row major).  Each edge must be within
// 1..MaxFrameEdge.
func DecodeRGBA(buf []byte, width, height int) (string, bool, error) {
	if width <= 0 || height <= 0 || width > MaxFrameEdge || height > MaxFrameEdge {
		return "", false, ErrFrameSize
	}
	if len(buf) != width*height*4 {
		return "", false, ErrFrameSize
	}
	img := &image.RGBA{Pix: buf, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}
	payload, ok := DecodeImage(img)
	return payload, ok, nil
}
