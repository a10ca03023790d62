package qr

import (
	"bytes"
	"image"
	"image/draw"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	data, err := Encode("T-7K2M9QX4A", 0)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, img.Bounds().Dx())

	payload, ok := DecodeImage(img)
	require.True(t, ok)
	assert.Equal(t, "T-7K2M9QX4A", payload)
}

func TestDecodeRGBA(t *testing.T) {
	data, err := Encode("T-ABCDEFGH1", 200)
	require.NoError(t, err)
	src, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	rgba := image.NewRGBA(src.Bounds())
	draw.Draw(rgba, rgba.Bounds(), src, image.Point{}, draw.Src)

	payload, ok, err := DecodeRGBA(rgba.Pix, rgba.Bounds().Dx(), rgba.Bounds().Dy())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "T-ABCDEFGH1", payload)
}

func TestDecodeRGBA_BlankFrame(t *testing.T) {
	buf := make([]byte, 64*64*4)
	_, ok, err := DecodeRGBA(buf, 64, 64)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeRGBA_BadSize(t *testing.T) {
	_, _, err := DecodeRGBA(make([]byte, 10), 64, 64)
	assert.ErrorIs(t, err, ErrFrameSize)
}

func TestDecodeRGBARejectsOversizedDimensions(t *testing.T) {
	for _, tc := range []struct {
		name          string
		width, height int
	}{
		{"wraps to zero", 1 << 31, 1 << 31},
		{"too wide", MaxFrameEdge + 1, 1},
		{"too tall", 1, MaxFrameEdge + 1},
		{"negative", -4, 4},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, found, err := DecodeRGBA(nil, tc.width, tc.height)
				assert.ErrorIs(t, err, ErrFrameSize)
				assert.False(t, found)
			})
		})
	}
}
