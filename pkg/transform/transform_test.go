package transform_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapforge/snapforge/pkg/store"
	"github.com/snapforge/snapforge/pkg/transform"
)

func makeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}

	buf := new(bytes.Buffer)
	require.NoError(t, jpeg.Encode(buf, img, &jpeg.Options{Quality: 90}))

	return buf.Bytes()
}

func TestParseSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		width   int
		height  int
		wantErr bool
	}{
		{in: "800x600", width: 800, height: 600},
		{in: "800x", width: 800},
		{in: "x600", height: 600},
		{in: "800", wantErr: true},
		{in: "x", wantErr: true},
		{in: "0x600", wantErr: true},
		{in: "-1x600", wantErr: true},
		{in: "axb", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			w, h, err := transform.ParseSize(tt.in)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.width, w)
			assert.Equal(t, tt.height, h)
		})
	}
}

func TestParseRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		query   string
		want    transform.Request
		wantErr bool
	}{
		{
			name:  "size shorthand",
			query: "size=400x300",
			want:  transform.Request{Width: 400, Height: 300},
		},
		{
			name:  "explicit w and h win over size",
			query: "size=400x300&w=200&h=100",
			want:  transform.Request{Width: 200, Height: 100},
		},
		{
			name:  "quality and format",
			query: "q=72&f=webp",
			want:  transform.Request{Quality: 72, Format: "webp"},
		},
		{
			name:  "format long form",
			query: "format=avif",
			want:  transform.Request{Format: "avif"},
		},
		{
			name:  "flags",
			query: "thumb&auto",
			want:  transform.Request{Thumb: true, Auto: true},
		},
		{name: "quality too high", query: "q=101", wantErr: true},
		{name: "quality zero", query: "q=0", wantErr: true},
		{name: "unknown format", query: "f=bmp", wantErr: true},
		{name: "bad size", query: "size=banana", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			req, err := transform.ParseRequest(values)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, req)
		})
	}
}

func TestResolve_Layering(t *testing.T) {
	t.Parallel()

	size := 300
	format := "webp"
	gallery := &store.Gallery{ThumbSize: &size, OutputFormat: &format}

	quality := 42
	request := transform.Overrides{JPEGQuality: &quality}

	p := transform.Resolve(
		transform.Defaults(), transform.FromGallery(gallery), request)

	assert.Equal(t, 300, p.ThumbSize, "gallery overrides default")
	assert.Equal(t, "webp", p.OutputFormat)
	assert.Equal(t, 42, p.JPEGQuality, "later layer overrides earlier")
	assert.Equal(t, 60, p.ThumbQuality, "unset fields keep defaults")
	assert.True(t, p.AutoOrient)
}

func TestNegotiate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		accept string
		want   string
	}{
		{"image/avif,image/webp,image/*", "avif"},
		{"image/webp,image/*", "webp"},
		{"image/webp,image/avif", "avif"},
		{"image/png,image/*", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, transform.Negotiate(tt.accept), tt.accept)
	}
}

func TestRender_PassthroughIsByteIdentical(t *testing.T) {
	t.Parallel()

	data := makeJPEG(t, 64, 48)

	result, err := transform.Render(
		data, "image/jpeg", transform.Request{}, transform.Defaults())
	require.NoError(t, err)
	assert.Equal(t, data, result.Data, "fast path must not re-encode")
	assert.Equal(t, "image/jpeg", result.MIMEType)
}

func TestRender_ThumbBoundsWithoutUpscale(t *testing.T) {
	t.Parallel()

	p := transform.Defaults()

	// Landscape source larger than the thumb box.
	result, err := transform.Render(
		makeJPEG(t, 400, 200), "image/jpeg",
		transform.Request{Thumb: true}, p)
	require.NoError(t, err)
	assert.Equal(t, 150, result.Width)
	assert.Equal(t, 75, result.Height)

	// Source already smaller than the box stays untouched in size.
	result, err = transform.Render(
		makeJPEG(t, 100, 50), "image/jpeg",
		transform.Request{Thumb: true}, p)
	require.NoError(t, err)
	assert.Equal(t, 100, result.Width)
	assert.Equal(t, 50, result.Height)
}

func TestRender_ThumbEncodesJPEG(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 300, 300))
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))

	// Thumbnails leave the source container behind.
	result, err := transform.Render(
		buf.Bytes(), "image/png",
		transform.Request{Thumb: true}, transform.Defaults())
	require.NoError(t, err)
	assert.Equal(t, "jpeg", result.Format)
	assert.Equal(t, "image/jpeg", result.MIMEType)
	assert.Equal(t, 150, result.Width)

	// An explicit format still wins.
	result, err = transform.Render(
		buf.Bytes(), "image/png",
		transform.Request{Thumb: true, Format: "png"}, transform.Defaults())
	require.NoError(t, err)
	assert.Equal(t, "png", result.Format)
}

func TestRender_CoverCrop(t *testing.T) {
	t.Parallel()

	result, err := transform.Render(
		makeJPEG(t, 400, 200), "image/jpeg",
		transform.Request{Width: 120, Height: 120}, transform.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 120, result.Width)
	assert.Equal(t, 120, result.Height)
}

func TestRender_SingleDimensionNoUpscale(t *testing.T) {
	t.Parallel()

	p := transform.Defaults()

	result, err := transform.Render(
		makeJPEG(t, 400, 200), "image/jpeg",
		transform.Request{Width: 100}, p)
	require.NoError(t, err)
	assert.Equal(t, 100, result.Width)
	assert.Equal(t, 50, result.Height)

	// A requested width beyond the source is clamped.
	result, err = transform.Render(
		makeJPEG(t, 400, 200), "image/jpeg",
		transform.Request{Width: 4000}, p)
	require.NoError(t, err)
	assert.Equal(t, 400, result.Width)
	assert.Equal(t, 200, result.Height)
}

func TestRender_FormatConversion(t *testing.T) {
	t.Parallel()

	result, err := transform.Render(
		makeJPEG(t, 32, 32), "image/jpeg",
		transform.Request{Format: "png"}, transform.Defaults())
	require.NoError(t, err)
	assert.Equal(t, "png", result.Format)
	assert.Equal(t, "image/png", result.MIMEType)

	decoded, format, err := image.Decode(bytes.NewReader(result.Data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 32, decoded.Bounds().Dx())
}

func TestRender_QualityOnlyReencodes(t *testing.T) {
	t.Parallel()

	data := makeJPEG(t, 64, 64)

	result, err := transform.Render(
		data, "image/jpeg", transform.Request{Quality: 10}, transform.Defaults())
	require.NoError(t, err)
	assert.NotEqual(t, data, result.Data, "quality override forces re-encode")
	assert.Equal(t, 64, result.Width)
	assert.Equal(t, 64, result.Height)
	assert.Equal(t, "jpeg", result.Format)
}

func TestRender_OriginalKeepsContainer(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))

	result, err := transform.Render(
		buf.Bytes(), "image/png",
		transform.Request{Width: 10, Format: "original"}, transform.Defaults())
	require.NoError(t, err)
	assert.Equal(t, "png", result.Format)
	assert.Equal(t, 10, result.Width)
}
