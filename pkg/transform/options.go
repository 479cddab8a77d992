// Package transform implements the image processing pipeline: option
// resolution across default, gallery, and request layers, resize policy,
// format negotiation, and encoding.
package transform

import (
	"github.com/snapforge/snapforge/pkg/store"
)

// Output format names. FormatOriginal keeps the source container.
const (
	FormatOriginal = "original"
	FormatJPEG     = "jpeg"
	FormatPNG      = "png"
	FormatWebP     = "webp"
	FormatAVIF     = "avif"
	FormatGIF      = "gif"
)

// Params is a fully resolved option set. Every field is concrete.
type Params struct {
	ThumbSize           int
	ThumbQuality        int
	ImageQuality        int
	OutputFormat        string
	ResizeMethod        string
	JPEGQuality         int
	WebPQuality         int
	AVIFQuality         int
	PNGCompressionLevel int
	Effort              int
	ChromaSubsampling   string
	StripMetadata       bool
	AutoOrient          bool
}

// Overrides is one nullable layer of option resolution. Nil fields fall
// through to the layer below.
type Overrides struct {
	ThumbSize           *int
	ThumbQuality        *int
	ImageQuality        *int
	OutputFormat        *string
	ResizeMethod        *string
	JPEGQuality         *int
	WebPQuality         *int
	AVIFQuality         *int
	PNGCompressionLevel *int
	Effort              *int
	ChromaSubsampling   *string
	StripMetadata       *bool
	AutoOrient          *bool
}

// Defaults returns the system-level parameter set.
func Defaults() Params {
	return Params{
		ThumbSize:           150,
		ThumbQuality:        60,
		ImageQuality:        85,
		OutputFormat:        FormatOriginal,
		ResizeMethod:        "lanczos",
		JPEGQuality:         80,
		WebPQuality:         80,
		AVIFQuality:         50,
		PNGCompressionLevel: 6,
		Effort:              4,
		ChromaSubsampling:   "420",
		StripMetadata:       false,
		AutoOrient:          true,
	}
}

// FromGallery lifts a gallery's nullable processing settings into an
// override layer.
func FromGallery(g *store.Gallery) Overrides {
	if g == nil {
		return Overrides{}
	}

	return Overrides{
		ThumbSize:           g.ThumbSize,
		ThumbQuality:        g.ThumbQuality,
		ImageQuality:        g.ImageQuality,
		OutputFormat:        g.OutputFormat,
		ResizeMethod:        g.ResizeMethod,
		JPEGQuality:         g.JPEGQuality,
		WebPQuality:         g.WebPQuality,
		AVIFQuality:         g.AVIFQuality,
		PNGCompressionLevel: g.PNGCompressionLevel,
		Effort:              g.Effort,
		ChromaSubsampling:   g.ChromaSubsampling,
		StripMetadata:       g.StripMetadata,
		AutoOrient:          g.AutoOrient,
	}
}

// Resolve applies override layers to a base parameter set, left to
// right. Later layers win, but only for fields they actually set.
func Resolve(base Params, layers ...Overrides) Params {
	p := base

	for _, layer := range layers {
		if layer.ThumbSize != nil {
			p.ThumbSize = *layer.ThumbSize
		}

		if layer.ThumbQuality != nil {
			p.ThumbQuality = *layer.ThumbQuality
		}

		if layer.ImageQuality != nil {
			p.ImageQuality = *layer.ImageQuality
		}

		if layer.OutputFormat != nil {
			p.OutputFormat = *layer.OutputFormat
		}

		if layer.ResizeMethod != nil {
			p.ResizeMethod = *layer.ResizeMethod
		}

		if layer.JPEGQuality != nil {
			p.JPEGQuality = *layer.JPEGQuality
		}

		if layer.WebPQuality != nil {
			p.WebPQuality = *layer.WebPQuality
		}

		if layer.AVIFQuality != nil {
			p.AVIFQuality = *layer.AVIFQuality
		}

		if layer.PNGCompressionLevel != nil {
			p.PNGCompressionLevel = *layer.PNGCompressionLevel
		}

		if layer.Effort != nil {
			p.Effort = *layer.Effort
		}

		if layer.ChromaSubsampling != nil {
			p.ChromaSubsampling = *layer.ChromaSubsampling
		}

		if layer.StripMetadata != nil {
			p.StripMetadata = *layer.StripMetadata
		}

		if layer.AutoOrient != nil {
			p.AutoOrient = *layer.AutoOrient
		}
	}

	return p
}

// qualityFor returns the encode quality for a format, honoring an
// explicit request quality for the finally selected format only.
func (p Params) qualityFor(format string, requested int) int {
	if requested > 0 {
		return requested
	}

	switch format {
	case FormatJPEG:
		return p.JPEGQuality
	case FormatWebP:
		return p.WebPQuality
	case FormatAVIF:
		return p.AVIFQuality
	default:
		return p.ImageQuality
	}
}
