package transform

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gen2brain/avif"
)

// Result is the output of Render. Width and Height are zero on the
// passthrough path; the caller already has them from the metadata row.
type Result struct {
	Data     []byte
	Width    int
	Height   int
	Format   string
	MIMEType string
}

// Render applies the resolved parameters to the stored bytes.
//
// Resize policy: thumb bounds the image inside a square without
// upscaling; both dimensions crop to exact size (cover, centered); a
// single dimension resizes proportionally without upscaling; quality or
// format alone re-encodes without resizing. A request with none of
// these returns the stored bytes untouched without invoking any codec.
func Render(data []byte, sourceMIME string, req Request, p Params) (*Result, error) {
	if req.IsPassthrough() {
		return &Result{
			Data:     data,
			Format:   FormatForMIME(sourceMIME),
			MIMEType: sourceMIME,
		}, nil
	}

	img, err := imaging.Decode(
		bytes.NewReader(data), imaging.AutoOrientation(p.AutoOrient))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	filter := filterFor(p.ResizeMethod)

	quality := req.Quality

	switch {
	case req.Thumb:
		img = imaging.Fit(img, p.ThumbSize, p.ThumbSize, filter)

		if quality == 0 {
			quality = p.ThumbQuality
		}
	case req.Width > 0 && req.Height > 0:
		img = imaging.Fill(img, req.Width, req.Height, imaging.Center, filter)
	case req.Width > 0:
		img = imaging.Resize(img, min(req.Width, img.Bounds().Dx()), 0, filter)
	case req.Height > 0:
		img = imaging.Resize(img, 0, min(req.Height, img.Bounds().Dy()), filter)
	}

	format := req.Format
	if format == "" {
		if req.Thumb {
			// Thumbnails always encode as JPEG unless the request
			// names a format, whatever the source container.
			format = FormatJPEG
		} else {
			format = p.OutputFormat
		}
	}

	if format == FormatOriginal || format == "" {
		format = FormatForMIME(sourceMIME)
		if format == "" {
			format = FormatJPEG
		}
	}

	out, err := encode(img, format, p.qualityFor(format, quality), p)
	if err != nil {
		return nil, err
	}

	return &Result{
		Data:     out,
		Width:    img.Bounds().Dx(),
		Height:   img.Bounds().Dy(),
		Format:   format,
		MIMEType: MIMEForFormat(format),
	}, nil
}

func encode(img image.Image, format string, quality int, p Params) ([]byte, error) {
	buf := new(bytes.Buffer)

	var err error

	switch format {
	case FormatJPEG:
		err = jpeg.Encode(buf, img, &jpeg.Options{Quality: quality})
	case FormatPNG:
		enc := &png.Encoder{CompressionLevel: pngLevel(p.PNGCompressionLevel)}
		err = enc.Encode(buf, img)
	case FormatWebP:
		err = webp.Encode(buf, img, &webp.Options{Quality: float32(quality)})
	case FormatAVIF:
		err = avif.Encode(buf, img, avif.Options{
			Quality:           quality,
			Speed:             speedForEffort(p.Effort),
			ChromaSubsampling: chromaRatio(p.ChromaSubsampling),
		})
	case FormatGIF:
		err = gif.Encode(buf, img, nil)
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}

	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", format, err)
	}

	return buf.Bytes(), nil
}

// speedForEffort inverts the effort knob (0 fastest, 10 slowest) into
// the AVIF encoder's speed scale (10 fastest, 0 slowest).
func speedForEffort(effort int) int {
	speed := 10 - effort
	if speed < 0 {
		speed = 0
	}

	if speed > 10 {
		speed = 10
	}

	return speed
}

func chromaRatio(chroma string) image.YCbCrSubsampleRatio {
	switch chroma {
	case "444":
		return image.YCbCrSubsampleRatio444
	case "422":
		return image.YCbCrSubsampleRatio422
	default:
		return image.YCbCrSubsampleRatio420
	}
}

func pngLevel(level int) png.CompressionLevel {
	switch {
	case level <= 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

// lanczos2 is a two-lobe Lanczos kernel, cheaper and slightly softer
// than the default three-lobe variant.
var lanczos2 = imaging.ResampleFilter{
	Support: 2.0,
	Kernel: func(x float64) float64 {
		x = math.Abs(x)
		if x >= 2.0 {
			return 0
		}

		return sinc(x) * sinc(x/2.0)
	},
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}

	return math.Sin(math.Pi*x) / (math.Pi * x)
}

func filterFor(method string) imaging.ResampleFilter {
	switch method {
	case "nearest":
		return imaging.NearestNeighbor
	case "box":
		return imaging.Box
	case "linear", "bilinear":
		return imaging.Linear
	case "mitchell":
		return imaging.MitchellNetravali
	case "catmullrom", "bicubic":
		return imaging.CatmullRom
	case "lanczos2":
		return lanczos2
	default:
		return imaging.Lanczos
	}
}
