package transform

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Request carries the per-fetch transform parameters from the query
// string. Zero values mean "not requested".
type Request struct {
	Width   int
	Height  int
	Quality int
	Format  string
	Thumb   bool
	Auto    bool
}

// IsPassthrough reports whether the request asks for no transform at
// all, enabling the codec-free fast path.
func (r Request) IsPassthrough() bool {
	return !r.Thumb && r.Width == 0 && r.Height == 0 &&
		r.Quality == 0 && r.Format == ""
}

// ParseSize parses the WxH shorthand. One side may be omitted:
// "800x600", "800x", "x600".
func ParseSize(s string) (width, height int, err error) {
	before, after, found := strings.Cut(s, "x")
	if !found {
		return 0, 0, fmt.Errorf("invalid size %q: expected WxH", s)
	}

	if before == "" && after == "" {
		return 0, 0, fmt.Errorf("invalid size %q: both dimensions empty", s)
	}

	if before != "" {
		width, err = strconv.Atoi(before)
		if err != nil || width < 1 {
			return 0, 0, fmt.Errorf("invalid width in size %q", s)
		}
	}

	if after != "" {
		height, err = strconv.Atoi(after)
		if err != nil || height < 1 {
			return 0, 0, fmt.Errorf("invalid height in size %q", s)
		}
	}

	return width, height, nil
}

// ParseRequest extracts transform parameters from delivery query
// values. Recognized: size, w, h, q, f/format, thumb, auto.
func ParseRequest(q url.Values) (Request, error) {
	var req Request

	if s := q.Get("size"); s != "" {
		w, h, err := ParseSize(s)
		if err != nil {
			return Request{}, err
		}

		req.Width, req.Height = w, h
	}

	if s := q.Get("w"); s != "" {
		w, err := strconv.Atoi(s)
		if err != nil || w < 1 {
			return Request{}, fmt.Errorf("invalid width %q", s)
		}

		req.Width = w
	}

	if s := q.Get("h"); s != "" {
		h, err := strconv.Atoi(s)
		if err != nil || h < 1 {
			return Request{}, fmt.Errorf("invalid height %q", s)
		}

		req.Height = h
	}

	if s := q.Get("q"); s != "" {
		quality, err := strconv.Atoi(s)
		if err != nil || quality < 1 || quality > 100 {
			return Request{}, fmt.Errorf("invalid quality %q: must be 1-100", s)
		}

		req.Quality = quality
	}

	format := q.Get("f")
	if format == "" {
		format = q.Get("format")
	}

	if format != "" {
		switch format {
		case FormatOriginal, FormatJPEG, FormatPNG, FormatWebP, FormatAVIF:
			req.Format = format
		default:
			return Request{}, fmt.Errorf("invalid format %q", format)
		}
	}

	req.Thumb = q.Has("thumb")
	req.Auto = q.Has("auto")

	return req, nil
}

// Negotiate picks an output format from an Accept header for the auto
// flag. AVIF wins over WebP; anything else returns "" so the caller
// falls back to the resolved default.
func Negotiate(accept string) string {
	if strings.Contains(accept, "image/avif") {
		return FormatAVIF
	}

	if strings.Contains(accept, "image/webp") {
		return FormatWebP
	}

	return ""
}

// MIMEForFormat maps a format name to its content type.
func MIMEForFormat(format string) string {
	switch format {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	case FormatAVIF:
		return "image/avif"
	case FormatGIF:
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

// FormatForMIME maps a content type to its format name, or "".
func FormatForMIME(mime string) string {
	switch mime {
	case "image/jpeg", "image/jpg":
		return FormatJPEG
	case "image/png":
		return FormatPNG
	case "image/webp":
		return FormatWebP
	case "image/avif":
		return FormatAVIF
	case "image/gif":
		return FormatGIF
	default:
		return ""
	}
}
