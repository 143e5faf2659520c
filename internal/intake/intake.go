// Package intake turns user-supplied image files into the base64 payload and
// media type the editor sends to the model.
package intake

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"pixelmagic/internal/domain"
)

// Image is an accepted upload in transport-ready form.
type Image struct {
	Data     string
	MimeType string
}

// Bytes decodes the payload back to raw image bytes.
func (img Image) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(img.Data)
}

// DataURL renders the image as a data URL suitable for an <img> src.
func (img Image) DataURL() string {
	return "data:" + img.MimeType + ";base64," + img.Data
}

// IsImageType reports whether a declared media type names an image.
func IsImageType(declared string) bool {
	mediaType := strings.TrimSpace(declared)
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = parsed
	}
	return strings.HasPrefix(strings.ToLower(mediaType), "image/")
}

// DeclaredType prefers an explicit header value and falls back to the
// filename extension.
func DeclaredType(filename, header string) string {
	if header = strings.TrimSpace(header); header != "" && header != "application/octet-stream" {
		return header
	}
	if ext := filepath.Ext(filename); ext != "" {
		return mime.TypeByExtension(strings.ToLower(ext))
	}
	return header
}

// FromReader validates the declared type, reads the file, and encodes it.
// Nothing is read when the declared type is not an image.
func FromReader(declaredType string, r io.Reader) (Image, error) {
	if !IsImageType(declaredType) {
		return Image{}, domain.ErrNotImage
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return Image{}, fmt.Errorf("intake: read upload: %w", err)
	}
	if len(raw) == 0 {
		return Image{}, domain.ErrEmptyImage
	}
	mediaType, _, err := mime.ParseMediaType(declaredType)
	if err != nil {
		mediaType = strings.TrimSpace(declaredType)
	}
	img := Image{Data: base64.StdEncoding.EncodeToString(raw), MimeType: strings.ToLower(mediaType)}
	return ParseDataURL(img.DataURL())
}

// ParseDataURL splits a data URL into payload and media type. The media type
// defaults to image/png when the envelope omits it; a bare payload without
// any envelope is accepted the same way.
func ParseDataURL(s string) (Image, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Image{}, domain.ErrEmptyImage
	}
	prefix, data, found := strings.Cut(s, ",")
	if !found {
		return decodeCheck(Image{Data: s, MimeType: domain.DefaultMimeType})
	}
	mimeType := mediaTypeFromPrefix(prefix)
	if mimeType == "" {
		mimeType = domain.DefaultMimeType
	} else if !IsImageType(mimeType) {
		return Image{}, domain.ErrNotImage
	}
	if data == "" {
		return Image{}, domain.ErrEmptyImage
	}
	return decodeCheck(Image{Data: data, MimeType: mimeType})
}

// mediaTypeFromPrefix extracts "image/png" from "data:image/png;base64".
func mediaTypeFromPrefix(prefix string) string {
	_, rest, ok := strings.Cut(prefix, ":")
	if !ok {
		return ""
	}
	mediaType, _, _ := strings.Cut(rest, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func decodeCheck(img Image) (Image, error) {
	if _, err := img.Bytes(); err != nil {
		return Image{}, fmt.Errorf("intake: invalid base64 payload: %w", err)
	}
	return img, nil
}
