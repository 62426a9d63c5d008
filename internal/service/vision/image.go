package vision

import (
	"bytes"
	"encoding/base64"
	"log"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxImageEdge 上传给模型前图片最长边的像素上限。
const DefaultMaxImageEdge = 2048

var allowedMIMETypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// NormalizeMIMEType lowercases a MIME type, drops parameters and folds common aliases.
func NormalizeMIMEType(mimeType string) string {
	normalized := strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(normalized, ";"); idx >= 0 {
		normalized = strings.TrimSpace(normalized[:idx])
	}
	switch normalized {
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	case "image/x-png":
		return "image/png"
	}
	return normalized
}

// IsAllowedMIMEType reports whether the type is one of JPEG, PNG, GIF or WEBP.
func IsAllowedMIMEType(mimeType string) bool {
	_, ok := allowedMIMETypes[NormalizeMIMEType(mimeType)]
	return ok
}

// DetectMIMEType sniffs the image format from its leading bytes.
func DetectMIMEType(data []byte) string {
	return NormalizeMIMEType(mimetype.Detect(data).String())
}

// resolveMIMEType prefers the sniffed type and falls back to the declared one.
func resolveMIMEType(data []byte, declared string) (string, error) {
	if detected := DetectMIMEType(data); IsAllowedMIMEType(detected) {
		return detected, nil
	}

	normalized := NormalizeMIMEType(declared)
	if IsAllowedMIMEType(normalized) {
		return normalized, nil
	}

	if normalized == "" {
		return "", invalidInput("image type is required")
	}
	return "", invalidInput("unsupported image type %q", normalized)
}

func isPlaceholder(data []byte) bool {
	return len(bytes.TrimSpace(data)) == 0
}

// prepareImage returns a private copy of data, downscaled when a JPEG or PNG
// exceeds maxEdge. Decode failures leave the copy untouched.
func prepareImage(data []byte, mimeType string, maxEdge int) []byte {
	buf := make([]byte, len(data))
	copy(buf, data)

	var format imaging.Format
	switch mimeType {
	case "image/jpeg":
		format = imaging.JPEG
	case "image/png":
		format = imaging.PNG
	default:
		return buf
	}
	if maxEdge <= 0 {
		return buf
	}

	img, err := imaging.Decode(bytes.NewReader(buf), imaging.AutoOrientation(true))
	if err != nil {
		log.Printf("[vision] image decode failed, sending original bytes: %v", err)
		return buf
	}

	bounds := img.Bounds()
	if bounds.Dx() <= maxEdge && bounds.Dy() <= maxEdge {
		return buf
	}

	resized := imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)

	var out bytes.Buffer
	if err := imaging.Encode(&out, resized, format, imaging.JPEGQuality(85)); err != nil {
		log.Printf("[vision] image re-encode failed, sending original bytes: %v", err)
		return buf
	}

	log.Printf("[vision] downscaled image %dx%d -> %dx%d", bounds.Dx(), bounds.Dy(), resized.Bounds().Dx(), resized.Bounds().Dy())
	return out.Bytes()
}

func dataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
