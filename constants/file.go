package constants

import "strings"

const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

// FileTypes holds the document formats the pipeline understands.
var FileTypes = []string{PDF, IMAGE}

// AllowedExtensions holds the default allowed file extensions for policy document ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
	"heic": {},
	"heif": {},
}

var extToMIME = map[string]string{
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"heic": "image/heic",
	"heif": "image/heif",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MIMEFromExt returns the MIME type for a known extension, or "".
func MIMEFromExt(ext string) string {
	return extToMIME[NormalizeExt(ext)]
}

// NormalizeMIME lowercases a MIME type and drops parameters ("; charset=...").
func NormalizeMIME(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}

// MapMIMEToFormat returns PDF, IMAGE or "" when the type is not accepted.
func MapMIMEToFormat(mime string) string {
	mime = NormalizeMIME(mime)
	switch {
	case mime == "application/pdf":
		return PDF
	case strings.HasPrefix(mime, "image/") && len(mime) > len("image/"):
		return IMAGE
	default:
		return ""
	}
}

// IsHEICMIME reports whether the MIME type needs conversion before OCR.
func IsHEICMIME(mime string) bool {
	switch NormalizeMIME(mime) {
	case "image/heic", "image/heif", "image/heic-sequence", "image/heif-sequence":
		return true
	}
	return false
}
