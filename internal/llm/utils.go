package llm

import (
	"encoding/base64"

	"github.com/joseph-ayodele/policy-extractor/constants"
)

// visionMIMEs are the inline formats chat-completion vision endpoints accept.
var visionMIMEs = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// CanAttachInline reports whether a payload can go to a vision endpoint as-is.
func CanAttachInline(mimeType string) bool {
	return visionMIMEs[constants.NormalizeMIME(mimeType)]
}

// DataURL encodes a payload as a data: URL.
func DataURL(data []byte, mimeType string) string {
	mt := constants.NormalizeMIME(mimeType)
	if mt == "" {
		mt = "application/octet-stream"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(data)
}
