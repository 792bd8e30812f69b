// Package payload prepares media bytes for transport to remote models and
// decodes what comes back.
package payload

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"clearmark/internal/domain"
)

// Encode reads the source to completion and returns its bytes as standard
// base64. A failing reader maps to domain.ErrReadSource with the underlying
// cause attached.
func Encode(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("payload: %w: %w", domain.ErrReadSource, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// StripDataURI removes a leading data URI header ("data:<mime>;base64,") when
// present. Any other input passes through unchanged, so callers can apply it
// unconditionally before a remote submission.
func StripDataURI(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	idx := strings.Index(s, ";base64,")
	if idx < 0 {
		return s
	}
	return s[idx+len(";base64,"):]
}

// Decode reverses Encode, tolerating a data URI header.
func Decode(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(StripDataURI(s))
	if err != nil {
		return nil, fmt.Errorf("payload: decode base64: %w", err)
	}
	return data, nil
}

// DataURI renders bytes as a browser-ready data URI.
func DataURI(mime string, data []byte) string {
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// SniffMIME identifies the media type from magic bytes. It refines the stdlib
// detector for container formats the uploads endpoint cares about and falls
// back to application/octet-stream when nothing matches.
func SniffMIME(data []byte) string {
	if len(data) == 0 {
		return "application/octet-stream"
	}
	if len(data) >= 12 {
		switch {
		case string(data[4:12]) == "ftypqt  ":
			return "video/quicktime"
		case string(data[4:8]) == "ftyp":
			return "video/mp4"
		case string(data[0:4]) == "RIFF" && string(data[8:12]) == "AVI ":
			return "video/x-msvideo"
		case data[0] == 0x1a && data[1] == 0x45 && data[2] == 0xdf && data[3] == 0xa3:
			// EBML header shared by Matroska and WebM.
			return "video/webm"
		}
	}
	return http.DetectContentType(data)
}

// KindForMIME maps a MIME type onto the media kinds the pipeline accepts.
func KindForMIME(mime string) (domain.MediaKind, bool) {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return domain.MediaImage, true
	case strings.HasPrefix(mime, "video/"):
		return domain.MediaVideo, true
	default:
		return "", false
	}
}

// Extension returns the storage file extension for a MIME type.
func Extension(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	case "video/x-msvideo":
		return ".avi"
	default:
		return ".bin"
	}
}
