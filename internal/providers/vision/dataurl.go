package vision

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"reelcraft/internal/domain"
)

const defaultMimeType = "image/jpeg"

// SplitDataURL returns the base64 body of an image payload and its MIME type.
// A data URL supplies the type directly; a bare base64 body is sniffed, and
// anything that does not look like an image is reported as image/jpeg.
func SplitDataURL(payload string) (string, string, error) {
	payload = strings.TrimSpace(payload)
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		header, data, found := strings.Cut(rest, ",")
		if !found {
			return "", "", fmt.Errorf("%w: malformed data url", domain.ErrInvalidInput)
		}
		if !strings.HasSuffix(header, ";base64") {
			return "", "", fmt.Errorf("%w: data url must be base64 encoded", domain.ErrInvalidInput)
		}
		mimeType := strings.TrimSuffix(header, ";base64")
		if i := strings.IndexByte(mimeType, ';'); i >= 0 {
			mimeType = mimeType[:i]
		}
		if data == "" {
			return "", "", fmt.Errorf("%w: empty image data", domain.ErrInvalidInput)
		}
		if mimeType == "" {
			mimeType = sniffMimeType(data)
		}
		return data, strings.ToLower(mimeType), nil
	}
	if payload == "" {
		return "", "", fmt.Errorf("%w: empty image data", domain.ErrInvalidInput)
	}
	return payload, sniffMimeType(payload), nil
}

func sniffMimeType(data string) string {
	// 512 bytes is all DetectContentType reads; 684 base64 chars cover it.
	n := len(data)
	if n > 684 {
		n = 684
	}
	n -= n % 4
	head, err := base64.StdEncoding.DecodeString(data[:n])
	if err != nil || len(head) == 0 {
		return defaultMimeType
	}
	detected := http.DetectContentType(head)
	if strings.HasPrefix(detected, "image/") {
		return detected
	}
	return defaultMimeType
}
