package jsoncfg

import (
	"fmt"
	"strings"

	"reelcraft/internal/domain"
)

// GenerationJSON is the request body accepted by the generation endpoints.
type GenerationJSON struct {
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
}

const (
	// MaxPromptLength caps the user prompt before it is sent upstream.
	MaxPromptLength = 2000
	// MaxImages caps how many uploads a single request may carry. Only the
	// first image is analysed; the rest travel with the record.
	MaxImages = 4
	// MaxImagePayloadLength bounds one encoded image (roughly 10MB decoded).
	MaxImagePayloadLength = 14 << 20
)

// Normalize trims the prompt and drops blank image entries.
func (g *GenerationJSON) Normalize() {
	if g == nil {
		return
	}
	g.Prompt = strings.TrimSpace(g.Prompt)
	images := g.Images[:0]
	for _, img := range g.Images {
		img = strings.TrimSpace(img)
		if img == "" {
			continue
		}
		images = append(images, img)
	}
	g.Images = images
}

// Validate ensures the request satisfies the contract before any upstream call.
func (g GenerationJSON) Validate() error {
	if g.Prompt == "" {
		return fmt.Errorf("%w: prompt is required", domain.ErrInvalidInput)
	}
	if len([]rune(g.Prompt)) > MaxPromptLength {
		return fmt.Errorf("%w: prompt must be at most %d characters", domain.ErrInvalidInput, MaxPromptLength)
	}
	if len(g.Images) > MaxImages {
		return fmt.Errorf("%w: at most %d images are accepted", domain.ErrInvalidInput, MaxImages)
	}
	for i, img := range g.Images {
		if len(img) > MaxImagePayloadLength {
			return fmt.Errorf("%w: image %d exceeds the size limit", domain.ErrInvalidInput, i+1)
		}
	}
	return nil
}

// Request converts the normalized body into a domain request.
func (g GenerationJSON) Request() domain.EnhancementRequest {
	req := domain.EnhancementRequest{RawPrompt: g.Prompt}
	for _, img := range g.Images {
		req.Images = append(req.Images, domain.ImagePayload(img))
	}
	return req
}
