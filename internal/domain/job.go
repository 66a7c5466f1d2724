package domain

import "time"

// Source records which enhancement path produced the final prompt text.
type Source string

const (
	SourceTextOnly         Source = "text-only"
	SourceImageVision      Source = "image-vision"
	SourceTextOnlyFallback Source = "text-only-fallback"
)

// Valid reports whether s is one of the known provenance tags.
func (s Source) Valid() bool {
	switch s {
	case SourceTextOnly, SourceImageVision, SourceTextOnlyFallback:
		return true
	}
	return false
}

// ImagePayload is an uploaded image as received from the caller: either a
// data URL (data:image/png;base64,...) or a bare base64 body.
type ImagePayload string

// EnhancementRequest is created per user action.
type EnhancementRequest struct {
	RawPrompt string
	Images    []ImagePayload
}

// EnhancementResult is the outcome of one enhancement path. It is a value
// type and never mutated after the orchestrator produces it.
type EnhancementResult struct {
	EnhancedText string
	Source       Source
}

// GenerationRecord is handed to the job simulator once per generation call.
type GenerationRecord struct {
	OriginalPrompt string
	EnhancedPrompt string
	Images         []ImagePayload
	Source         Source
	Timestamp      time.Time
}

// VideoMetadata describes the (mock) generated video.
type VideoMetadata struct {
	Duration   string    `json:"duration"`
	Resolution string    `json:"resolution"`
	Format     string    `json:"format"`
	Size       string    `json:"size"`
	SizeBytes  uint64    `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

// PromptData echoes the generation record alongside processing details.
type PromptData struct {
	OriginalPrompt   string    `json:"original_prompt"`
	EnhancedPrompt   string    `json:"enhanced_prompt"`
	ImageCount       int       `json:"image_count"`
	Source           Source    `json:"source"`
	Timestamp        time.Time `json:"timestamp"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	Model            string    `json:"model"`
	Provider         string    `json:"provider"`
}

// JobOutcome is the terminal artifact of a generation cycle. Failed jobs
// carry ErrorMessage and no VideoMetadata.
type JobOutcome struct {
	JobID         string         `json:"job_id"`
	Success       bool           `json:"success"`
	VideoMetadata *VideoMetadata `json:"video_metadata,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	PromptData    PromptData     `json:"prompt_data"`
}
