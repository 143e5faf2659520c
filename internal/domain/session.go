package domain

import "strings"

// DefaultMimeType is assumed when an upload does not name its media type.
const DefaultMimeType = "image/png"

// Session is a point-in-time copy of one editing interaction. Images are
// carried base64-encoded, exactly as they travel to and from the model.
type Session struct {
	State          AppState `json:"state"`
	OriginalImage  string   `json:"original_image,omitempty"`
	MimeType       string   `json:"mime_type"`
	Prompt         string   `json:"prompt"`
	GeneratedImage string   `json:"generated_image,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// HasImage reports whether an original image has been loaded.
func (s Session) HasImage() bool {
	return s.OriginalImage != ""
}

// HasPrompt reports whether the prompt holds anything besides whitespace.
func (s Session) HasPrompt() bool {
	return strings.TrimSpace(s.Prompt) != ""
}

// HasResult reports whether a generated image is ready for display.
func (s Session) HasResult() bool {
	return s.State == StateComplete && s.GeneratedImage != ""
}

// Processing reports whether an edit request is in flight.
func (s Session) Processing() bool {
	return s.State == StateProcessing
}

// WithoutImages drops the encoded payloads, for status responses.
func (s Session) WithoutImages() Session {
	s.OriginalImage = ""
	s.GeneratedImage = ""
	return s
}
