package domain

import "errors"

var (
	ErrNotImage        = errors.New("please upload a valid image file")
	ErrEmptyImage      = errors.New("image data is empty")
	ErrBlankPrompt     = errors.New("prompt is blank")
	ErrNoContent       = errors.New("no content generated from the model")
	ErrNoImageData     = errors.New("no image data found in the response")
	ErrEditFailed      = errors.New("failed to edit image using gemini")
	ErrSessionNotFound = errors.New("session not found")
)
