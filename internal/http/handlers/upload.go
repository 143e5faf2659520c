package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"pixelmagic/internal/intake"
)

// UploadField is the multipart field holding the image file.
const UploadField = "image"

var errMissingFile = errors.New("no image file in request")

type dataURLUpload struct {
	DataURL string `json:"data_url"`
}

// readUpload accepts either a multipart form with an image file or a JSON
// body carrying a data URL.
func (a *App) readUpload(r *http.Request) (intake.Image, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body dataURLUpload
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return intake.Image{}, fmt.Errorf("invalid payload: %w", err)
		}
		return intake.ParseDataURL(body.DataURL)
	}

	if err := r.ParseMultipartForm(a.uploadMaxMemory); err != nil {
		return intake.Image{}, fmt.Errorf("parse upload: %w", err)
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	file, header, err := r.FormFile(UploadField)
	if err != nil {
		return intake.Image{}, errMissingFile
	}
	defer file.Close()

	declared := intake.DeclaredType(header.Filename, header.Header.Get("Content-Type"))
	return intake.FromReader(strings.TrimSpace(declared), file)
}
