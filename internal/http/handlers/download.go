package handlers

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"pixelmagic/internal/domain"
	"pixelmagic/pkg/zip"
)

// DownloadFilename is the fixed name the edited image is saved under.
const DownloadFilename = "edited-image.png"

// generatedMimeType is how the edited image is labelled for download.
const generatedMimeType = "image/png"

// Download saves the edited image. Only available once an edit completed.
func (a *App) Download(w http.ResponseWriter, r *http.Request) {
	s := a.snapshot(r)
	if !s.HasResult() {
		a.error(w, http.StatusNotFound, "not_found", "no edited image available")
		return
	}
	a.writeImage(w, s.GeneratedImage, generatedMimeType, DownloadFilename)
}

// OriginalImage serves the uploaded image for the side-by-side view.
func (a *App) OriginalImage(w http.ResponseWriter, r *http.Request) {
	s := a.snapshot(r)
	if !s.HasImage() {
		a.error(w, http.StatusNotFound, "not_found", "no image uploaded")
		return
	}
	a.writeImage(w, s.OriginalImage, s.MimeType, "")
}

// GeneratedImage serves the edited image for the side-by-side view.
func (a *App) GeneratedImage(w http.ResponseWriter, r *http.Request) {
	s := a.snapshot(r)
	if !s.HasResult() {
		a.error(w, http.StatusNotFound, "not_found", "no edited image available")
		return
	}
	a.writeImage(w, s.GeneratedImage, generatedMimeType, "")
}

// CompareArchive bundles the original and the edited image into one zip.
func (a *App) CompareArchive(w http.ResponseWriter, r *http.Request) {
	s := a.snapshot(r)
	if !s.HasResult() {
		a.error(w, http.StatusNotFound, "not_found", "no edited image available")
		return
	}
	original, err := base64.StdEncoding.DecodeString(s.OriginalImage)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "stored image is corrupt")
		return
	}
	edited, err := base64.StdEncoding.DecodeString(s.GeneratedImage)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "edited image is corrupt")
		return
	}
	archive, err := zip.ArchiveAssets([]zip.Asset{
		{Filename: "original" + zip.Extension(s.MimeType), MIME: s.MimeType, Data: original},
		{Filename: DownloadFilename, MIME: generatedMimeType, Data: edited},
	}, time.Now())
	if err != nil {
		a.Logger.Error().Err(err).Msg("build compare archive")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="before-after.zip"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func (a *App) writeImage(w http.ResponseWriter, encoded, mimeType, attachment string) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "stored image is corrupt")
		return
	}
	if mimeType == "" {
		mimeType = domain.DefaultMimeType
	}
	h := w.Header()
	h.Set("Content-Type", mimeType)
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("Cache-Control", "no-store")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Security-Policy", "default-src 'none'; sandbox")
	if attachment != "" {
		h.Set("Content-Disposition", `attachment; filename="`+attachment+`"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
