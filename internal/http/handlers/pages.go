package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"pixelmagic/internal/domain"
)

const (
	alertInvalidImage = "invalid-image"
	alertUploadFailed = "upload-failed"
)

var examplePrompts = []string{
	"Remove the red mark",
	"Make the background a futuristic city",
	"Turn this into a sketch",
}

type pageView struct {
	Session  domain.Session
	Alert    string
	Model    string
	Examples []string
}

// AlertMessage is the text shown for a rejected upload.
func (v pageView) AlertMessage() string {
	switch v.Alert {
	case alertInvalidImage:
		return "Please upload a valid image file"
	case alertUploadFailed:
		return "The image could not be read. Please try another file."
	default:
		return ""
	}
}

// Index renders the editor for the caller's session.
func (a *App) Index(w http.ResponseWriter, r *http.Request) {
	view := pageView{
		Session:  a.snapshot(r),
		Alert:    r.URL.Query().Get("alert"),
		Model:    a.Model,
		Examples: examplePrompts,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := a.templates.ExecuteTemplate(w, "index.html", view); err != nil {
		a.Logger.Error().Err(err).Msg("render index")
	}
}

// UploadForm takes the file from the upload zone. A rejected file leaves the
// session untouched and comes back as an alert.
func (a *App) UploadForm(w http.ResponseWriter, r *http.Request) {
	img, err := a.readUpload(r)
	if err != nil {
		alert := alertUploadFailed
		if errors.Is(err, domain.ErrNotImage) {
			alert = alertInvalidImage
		}
		a.Logger.Debug().Err(err).Msg("upload rejected")
		redirectHome(w, r, alert)
		return
	}
	if err := a.controller(r).Load(img); err != nil {
		redirectHome(w, r, alertUploadFailed)
		return
	}
	redirectHome(w, r, "")
}

// EditForm binds the prompt and submits it. A submit the guard refuses is
// simply ignored.
func (a *App) EditForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectHome(w, r, "")
		return
	}
	ctrl := a.controller(r)
	ctrl.SetPrompt(r.PostForm.Get("prompt"))
	ctrl.Submit(r.Context())
	redirectHome(w, r, "")
}

// ResetForm starts over.
func (a *App) ResetForm(w http.ResponseWriter, r *http.Request) {
	a.reset(r)
	redirectHome(w, r, "")
}

// DismissErrorForm hides the error banner.
func (a *App) DismissErrorForm(w http.ResponseWriter, r *http.Request) {
	a.dismissError(r)
	redirectHome(w, r, "")
}

func redirectHome(w http.ResponseWriter, r *http.Request, alert string) {
	target := "/"
	if alert != "" {
		target += "?alert=" + url.QueryEscape(alert)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
