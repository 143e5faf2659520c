package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"pixelmagic/internal/domain"
)

type sessionResponse struct {
	SessionID string         `json:"session_id,omitempty"`
	Session   domain.Session `json:"session"`
}

type editRequest struct {
	Prompt *string `json:"prompt"`
}

type editResponse struct {
	Started bool           `json:"started"`
	Request uint64         `json:"request,omitempty"`
	Session domain.Session `json:"session"`
}

func includeImages(r *http.Request) bool {
	return r.URL.Query().Get("include") == "images"
}

func view(s domain.Session, withImages bool) domain.Session {
	if withImages {
		return s
	}
	return s.WithoutImages()
}

// GetSession reports the caller's session.
func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, sessionResponse{Session: view(a.snapshot(r), includeImages(r))})
}

// UploadImage accepts an image for the caller's session.
func (a *App) UploadImage(w http.ResponseWriter, r *http.Request) {
	img, err := a.readUpload(r)
	switch {
	case errors.Is(err, domain.ErrNotImage):
		a.error(w, http.StatusUnsupportedMediaType, "not_image", err.Error())
		return
	case errors.Is(err, domain.ErrEmptyImage), errors.Is(err, errMissingFile):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	case err != nil:
		a.error(w, http.StatusBadRequest, "bad_request", "invalid upload")
		return
	}

	ctrl := a.controller(r)
	if err := ctrl.Load(img); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	a.json(w, http.StatusOK, sessionResponse{Session: ctrl.Snapshot().WithoutImages()})
}

// SubmitEdit optionally binds a prompt and starts an edit. A refused submit
// is not an error: the response reports started=false and the session as is.
// With ?wait=true the call returns once the edit resolves, or answers 202 when
// it outlasts the wait bound.
func (a *App) SubmitEdit(w http.ResponseWriter, r *http.Request) {
	var body editRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	ctrl := a.controller(r)
	if body.Prompt != nil {
		ctrl.SetPrompt(*body.Prompt)
	}
	ticket, ok := ctrl.Submit(r.Context())
	if !ok {
		a.json(w, http.StatusOK, editResponse{Started: false, Session: ctrl.Snapshot().WithoutImages()})
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		a.json(w, http.StatusAccepted, editResponse{Started: true, Request: ticket.ID, Session: ctrl.Snapshot().WithoutImages()})
		return
	}
	ctx := r.Context()
	if a.editWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.editWait)
		defer cancel()
	}
	if err := ticket.Wait(ctx); err != nil {
		if r.Context().Err() != nil {
			// client went away; the edit keeps running
			return
		}
		// still running: answer before the write timeout cuts the reply off
		a.json(w, http.StatusAccepted, editResponse{Started: true, Request: ticket.ID, Session: ctrl.Snapshot().WithoutImages()})
		return
	}
	a.json(w, http.StatusOK, editResponse{Started: true, Request: ticket.ID, Session: view(ctrl.Snapshot(), includeImages(r))})
}

// ResetSession starts over.
func (a *App) ResetSession(w http.ResponseWriter, r *http.Request) {
	a.reset(r)
	a.json(w, http.StatusOK, sessionResponse{Session: a.snapshot(r)})
}

// DismissError clears the reported error without changing state.
func (a *App) DismissError(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, sessionResponse{Session: a.dismissError(r).WithoutImages()})
}
