package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"pixelmagic/internal/domain"
	"pixelmagic/internal/infra"
	"pixelmagic/internal/middleware"
	"pixelmagic/internal/session"
)

const testSessionID = "0b9a3f1e-6c55-4f0a-9a57-3c1b1f0c2d11"

// editFunc adapts a function to session.Editor.
type editFunc func(ctx context.Context, encodedImage, mimeType, prompt string) (string, error)

func (f editFunc) Edit(ctx context.Context, encodedImage, mimeType, prompt string) (string, error) {
	return f(ctx, encodedImage, mimeType, prompt)
}

var editedPixels = []byte("edited pixels")

func succeedingEditor() session.Editor {
	return editFunc(func(context.Context, string, string, string) (string, error) {
		return base64.StdEncoding.EncodeToString(editedPixels), nil
	})
}

func newTestApp(t *testing.T, editor session.Editor) *App {
	t.Helper()
	sessions := session.NewManager(func() *session.Controller {
		return session.NewController(editor, session.ControllerOptions{})
	}, session.ManagerOptions{})
	t.Cleanup(sessions.Close)

	app, err := NewApp(sessions, &infra.Config{GeminiModel: "gemini-test-model"}, infra.NopLogger())
	if err != nil {
		t.Fatalf("NewApp returned error: %v", err)
	}
	return app
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	req = req.WithContext(middleware.ContextWithSessionID(req.Context(), testSessionID))
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func multipartUpload(t *testing.T, target, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(UploadField, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write(data)
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeSession(t *testing.T, rr *httptest.ResponseRecorder) domain.Session {
	t.Helper()
	var body struct {
		Session domain.Session `json:"session"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rr.Body.String())
	}
	return body.Session
}

// loadAndComplete drives the test session to COMPLETE.
func loadAndComplete(t *testing.T, app *App) {
	t.Helper()
	rr := serve(app.UploadImage, multipartUpload(t, "/v1/session/image", "cat.png", []byte("cat pixels")))
	if rr.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rr.Code, rr.Body.String())
	}
	rr = serve(app.SubmitEdit, jsonRequest(http.MethodPost, "/v1/session/edit?wait=true", `{"prompt":"add a hat"}`))
	if got := decodeSession(t, rr); got.State != domain.StateComplete {
		t.Fatalf("state = %s, want COMPLETE (%s)", got.State, rr.Body.String())
	}
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, succeedingEditor())
	rr := serve(app.Health, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	if body["status"] != "ok" || body["model"] != "gemini-test-model" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestUploadImageAPI(t *testing.T) {
	tests := []struct {
		name       string
		req        func(t *testing.T) *http.Request
		wantStatus int
		wantCode   string
		wantMime   string
	}{
		{
			name: "multipart png",
			req: func(t *testing.T) *http.Request {
				return multipartUpload(t, "/v1/session/image", "cat.png", []byte("cat pixels"))
			},
			wantStatus: http.StatusOK,
			wantMime:   "image/png",
		},
		{
			name: "json data url",
			req: func(t *testing.T) *http.Request {
				url := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpeg"))
				return jsonRequest(http.MethodPost, "/v1/session/image", `{"data_url":"`+url+`"}`)
			},
			wantStatus: http.StatusOK,
			wantMime:   "image/jpeg",
		},
		{
			name: "pdf rejected",
			req: func(t *testing.T) *http.Request {
				return multipartUpload(t, "/v1/session/image", "doc.pdf", []byte("%PDF"))
			},
			wantStatus: http.StatusUnsupportedMediaType,
			wantCode:   "not_image",
		},
		{
			name: "empty file rejected",
			req: func(t *testing.T) *http.Request {
				return multipartUpload(t, "/v1/session/image", "cat.png", nil)
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "bad_request",
		},
		{
			name: "missing file field",
			req: func(t *testing.T) *http.Request {
				var body bytes.Buffer
				mw := multipart.NewWriter(&body)
				_ = mw.WriteField("other", "x")
				_ = mw.Close()
				req := httptest.NewRequest(http.MethodPost, "/v1/session/image", &body)
				req.Header.Set("Content-Type", mw.FormDataContentType())
				return req
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "bad_request",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t, succeedingEditor())
			rr := serve(app.UploadImage, tc.req(t))
			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tc.wantStatus, rr.Body.String())
			}
			if tc.wantCode != "" {
				if !strings.Contains(rr.Body.String(), `"code":"`+tc.wantCode+`"`) {
					t.Fatalf("body = %s, want code %s", rr.Body.String(), tc.wantCode)
				}
				if app.Sessions.Len() != 0 {
					t.Fatal("rejected upload should not create a session")
				}
				return
			}
			got := decodeSession(t, rr)
			if got.State != domain.StateReadyToEdit || got.MimeType != tc.wantMime {
				t.Fatalf("session = %+v", got)
			}
			if got.OriginalImage != "" {
				t.Fatal("upload response should not echo the image")
			}
		})
	}
}

func TestSubmitEditWaitCompletes(t *testing.T) {
	app := newTestApp(t, succeedingEditor())
	serve(app.UploadImage, multipartUpload(t, "/v1/session/image", "cat.png", []byte("cat pixels")))

	rr := serve(app.SubmitEdit, jsonRequest(http.MethodPost, "/v1/session/edit?wait=true&include=images", `{"prompt":"add a hat"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	got := decodeSession(t, rr)
	if got.State != domain.StateComplete {
		t.Fatalf("state = %s", got.State)
	}
	if got.GeneratedImage != base64.StdEncoding.EncodeToString(editedPixels) {
		t.Fatalf("generated image = %q", got.GeneratedImage)
	}
	if got.OriginalImage != base64.StdEncoding.EncodeToString([]byte("cat pixels")) {
		t.Fatal("original image should be retained")
	}
}

func TestSubmitEditAsyncReturnsAccepted(t *testing.T) {
	release := make(chan struct{})
	editor := editFunc(func(ctx context.Context, _, _, _ string) (string, error) {
		<-release
		return base64.StdEncoding.EncodeToString(editedPixels), nil
	})
	app := newTestApp(t, editor)
	t.Cleanup(func() { close(release) })
	serve(app.UploadImage, multipartUpload(t, "/v1/session/image", "cat.png", []byte("cat pixels")))

	rr := serve(app.SubmitEdit, jsonRequest(http.MethodPost, "/v1/session/edit", `{"prompt":"add a hat"}`))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if got := decodeSession(t, rr); got.State != domain.StateProcessing {
		t.Fatalf("state = %s, want PROCESSING", got.State)
	}

	// a second submit while busy is ignored
	rr = serve(app.SubmitEdit, jsonRequest(http.MethodPost, "/v1/session/edit", `{"prompt":"add a hat"}`))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"started":false`) {
		t.Fatalf("busy submit = %d %s", rr.Code, rr.Body.String())
	}
}

func TestSubmitEditGuard(t *testing.T) {
	var calls int
	var mu sync.Mutex
	editor := editFunc(func(context.Context, string, string, string) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return "", nil
	})
	app := newTestApp(t, editor)

	// no image yet
	rr := serve(app.SubmitEdit, jsonRequest(http.MethodPost, "/v1/session/edit", `{"prompt":"add a hat"}`))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"started":false`) {
		t.Fatalf("submit without image = %d %s", rr.Code, rr.Body.String())
	}

	serve(app.UploadImage, multipartUpload(t, "/v1/session/image", "cat.png", []byte("cat pixels")))
	rr = serve(app.SubmitEdit, jsonRequest(http.MethodPost, "/v1/session/edit", `{"prompt":"   "}`))
	if !strings.Contains(rr.Body.String(), `"started":false`) {
		t.Fatalf("blank prompt submit = %s", rr.Body.String())
	}
	if got := decodeSession(t, rr); got.State != domain.StateReadyToEdit {
		t.Fatalf("state = %s, want READY_TO_EDIT", got.State)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Fatalf("editor called %d times", calls)
	}
}

func TestSubmitEditRejectsBadJSON(t *testing.T) {
	app := newTestApp(t, succeedingEditor())
	rr := serve(app.SubmitEdit, jsonRequest(http.MethodPost, "/v1/session/edit", `{"prompt":`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestEditFailureAndDismiss(t *testing.T) {
	editor := editFunc(func(context.Context, string, string, string) (string, error) {
		return "", domain.ErrNoImageData
	})
	app := newTestApp(t, editor)
	serve(app.UploadImage, multipartUpload(t, "/v1/session/image", "cat.png", []byte("cat pixels")))

	rr := serve(app.SubmitEdit, jsonRequest(http.MethodPost, "/v1/session/edit?wait=true", `{"prompt":"add a hat"}`))
	got := decodeSession(t, rr)
	if got.State != domain.StateError || got.Error != domain.ErrNoImageData.Error() {
		t.Fatalf("session = %+v", got)
	}

	rr = serve(app.DismissError, httptest.NewRequest(http.MethodPost, "/v1/session/error/dismiss", nil))
	got = decodeSession(t, rr)
	if got.Error != "" || got.State != domain.StateError {
		t.Fatalf("after dismiss = %+v", got)
	}
}

func TestResetSession(t *testing.T) {
	app := newTestApp(t, succeedingEditor())
	loadAndComplete(t, app)

	rr := serve(app.ResetSession, httptest.NewRequest(http.MethodDelete, "/v1/session", nil))
	got := decodeSession(t, rr)
	if got.State != domain.StateIdle || got.Prompt != "" || got.MimeType != "" {
		t.Fatalf("after reset = %+v", got)
	}
}

func TestGetSessionOmitsImagesByDefault(t *testing.T) {
	app := newTestApp(t, succeedingEditor())
	loadAndComplete(t, app)

	got := decodeSession(t, serve(app.GetSession, httptest.NewRequest(http.MethodGet, "/v1/session", nil)))
	if got.OriginalImage != "" || got.GeneratedImage != "" {
		t.Fatal("images should be omitted without include=images")
	}
	got = decodeSession(t, serve(app.GetSession, httptest.NewRequest(http.MethodGet, "/v1/session?include=images", nil)))
	if got.OriginalImage == "" || got.GeneratedImage == "" {
		t.Fatal("images should be present with include=images")
	}
}

func TestDownload(t *testing.T) {
	app := newTestApp(t, succeedingEditor())

	rr := serve(app.Download, httptest.NewRequest(http.MethodGet, "/download", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("download before edit = %d", rr.Code)
	}

	loadAndComplete(t, app)
	rr = serve(app.Download, httptest.NewRequest(http.MethodGet, "/download", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Disposition"); got != `attachment; filename="edited-image.png"` {
		t.Fatalf("Content-Disposition = %q", got)
	}
	if rr.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("Content-Type = %q", rr.Header().Get("Content-Type"))
	}
	if !bytes.Equal(rr.Body.Bytes(), editedPixels) {
		t.Fatalf("body = %q", rr.Body.Bytes())
	}
}

func TestImageEndpoints(t *testing.T) {
	app := newTestApp(t, succeedingEditor())

	if rr := serve(app.OriginalImage, httptest.NewRequest(http.MethodGet, "/images/original", nil)); rr.Code != http.StatusNotFound {
		t.Fatalf("original before upload = %d", rr.Code)
	}
	loadAndComplete(t, app)

	rr := serve(app.OriginalImage, httptest.NewRequest(http.MethodGet, "/images/original", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "cat pixels" {
		t.Fatalf("original = %d %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" || rr.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("missing safety headers: %v", rr.Header())
	}
	if rr.Header().Get("Content-Disposition") != "" {
		t.Fatal("inline image should not be an attachment")
	}

	rr = serve(app.GeneratedImage, httptest.NewRequest(http.MethodGet, "/images/generated", nil))
	if rr.Code != http.StatusOK || !bytes.Equal(rr.Body.Bytes(), editedPixels) {
		t.Fatalf("generated = %d %q", rr.Code, rr.Body.String())
	}
}

func TestCompareArchive(t *testing.T) {
	app := newTestApp(t, succeedingEditor())
	loadAndComplete(t, app)

	rr := serve(app.CompareArchive, httptest.NewRequest(http.MethodGet, "/download/compare.zip", nil))
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "application/zip" {
		t.Fatalf("status = %d type = %q", rr.Code, rr.Header().Get("Content-Type"))
	}
	zr, err := zip.NewReader(bytes.NewReader(rr.Body.Bytes()), int64(rr.Body.Len()))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	if strings.Join(names, ",") != "original.png,edited-image.png" {
		t.Fatalf("entries = %v", names)
	}
}

func TestPageFlow(t *testing.T) {
	app := newTestApp(t, succeedingEditor())

	rr := serve(app.Index, httptest.NewRequest(http.MethodGet, "/", nil))
	page := rr.Body.String()
	if rr.Code != http.StatusOK || !strings.Contains(page, "Remove the red mark") || !strings.Contains(page, "gemini-test-model") {
		t.Fatalf("idle page missing hero: %d", rr.Code)
	}
	if strings.Contains(page, "New Image") {
		t.Fatal("idle page should not offer a reset")
	}

	rr = serve(app.UploadForm, multipartUpload(t, "/upload", "cat.png", []byte("cat pixels")))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("upload redirect = %d %q", rr.Code, rr.Header().Get("Location"))
	}

	page = serve(app.Index, httptest.NewRequest(http.MethodGet, "/", nil)).Body.String()
	if !strings.Contains(page, "/images/original") || !strings.Contains(page, "New Image") {
		t.Fatal("ready page should show the original and a reset button")
	}

	form := httptest.NewRequest(http.MethodPost, "/edit", strings.NewReader("prompt=add+a+hat"))
	form.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if rr := serve(app.EditForm, form); rr.Code != http.StatusSeeOther {
		t.Fatalf("edit redirect = %d", rr.Code)
	}
	waitForState(t, app, domain.StateComplete)

	page = serve(app.Index, httptest.NewRequest(http.MethodGet, "/", nil)).Body.String()
	if !strings.Contains(page, "/images/generated") || !strings.Contains(page, `href="/download"`) {
		t.Fatal("complete page should show the result and a download link")
	}
	if !strings.Contains(page, `value="add a hat"`) {
		t.Fatal("prompt should be kept after an edit")
	}

	serve(app.ResetForm, httptest.NewRequest(http.MethodPost, "/reset", nil))
	if _, err := app.Sessions.Lookup(testSessionID); err == nil {
		t.Fatal("reset should destroy the session")
	}
	page = serve(app.Index, httptest.NewRequest(http.MethodGet, "/", nil)).Body.String()
	if !strings.Contains(page, "Remove the red mark") {
		t.Fatal("page after reset should show the idle hero")
	}
}

func TestUploadFormRejectsNonImage(t *testing.T) {
	app := newTestApp(t, succeedingEditor())

	rr := serve(app.UploadForm, multipartUpload(t, "/upload", "doc.pdf", []byte("%PDF")))
	if rr.Header().Get("Location") != "/?alert=invalid-image" {
		t.Fatalf("Location = %q", rr.Header().Get("Location"))
	}
	page := serve(app.Index, httptest.NewRequest(http.MethodGet, "/?alert=invalid-image", nil)).Body.String()
	if !strings.Contains(page, "Please upload a valid image file") {
		t.Fatal("alert text missing from page")
	}
	if app.Sessions.Len() != 0 {
		t.Fatal("rejected upload should not create a session")
	}
}

func TestErrorBannerDismissForm(t *testing.T) {
	editor := editFunc(func(context.Context, string, string, string) (string, error) {
		return "", domain.ErrNoContent
	})
	app := newTestApp(t, editor)
	serve(app.UploadForm, multipartUpload(t, "/upload", "cat.png", []byte("cat pixels")))
	form := httptest.NewRequest(http.MethodPost, "/edit", strings.NewReader("prompt=add+a+hat"))
	form.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	serve(app.EditForm, form)
	waitForState(t, app, domain.StateError)

	page := serve(app.Index, httptest.NewRequest(http.MethodGet, "/", nil)).Body.String()
	if !strings.Contains(page, domain.ErrNoContent.Error()) {
		t.Fatal("error banner missing")
	}

	serve(app.DismissErrorForm, httptest.NewRequest(http.MethodPost, "/error/dismiss", nil))
	page = serve(app.Index, httptest.NewRequest(http.MethodGet, "/", nil)).Body.String()
	if strings.Contains(page, domain.ErrNoContent.Error()) {
		t.Fatal("error banner should be gone after dismiss")
	}
}

func TestProcessingPageRefreshes(t *testing.T) {
	release := make(chan struct{})
	editor := editFunc(func(context.Context, string, string, string) (string, error) {
		<-release
		return base64.StdEncoding.EncodeToString(editedPixels), nil
	})
	app := newTestApp(t, editor)
	t.Cleanup(func() { close(release) })

	serve(app.UploadForm, multipartUpload(t, "/upload", "cat.png", []byte("cat pixels")))
	form := httptest.NewRequest(http.MethodPost, "/edit", strings.NewReader("prompt=add+a+hat"))
	form.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	serve(app.EditForm, form)

	page := serve(app.Index, httptest.NewRequest(http.MethodGet, "/", nil)).Body.String()
	if !strings.Contains(page, `http-equiv="refresh"`) || !strings.Contains(page, `aria-busy="true"`) {
		t.Fatal("processing page should refresh and show the busy indicator")
	}
}

func TestReadOnlyRequestsDoNotCreateSessions(t *testing.T) {
	app := newTestApp(t, succeedingEditor())

	reads := []struct {
		name    string
		handler http.HandlerFunc
		target  string
		status  int
	}{
		{"index", app.Index, "/", http.StatusOK},
		{"session", app.GetSession, "/v1/session", http.StatusOK},
		{"original", app.OriginalImage, "/images/original", http.StatusNotFound},
		{"generated", app.GeneratedImage, "/images/generated", http.StatusNotFound},
		{"download", app.Download, "/download", http.StatusNotFound},
		{"compare", app.CompareArchive, "/download/compare.zip", http.StatusNotFound},
		{"reset", app.ResetSession, "/v1/session", http.StatusOK},
		{"dismiss", app.DismissError, "/v1/session/error/dismiss", http.StatusOK},
	}
	for _, tc := range reads {
		rr := serve(tc.handler, httptest.NewRequest(http.MethodGet, tc.target, nil))
		if rr.Code != tc.status {
			t.Fatalf("%s status = %d, want %d", tc.name, rr.Code, tc.status)
		}
	}
	if app.Sessions.Len() != 0 {
		t.Fatalf("read-only requests created %d sessions", app.Sessions.Len())
	}

	got := decodeSession(t, serve(app.GetSession, httptest.NewRequest(http.MethodGet, "/v1/session", nil)))
	if got.State != domain.StateIdle {
		t.Fatalf("unknown caller state = %s, want IDLE", got.State)
	}
}

func TestAnonymousReadsDoNotEvictLiveSession(t *testing.T) {
	sessions := session.NewManager(func() *session.Controller {
		return session.NewController(succeedingEditor(), session.ControllerOptions{})
	}, session.ManagerOptions{MaxSessions: 2})
	t.Cleanup(sessions.Close)
	app, err := NewApp(sessions, nil, infra.NopLogger())
	if err != nil {
		t.Fatalf("NewApp returned error: %v", err)
	}

	serve(app.UploadImage, multipartUpload(t, "/v1/session/image", "cat.png", []byte("cat pixels")))

	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
		req = req.WithContext(middleware.ContextWithSessionID(req.Context(), uuid.NewString()))
		rr := httptest.NewRecorder()
		app.GetSession(rr, req)
	}

	got := decodeSession(t, serve(app.GetSession, httptest.NewRequest(http.MethodGet, "/v1/session", nil)))
	if got.State != domain.StateReadyToEdit {
		t.Fatalf("uploaded session state = %s, want READY_TO_EDIT", got.State)
	}
}

func TestSubmitEditWaitIsBounded(t *testing.T) {
	release := make(chan struct{})
	editor := editFunc(func(context.Context, string, string, string) (string, error) {
		<-release
		return base64.StdEncoding.EncodeToString(editedPixels), nil
	})
	app := newTestApp(t, editor)
	t.Cleanup(func() { close(release) })
	app.editWait = 20 * time.Millisecond

	serve(app.UploadImage, multipartUpload(t, "/v1/session/image", "cat.png", []byte("cat pixels")))
	rr := serve(app.SubmitEdit, jsonRequest(http.MethodPost, "/v1/session/edit?wait=true", `{"prompt":"add a hat"}`))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rr.Code, rr.Body.String())
	}
	if got := decodeSession(t, rr); got.State != domain.StateProcessing {
		t.Fatalf("state = %s, want PROCESSING", got.State)
	}
}

func TestNewAppBoundsWaitBelowWriteTimeout(t *testing.T) {
	sessions := session.NewManager(func() *session.Controller {
		return session.NewController(succeedingEditor(), session.ControllerOptions{})
	}, session.ManagerOptions{})
	t.Cleanup(sessions.Close)
	app, err := NewApp(sessions, &infra.Config{HTTPWriteTimeout: 120 * time.Second}, infra.NopLogger())
	if err != nil {
		t.Fatalf("NewApp returned error: %v", err)
	}
	if app.editWait <= 0 || app.editWait >= 120*time.Second {
		t.Fatalf("editWait = %s, want below the write timeout", app.editWait)
	}
}

func waitForState(t *testing.T, app *App, want domain.AppState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if app.Sessions.Get(testSessionID).State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session never reached %s", want)
}
