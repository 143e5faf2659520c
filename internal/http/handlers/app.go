package handlers

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"pixelmagic/internal/domain"
	"pixelmagic/internal/infra"
	"pixelmagic/internal/middleware"
	"pixelmagic/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

const defaultUploadMaxMemory = 32 << 20

// App holds what the handlers share: the session registry, the page
// templates and the logger.
type App struct {
	Sessions *session.Manager
	Logger   infra.Logger
	Model    string

	uploadMaxMemory int64
	// editWait bounds ?wait=true so the reply is written before the server's
	// write timeout; zero leaves it to the request context.
	editWait  time.Duration
	templates *template.Template
}

// NewApp parses the embedded templates and wires the handlers.
func NewApp(sessions *session.Manager, cfg *infra.Config, logger infra.Logger) (*App, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	app := &App{
		Sessions:        sessions,
		Logger:          logger,
		uploadMaxMemory: defaultUploadMaxMemory,
		templates:       tmpl,
	}
	if cfg != nil {
		app.Model = cfg.GeminiModel
		if cfg.UploadMaxMemory > 0 {
			app.uploadMaxMemory = cfg.UploadMaxMemory
		}
		app.editWait = cfg.HTTPWriteTimeout * 9 / 10
	}
	return app, nil
}

// controller returns the caller's session, creating it on first use. Only
// requests that change the session call it.
func (a *App) controller(r *http.Request) *session.Controller {
	return a.Sessions.Get(middleware.SessionIDFromContext(r.Context()))
}

// existing returns the caller's session without creating one.
func (a *App) existing(r *http.Request) (*session.Controller, bool) {
	ctrl, err := a.Sessions.Lookup(middleware.SessionIDFromContext(r.Context()))
	return ctrl, err == nil
}

// snapshot reads the caller's session; an unknown caller sees an empty IDLE one.
func (a *App) snapshot(r *http.Request) domain.Session {
	if ctrl, ok := a.existing(r); ok {
		return ctrl.Snapshot()
	}
	return domain.Session{State: domain.StateIdle}
}

// reset destroys the caller's session. An edit still in flight is orphaned.
func (a *App) reset(r *http.Request) {
	if ctrl, ok := a.existing(r); ok {
		ctrl.Reset()
		a.Sessions.Remove(middleware.SessionIDFromContext(r.Context()))
	}
}

// dismissError clears the caller's error banner, if there is a session.
func (a *App) dismissError(r *http.Request) domain.Session {
	ctrl, ok := a.existing(r)
	if !ok {
		return domain.Session{State: domain.StateIdle}
	}
	ctrl.DismissError()
	return ctrl.Snapshot()
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]errorBody{"error": {Code: errCode, Message: message}})
}

// HistoryLogger reports completed edits as log lines; nothing is stored.
func HistoryLogger(logger infra.Logger) domain.HistorySink {
	return domain.HistorySinkFunc(func(item domain.EditHistoryItem) {
		logger.Info().
			Str("edit_id", item.ID).
			Int64("timestamp", item.Timestamp).
			Int("prompt_length", len(item.Prompt)).
			Int("original_length", len(item.OriginalImage)).
			Int("generated_length", len(item.GeneratedImage)).
			Msg("edit completed")
	})
}
