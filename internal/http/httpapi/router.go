package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"pixelmagic/internal/http/handlers"
	"pixelmagic/internal/infra"
	mw "pixelmagic/internal/middleware"
)

// RouterOptions carries the knobs the middleware chain needs.
type RouterOptions struct {
	Logger            infra.Logger
	SecureCookies     bool
	AllowedOrigins    []string
	EditRatePerMinute int
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		mw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		mw.Logger(opts.Logger),
		mw.CORS(opts.AllowedOrigins),
		mw.Session(opts.SecureCookies),
	)

	editLimit := mw.RateLimit(opts.EditRatePerMinute, time.Minute, mw.ClientIPKey)

	// Health
	r.Get("/v1/healthz", app.Health)

	// Browser pages
	r.Get("/", app.Index)
	r.Post("/upload", app.UploadForm)
	r.With(editLimit).Post("/edit", app.EditForm)
	r.Post("/reset", app.ResetForm)
	r.Post("/error/dismiss", app.DismissErrorForm)
	r.Get("/images/original", app.OriginalImage)
	r.Get("/images/generated", app.GeneratedImage)
	r.Get("/download", app.Download)
	r.Get("/download/compare.zip", app.CompareArchive)

	r.Route("/v1/session", func(r chi.Router) {
		r.Get("/", app.GetSession)
		r.Delete("/", app.ResetSession)
		r.Post("/image", app.UploadImage)
		r.With(editLimit).Post("/edit", app.SubmitEdit)
		r.Post("/error/dismiss", app.DismissError)
	})

	return r
}
