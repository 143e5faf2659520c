package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"pixelmagic/internal/domain"
	"pixelmagic/internal/infra"
	"pixelmagic/internal/intake"
	"pixelmagic/internal/providers/genai"
	"pixelmagic/internal/session"
	"pixelmagic/internal/storage"
	"pixelmagic/pkg/zip"
)

var version = "dev"

const defaultOutput = "edited-image.png"

type App struct {
	Out       io.Writer
	Err       io.Writer
	GetEnv    func(string) string
	NewEditor func(ctx context.Context, opts genai.Options) (session.Editor, error)
}

func DefaultApp() *App {
	return &App{
		Out:    os.Stdout,
		Err:    os.Stderr,
		GetEnv: os.Getenv,
		NewEditor: func(ctx context.Context, opts genai.Options) (session.Editor, error) {
			return genai.NewClient(ctx, opts)
		},
	}
}

type editOptions struct {
	output  string
	model   string
	apiKey  string
	force   bool
	compare bool
	verbose bool
	timeout time.Duration
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd(DefaultApp()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "pixelmagic",
		Short:         "Edit images with natural-language instructions",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(app.Out)
	root.SetErr(app.Err)
	root.AddCommand(newEditCmd(app))
	return root
}

func newEditCmd(app *App) *cobra.Command {
	opts := &editOptions{}
	cmd := &cobra.Command{
		Use:   "edit <image-file> <prompt>",
		Short: "Apply an instruction to an image with Gemini",
		Long: `Send an image and an instruction to Gemini and save the edited image.

Examples:
  pixelmagic edit cat.png "add a wizard hat"
  pixelmagic edit photo.jpg "make the background a futuristic city" -o city.png
  pixelmagic edit sketch.webp "turn this into a watercolor" --compare`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd.Context(), app, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", defaultOutput, "where to save the edited image")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Gemini model (defaults to GEMINI_MODEL or "+genai.DefaultModel+")")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "API key (defaults to GEMINI_API_KEY)")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "overwrite the output file if it exists")
	cmd.Flags().BoolVar(&opts.compare, "compare", false, "also save a zip with the original and the edited image")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log progress to stderr")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "give up after this long")
	return cmd
}

func runEdit(parent context.Context, app *App, opts *editOptions, imagePath, prompt string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if opts.timeout > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, opts.timeout)
		defer stop()
	}

	if strings.TrimSpace(prompt) == "" {
		return domain.ErrBlankPrompt
	}

	apiKey := firstNonEmpty(opts.apiKey, app.GetEnv("GEMINI_API_KEY"), app.GetEnv("API_KEY"))
	if apiKey == "" {
		return fmt.Errorf("API key required: set GEMINI_API_KEY or use --api-key")
	}
	model := firstNonEmpty(opts.model, app.GetEnv("GEMINI_MODEL"), genai.DefaultModel)

	img, err := readImage(imagePath)
	if err != nil {
		return err
	}

	logger := infra.NopLogger()
	if opts.verbose {
		logger = infra.Component(infra.NewCLILogger(app.Err), "cli")
	}

	editor, err := app.NewEditor(ctx, genai.Options{
		APIKey:  apiKey,
		BaseURL: app.GetEnv("GEMINI_BASE_URL"),
		Model:   model,
		Logger:  &logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create editor: %w", err)
	}

	ctrl := session.NewController(editor, session.ControllerOptions{Logger: &logger})
	if err := ctrl.Load(img); err != nil {
		return err
	}
	ctrl.SetPrompt(prompt)

	fmt.Fprintf(app.Out, "Editing %s with %s...\n", filepath.Base(imagePath), model)
	ticket, ok := ctrl.Submit(ctx)
	if !ok {
		return fmt.Errorf("edit could not be started from state %s", ctrl.State())
	}
	if err := ticket.Wait(ctx); err != nil {
		return fmt.Errorf("edit interrupted: %w", err)
	}
	if !ticket.Applied() {
		return errors.New("edit result was discarded")
	}

	result := ctrl.Snapshot()
	if result.State == domain.StateError {
		return errors.New(result.Error)
	}
	edited, err := base64.StdEncoding.DecodeString(result.GeneratedImage)
	if err != nil {
		return fmt.Errorf("decode edited image: %w", err)
	}

	store, err := storage.NewFileStore(filepath.Dir(opts.output), opts.force)
	if err != nil {
		return err
	}
	path, err := store.WriteUnique(ctx, filepath.Base(opts.output), edited)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Saved: %s\n", path)

	if opts.compare {
		original, err := img.Bytes()
		if err != nil {
			return err
		}
		archive, err := zip.ArchiveAssets([]zip.Asset{
			{Filename: "original" + zip.Extension(img.MimeType), MIME: img.MimeType, Data: original},
			{Filename: defaultOutput, MIME: "image/png", Data: edited},
		}, time.Now())
		if err != nil {
			return err
		}
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		zipPath, err := store.WriteUnique(ctx, stem+"-compare.zip", archive)
		if err != nil {
			return err
		}
		fmt.Fprintf(app.Out, "Saved: %s\n", zipPath)
	}

	fmt.Fprintln(app.Out, "Done!")
	return nil
}

func readImage(path string) (intake.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return intake.Image{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	return intake.FromReader(intake.DeclaredType(path, ""), f)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
