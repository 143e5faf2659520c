package genai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	genaisdk "google.golang.org/genai"

	"pixelmagic/internal/domain"
	"pixelmagic/internal/infra"
)

// DefaultModel is the Gemini model that accepts an image plus an instruction
// and answers with an edited image.
const DefaultModel = "gemini-2.5-flash-image"

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// ContentGenerator is the slice of the Gemini SDK the editor depends on.
// *genai.Models from google.golang.org/genai satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genaisdk.Content, config *genaisdk.GenerateContentConfig) (*genaisdk.GenerateContentResponse, error)
}

// Client turns an (image, instruction) pair into one generateContent call.
// It keeps no per-request state and is safe for concurrent use.
type Client struct {
	models ContentGenerator
	model  string
	logger *infra.Logger
}

// RefusalError is returned when the model answers with text instead of an
// image. Its message is the model's text, verbatim.
type RefusalError struct {
	Text string
}

func (e *RefusalError) Error() string { return e.Text }

// NewClient constructs a client backed by the Gemini API.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("genai: api key is required")
	}

	cfg := &genaisdk.ClientConfig{
		APIKey:     apiKey,
		Backend:    genaisdk.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if baseURL := strings.TrimSpace(opts.BaseURL); baseURL != "" {
		cfg.HTTPOptions = genaisdk.HTTPOptions{BaseURL: strings.TrimRight(baseURL, "/") + "/"}
	}

	sdk, err := genaisdk.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai: create client: %w", err)
	}
	return NewClientWithGenerator(sdk.Models, opts), nil
}

// NewClientWithGenerator wires the editor to any ContentGenerator.
func NewClientWithGenerator(models ContentGenerator, opts Options) *Client {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	logger := opts.Logger
	if logger == nil {
		nop := infra.NopLogger()
		logger = &nop
	}

	return &Client{models: models, model: model, logger: logger}
}

// Edit sends the base64-encoded image and the instruction to the model and
// returns the base64-encoded edited image.
func (c *Client) Edit(ctx context.Context, encodedImage, mimeType, prompt string) (string, error) {
	if encodedImage == "" {
		return "", domain.ErrEmptyImage
	}
	if strings.TrimSpace(prompt) == "" {
		return "", domain.ErrBlankPrompt
	}
	raw, err := base64.StdEncoding.DecodeString(encodedImage)
	if err != nil {
		return "", fmt.Errorf("decode source image: %w", err)
	}
	if mimeType == "" {
		mimeType = domain.DefaultMimeType
	}

	contents := []*genaisdk.Content{
		genaisdk.NewContentFromParts([]*genaisdk.Part{
			genaisdk.NewPartFromBytes(raw, mimeType),
			genaisdk.NewPartFromText(prompt),
		}, genaisdk.RoleUser),
	}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("model", c.model).
			Dur("duration", time.Since(start)).
			Msg("genai: edit request failed")
		return "", transportError(err)
	}

	result, err := extractImage(resp)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("model", c.model).
			Msg("genai: response carried no image")
		return "", err
	}

	c.logger.Debug().
		Str("model", c.model).
		Int("source_bytes", len(raw)).
		Int("result_bytes", len(result)).
		Dur("duration", time.Since(start)).
		Msg("genai: edited image")

	return base64.StdEncoding.EncodeToString(result), nil
}

// extractImage applies the response rules: no parts, then first inline image,
// then first text part as a refusal, then nothing usable.
func extractImage(resp *genaisdk.GenerateContentResponse) ([]byte, error) {
	parts := firstCandidateParts(resp)
	if len(parts) == 0 {
		return nil, domain.ErrNoContent
	}

	for _, part := range parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data, nil
		}
	}

	for _, part := range parts {
		if part != nil && part.Text != "" {
			return nil, &RefusalError{Text: part.Text}
		}
	}

	return nil, domain.ErrNoImageData
}

func firstCandidateParts(resp *genaisdk.GenerateContentResponse) []*genaisdk.Part {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return nil
	}
	return candidate.Content.Parts
}

func transportError(err error) error {
	if err == nil || strings.TrimSpace(err.Error()) == "" {
		return domain.ErrEditFailed
	}
	return err
}
