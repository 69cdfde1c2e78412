package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/lexatlas/toc-extractor/internal/config"
	"github.com/lexatlas/toc-extractor/internal/domain"
	"github.com/lexatlas/toc-extractor/internal/observability"
)

// maxCompletionTokens bounds the reply; long TOCs run to hundreds of entries.
const maxCompletionTokens = 20000

// ErrAPIKeyNotSet indicates no OpenAI API key was found in the environment or
// configuration file.
var ErrAPIKeyNotSet = errors.New("OPENAI_API_KEY is not set")

// Gateway turns rasterized pages into a structured extraction result.
type Gateway interface {
	ExtractTOC(ctx context.Context, pages []domain.PageImage) (*domain.ExtractionResult, error)
}

// Client is the OpenAI-backed Gateway.
type Client struct {
	cfg    config.OpenAIConfig
	logger *observability.Logger
	retry  *RetryConfig

	once    sync.Once
	api     openai.Client
	initErr error
}

// NewClient creates a gateway client. The underlying SDK client is not built
// until the first extraction, so a service without credentials can still start
// and serve everything that does not reach the model.
func NewClient(cfg config.OpenAIConfig, logger *observability.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger.WithOperation("llm"),
		retry:  DefaultRetryConfig(),
	}
}

// ensureClient initializes the SDK client exactly once. A missing key is a
// configuration error, distinguishable from transient API failures.
func (c *Client) ensureClient() error {
	c.once.Do(func() {
		if c.cfg.APIKey == "" {
			c.initErr = domain.ConfigError("OPENAI_API_KEY is not set in environment variables or .env file", ErrAPIKeyNotSet)
			return
		}
		c.api = openai.NewClient(option.WithAPIKey(c.cfg.APIKey))
	})
	return c.initErr
}

// ExtractTOC sends all page images in a single request and decodes the JSON
// reply. Keeping the pages together lets the model merge entries and section
// headers that span page boundaries.
//
// Call and parse failures are reported inside the returned result (Error set,
// arrays empty) so callers can persist and surface them. Only the
// missing-credential case is returned as an error.
func (c *Client) ExtractTOC(ctx context.Context, pages []domain.PageImage) (*domain.ExtractionResult, error) {
	if len(pages) == 0 {
		return domain.NewExtractionResult(), nil
	}

	if err := c.ensureClient(); err != nil {
		return nil, err
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(pages)+1)
	parts = append(parts, openai.TextContentPart(instructionPrompt))
	for _, page := range pages {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL:    pageDataURL(page),
			Detail: "high",
		}))
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(parts),
		},
		MaxTokens: openai.Int(maxCompletionTokens),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		},
	}

	c.logger.Info().
		Int("pages", len(pages)).
		Str("model", c.cfg.Model).
		Msg("sending PDF pages for TOC extraction")

	completion, err := c.callWithRetry(ctx, func() (*openai.ChatCompletion, error) {
		return c.api.Chat.Completions.New(ctx, params)
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("OpenAI API call failed")
		return domain.FailedExtractionResult(fmt.Sprintf("OpenAI API call failed: %v", err), ""), nil
	}
	if len(completion.Choices) == 0 {
		return domain.FailedExtractionResult("OpenAI returned no completion choices", ""), nil
	}

	content := completion.Choices[0].Message.Content
	if err := ValidateReply(content); err != nil {
		c.logger.Warn().Err(err).Msg("model reply deviates from TOC schema, salvaging fields")
	}

	result := DecodeResult(content)
	c.logger.Info().
		Int("toc_entries", len(result.TOCEntries)).
		Int("section_headers", len(result.SectionHeaders)).
		Bool("error", result.Error).
		Int64("tokens_used", completion.Usage.TotalTokens).
		Msg("TOC extraction completed")

	return result, nil
}

func pageDataURL(page domain.PageImage) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(page.PNG)
}
