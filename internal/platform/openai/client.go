package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/yungbote/speech-to-contract/internal/platform/logger"
)

// Client is the OpenAI API surface the collaborators use.
type Client interface {
	// GenerateJSON asks for a single JSON object and decodes it.
	GenerateJSON(ctx context.Context, system string, user string) (map[string]any, error)
	GenerateText(ctx context.Context, system string, user string) (string, error)
	// Transcribe sends audio to the speech-to-text model and returns its text.
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	TranscribeModel string
	Language        string
	Temperature     float64
	MaxRetries      int
	RequestTimeout  time.Duration
}

type client struct {
	log             *logger.Logger
	api             openai.Client
	model           string
	transcribeModel string
	language        string
	temperature     float64
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.ChatModelGPT4o)
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = string(openai.AudioModelWhisper1)
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.RequestTimeout))
	}
	l := log.With("client", "OpenAIClient")
	l.Info("OpenAI client initialized", "model", cfg.Model, "transcribe_model", cfg.TranscribeModel, "base_url", cfg.BaseURL)
	return &client{
		log:             l,
		api:             openai.NewClient(opts...),
		model:           cfg.Model,
		transcribeModel: cfg.TranscribeModel,
		language:        cfg.Language,
		temperature:     cfg.Temperature,
	}, nil
}

func (c *client) complete(ctx context.Context, system, user string, jsonObject bool) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(c.temperature),
	}
	if jsonObject {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	started := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	c.log.Debug("Chat completion finished",
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	return resp.Choices[0].Message.Content, nil
}

func (c *client) GenerateText(ctx context.Context, system, user string) (string, error) {
	out, err := c.complete(ctx, system, user, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (c *client) GenerateJSON(ctx context.Context, system, user string) (map[string]any, error) {
	out, err := c.complete(ctx, system, user, true)
	if err != nil {
		return nil, err
	}
	return DecodeJSONObject(out)
}

func (c *client) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(audio, filename, ""),
		Model: openai.AudioModel(c.transcribeModel),
	}
	if c.language != "" {
		params.Language = openai.String(c.language)
	}
	resp, err := c.api.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// DecodeJSONObject parses model output that should be one JSON object,
// tolerating a surrounding markdown code fence.
func DecodeJSONObject(raw string) (map[string]any, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode model json: %w", err)
	}
	if out == nil {
		return nil, errors.New("model returned null instead of an object")
	}
	return out, nil
}
