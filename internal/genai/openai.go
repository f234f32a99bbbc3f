package genai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultTextModel  = "gpt-4o-mini"
	DefaultImageModel = "dall-e-3"
	DefaultImageSize  = "1024x1024"
)

// OpenAIConfig configures the OpenAI-compatible backend.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	TextModel  string
	ImageModel string
	HTTPClient *http.Client
}

type OpenAI struct {
	client     openai.Client
	textModel  string
	imageModel string
}

// NewOpenAI builds a backend on the official SDK. SDK-level retries are
// disabled; wrap the result in Retrying instead.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSpace(cfg.BaseURL)))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	o := &OpenAI{
		client:     openai.NewClient(opts...),
		textModel:  strings.TrimSpace(cfg.TextModel),
		imageModel: strings.TrimSpace(cfg.ImageModel),
	}
	if o.textModel == "" {
		o.textModel = DefaultTextModel
	}
	if o.imageModel == "" {
		o.imageModel = DefaultImageModel
	}
	return o
}

func (o *OpenAI) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("complete: no messages")
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.textModel),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
	}
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("chat completion: empty content")
	}
	return text, nil
}

func (o *OpenAI) Image(ctx context.Context, prompt string, size string) (ImageRef, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ImageRef{}, fmt.Errorf("image: empty prompt")
	}
	if size == "" {
		size = DefaultImageSize
	}
	resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  openai.ImageModel(o.imageModel),
		Size:   openai.ImageGenerateParamsSize(size),
		N:      openai.Int(1),
	})
	if err != nil {
		return ImageRef{}, fmt.Errorf("image generation: %w", err)
	}
	if len(resp.Data) == 0 {
		return ImageRef{}, fmt.Errorf("image generation: empty data")
	}
	img := resp.Data[0]
	if img.URL != "" {
		return ImageRef{URL: img.URL}, nil
	}
	if img.B64JSON != "" {
		b, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return ImageRef{}, fmt.Errorf("image generation: decode b64: %w", err)
		}
		return ImageRef{Data: b}, nil
	}
	return ImageRef{}, fmt.Errorf("image generation: no url or data")
}
