package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

type openAIBackend struct {
	client openai.Client
	model  string
}

func newOpenAI(opts Options) *openAIBackend {
	model := opts.Model
	if model == "" {
		model = "gpt-5-mini"
	}
	return &openAIBackend{
		client: openai.NewClient(openaioption.WithAPIKey(opts.APIKey)),
		model:  model,
	}
}

func (b *openAIBackend) complete(ctx context.Context, prompt string) (string, error) {
	completion, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: b.model,
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", errors.New("no text in OpenAI response")
	}
	return completion.Choices[0].Message.Content, nil
}

type geminiBackend struct {
	client *genai.Client
	model  string
}

func newGemini(ctx context.Context, opts Options) (*geminiBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: opts.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &geminiBackend{client: client, model: model}, nil
}

func (b *geminiBackend) complete(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser),
	}
	resp, err := b.client.Models.GenerateContent(ctx, b.model, contents, nil)
	if err != nil {
		return "", err
	}
	if text := resp.Text(); text != "" {
		return text, nil
	}
	return "", errors.New("no text in Gemini response")
}

type anthropicBackend struct {
	client anthropic.Client
	model  anthropic.Model
}

func newAnthropic(opts Options) *anthropicBackend {
	model := anthropic.Model(opts.Model)
	if opts.Model == "" {
		model = anthropic.ModelClaudeHaiku4_5
	}
	return &anthropicBackend{
		client: anthropic.NewClient(anthropicoption.WithAPIKey(opts.APIKey)),
		model:  model,
	}
}

func (b *anthropicBackend) complete(ctx context.Context, prompt string) (string, error) {
	msg, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     b.model,
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("no text in Anthropic response")
	}
	return sb.String(), nil
}
