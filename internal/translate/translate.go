// Package translate rewrites caption text into another language with an LLM,
// a batch of captions per request.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mgpai22/recut/internal/logging"
	"github.com/mgpai22/recut/internal/subtitle"
)

const (
	DefaultBatchSize   = 50
	DefaultConcurrency = 3
)

var ErrNoTarget = errors.New("target language is required")

// one caption; Index ties a reply back to its request
type Item struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
)

type Options struct {
	APIKey string
	// empty lets the model detect it
	SourceLanguage string
	TargetLanguage string
	Model          string
	Prompt         string
	BatchSize      int
	Concurrency    int
	Logger         *logging.Logger
}

// completer sends one prompt to a model and returns its text reply.
type completer interface {
	complete(ctx context.Context, prompt string) (string, error)
}

// Translator batches items into prompts for one provider.
type Translator struct {
	backend completer
	opts    Options
	logger  *logging.Logger
}

// New creates a translator for provider.
func New(ctx context.Context, provider Provider, opts Options) (*Translator, error) {
	if opts.TargetLanguage == "" {
		return nil, ErrNoTarget
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("API key is required for %s", provider)
	}

	var backend completer
	var err error
	switch provider {
	case ProviderOpenAI:
		backend = newOpenAI(opts)
	case ProviderGemini:
		backend, err = newGemini(ctx, opts)
	case ProviderAnthropic:
		backend = newAnthropic(opts)
	default:
		return nil, fmt.Errorf("unsupported translation provider: %s", provider)
	}
	if err != nil {
		return nil, err
	}
	return newTranslator(backend, opts), nil
}

func newTranslator(backend completer, opts Options) *Translator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Translator{backend: backend, opts: opts, logger: logging.OrNop(opts.Logger)}
}

// Translate returns one translated item per input, in input order. Batches
// run concurrently; the first failure cancels the rest.
func (t *Translator) Translate(ctx context.Context, items []Item) ([]Item, error) {
	if len(items) == 0 {
		return []Item{}, nil
	}

	var batches [][]Item
	for i := 0; i < len(items); i += t.opts.BatchSize {
		batches = append(batches, items[i:min(i+t.opts.BatchSize, len(items))])
	}

	results := make([][]Item, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.Concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			t.logger.Debugw("translating batch", "batch", i, "items", len(batch))
			out, err := t.batch(gctx, batch)
			if err != nil {
				return fmt.Errorf("batch %d failed: %w", i, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Item, 0, len(items))
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// batch sends one prompt and lines the reply up with the request, keeping
// the original text of any caption the model skipped.
func (t *Translator) batch(ctx context.Context, items []Item) ([]Item, error) {
	reply, err := t.backend.complete(ctx, buildPrompt(t.opts, items))
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}
	reply = cleanJSONResponse(reply)
	got, err := extractItems(reply)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to parse JSON response: %w (response: %s)",
			err,
			truncateString(reply, 200),
		)
	}
	if len(got) != len(items) {
		t.logger.Warnw("translation count mismatch", "expected", len(items), "got", len(got))
	}

	byIndex := make(map[int]string, len(got))
	for _, it := range got {
		byIndex[it.Index] = it.Text
	}
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it
		if text, ok := byIndex[it.Index]; ok && strings.TrimSpace(text) != "" {
			out[i].Text = text
		}
	}
	return out, nil
}

// Subtitle translates every entry's text in place.
func (t *Translator) Subtitle(ctx context.Context, sub *subtitle.Subtitle) error {
	items := make([]Item, len(sub.Entries))
	for i, e := range sub.Entries {
		items[i] = Item{Index: i, Text: strings.ReplaceAll(e.Text, "\n", `\N`)}
	}
	out, err := t.Translate(ctx, items)
	if err != nil {
		return err
	}
	for i, it := range out {
		sub.Entries[i].Text = strings.ReplaceAll(it.Text, `\N`, "\n")
	}
	sub.Language = t.opts.TargetLanguage
	return nil
}

func buildPrompt(opts Options, items []Item) string {
	var sb strings.Builder

	if opts.SourceLanguage != "" {
		fmt.Fprintf(&sb, "Translate the following %s captions to %s.\n\n", opts.SourceLanguage, opts.TargetLanguage)
	} else {
		fmt.Fprintf(&sb, "Translate the following captions to %s.\n\n", opts.TargetLanguage)
	}

	sb.WriteString("IMPORTANT INSTRUCTIONS:\n")
	sb.WriteString("1. Translate ONLY the text content, preserving the meaning.\n")
	sb.WriteString("2. Keep a leading speaker label such as \"Alice:\" unchanged.\n")
	sb.WriteString("3. Preserve line breaks (\\N) in the same positions.\n")
	sb.WriteString("4. Return ONLY a JSON array of objects with 'index' and 'text' fields.\n")
	sb.WriteString("5. The 'index' values must match the input indices exactly.\n")
	sb.WriteString("6. Do not add any explanation or markdown formatting.\n\n")

	if opts.Prompt != "" {
		fmt.Fprintf(&sb, "Additional instructions: %s\n\n", opts.Prompt)
	}

	sb.WriteString("Input JSON:\n")
	input, _ := json.MarshalIndent(items, "", "  ")
	sb.Write(input)
	sb.WriteString("\n\nOutput the translated JSON array only:")
	return sb.String()
}
