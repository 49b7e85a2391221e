package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mgpai22/recut/internal/subtitle"
)

// fakeBackend echoes each prompt's items back, upper-cased.
type fakeBackend struct {
	mu      sync.Mutex
	prompts []string
	reply   func(items []Item) string
	err     error
}

func (f *fakeBackend) complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}

	start := strings.Index(prompt, "Input JSON:\n") + len("Input JSON:\n")
	end := strings.Index(prompt, "\n\nOutput the translated")
	var items []Item
	if err := json.Unmarshal([]byte(prompt[start:end]), &items); err != nil {
		return "", err
	}
	if f.reply != nil {
		return f.reply(items), nil
	}
	for i := range items {
		items[i].Text = strings.ToUpper(items[i].Text)
	}
	data, _ := json.Marshal(items)
	return "```json\n" + string(data) + "\n```", nil
}

func TestExtractItems(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCount int
		wantErr   bool
	}{
		{
			name:      "plain valid array",
			input:     `[{"index": 0, "text": "こんにちは"}, {"index": 1, "text": "さようなら"}]`,
			wantCount: 2,
		},
		{
			name: "preamble with valid array",
			input: `Here is the translation:
			[{"index": 0, "text": "Bonjour"}, {"index": 1, "text": "Au revoir"}]`,
			wantCount: 2,
		},
		{
			name: "valid array with trailing text",
			input: `[{"index": 0, "text": "Hola"}]
			I hope this helps!`,
			wantCount: 1,
		},
		{
			name:      "wrapper object with results key",
			input:     `{"results": [{"index": 0, "text": "Translated"}]}`,
			wantCount: 1,
		},
		{
			name:      "wrapper object with translations key",
			input:     `{"translations": [{"index": 0, "text": "Übersetzt"}]}`,
			wantCount: 1,
		},
		{
			name:    "empty array",
			input:   `[]`,
			wantErr: true,
		},
		{
			name:    "no JSON at all",
			input:   `This is just plain text.`,
			wantErr: true,
		},
		{
			name:    "invalid JSON",
			input:   `[{"index": 0, "text": "incomplete"`,
			wantErr: true,
		},
		{
			name:    "array with empty text",
			input:   `[{"index": 0, "text": ""}]`,
			wantErr: true,
		},
		{
			name:      "caption line break escape in text",
			input:     `[{"index": 0, "text": "That's why they are fuming...\Nthese two."}]`,
			wantCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := extractItems(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(items) != tt.wantCount {
				t.Errorf("got %d items, want %d", len(items), tt.wantCount)
			}
		})
	}
}

func TestFixInvalidEscapesKeepsLineBreakLiteral(t *testing.T) {
	items, err := extractItems(`[{"index": 0, "text": "one\Ntwo"}]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items[0].Text != `one\Ntwo` {
		t.Errorf("text = %q, want %q", items[0].Text, `one\Ntwo`)
	}
}

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"```json\n[1]\n```", "[1]"},
		{"```\n[1]\n```", "[1]"},
		{"  [1]  ", "[1]"},
	}
	for _, tt := range tests {
		if got := cleanJSONResponse(tt.input); got != tt.want {
			t.Errorf("cleanJSONResponse(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt(Options{
		SourceLanguage: "English",
		TargetLanguage: "Spanish",
		Prompt:         "Use informal tone",
	}, []Item{{Index: 0, Text: "Hello"}})

	for _, want := range []string{"English captions to Spanish", "Use informal tone", `"text": "Hello"`} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	prompt = buildPrompt(Options{TargetLanguage: "French"}, nil)
	if !strings.Contains(prompt, "following captions to French") {
		t.Error("prompt without source language should name only the target")
	}
}

func TestTranslateBatchesInOrder(t *testing.T) {
	backend := &fakeBackend{}
	tr := newTranslator(backend, Options{TargetLanguage: "upper", BatchSize: 2, Concurrency: 2})

	var items []Item
	for i := range 5 {
		items = append(items, Item{Index: i, Text: fmt.Sprintf("line %d", i)})
	}
	out, err := tr.Translate(context.Background(), items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backend.prompts) != 3 {
		t.Errorf("got %d requests, want 3", len(backend.prompts))
	}
	if len(out) != 5 {
		t.Fatalf("got %d items, want 5", len(out))
	}
	for i, it := range out {
		if it.Index != i || it.Text != fmt.Sprintf("LINE %d", i) {
			t.Errorf("item %d = %+v", i, it)
		}
	}
}

func TestTranslateKeepsSkippedCaptions(t *testing.T) {
	backend := &fakeBackend{reply: func(items []Item) string {
		return `[{"index": 1, "text": "deux"}]`
	}}
	tr := newTranslator(backend, Options{TargetLanguage: "fr"})

	out, err := tr.Translate(context.Background(), []Item{{0, "one"}, {1, "two"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Text != "one" || out[1].Text != "deux" {
		t.Errorf("got %+v", out)
	}
}

func TestTranslateFailure(t *testing.T) {
	backend := &fakeBackend{err: errors.New("quota")}
	tr := newTranslator(backend, Options{TargetLanguage: "fr"})

	if _, err := tr.Translate(context.Background(), []Item{{0, "one"}}); err == nil {
		t.Fatal("expected error")
	}
}

func TestTranslateEmpty(t *testing.T) {
	tr := newTranslator(&fakeBackend{}, Options{TargetLanguage: "fr"})
	out, err := tr.Translate(context.Background(), nil)
	if err != nil || len(out) != 0 {
		t.Errorf("got %v, %v", out, err)
	}
}

func TestSubtitleKeepsLineBreaks(t *testing.T) {
	tr := newTranslator(&fakeBackend{}, Options{TargetLanguage: "upper"})
	sub := &subtitle.Subtitle{Entries: []subtitle.Entry{
		{Index: 1, StartTime: 0, EndTime: time.Second, Text: "first line\nsecond line"},
	}}

	if err := tr.Subtitle(context.Background(), sub); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.Entries[0].Text != "FIRST LINE\nSECOND LINE" {
		t.Errorf("text = %q", sub.Entries[0].Text)
	}
	if sub.Language != "upper" {
		t.Errorf("language = %q", sub.Language)
	}
}

func TestNewValidatesOptions(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, ProviderOpenAI, Options{APIKey: "k"}); !errors.Is(err, ErrNoTarget) {
		t.Errorf("missing target: got %v", err)
	}
	if _, err := New(ctx, ProviderAnthropic, Options{TargetLanguage: "fr"}); err == nil {
		t.Error("missing key should fail")
	}
	if _, err := New(ctx, "deepl", Options{APIKey: "k", TargetLanguage: "fr"}); err == nil {
		t.Error("unknown provider should fail")
	}
	tr, err := New(ctx, ProviderAnthropic, Options{APIKey: "k", TargetLanguage: "fr"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := tr.backend.(*anthropicBackend); !ok {
		t.Errorf("backend = %T, want *anthropicBackend", tr.backend)
	}
}
