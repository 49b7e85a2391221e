package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/mgpai22/recut/internal/audio"
	"github.com/mgpai22/recut/internal/logging"
	"github.com/mgpai22/recut/internal/timeline"
)

// transcribes with Google Gemini, which also labels speakers
type GeminiTranscriber struct {
	client  *genai.Client
	model   string
	options Options
	logger  *logging.Logger
}

// segment from Gemini's JSON response
type transcriptSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker"`
}

func NewGeminiTranscriber(ctx context.Context, opts Options) (*GeminiTranscriber, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: opts.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &GeminiTranscriber{
		client:  client,
		model:   model,
		options: opts,
		logger:  logging.OrNop(opts.Logger).Named("gemini"),
	}, nil
}

// transcribes single audio file
func (t *GeminiTranscriber) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	uploadedFile, err := t.client.Files.UploadFromPath(ctx, audioPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upload audio file: %w", err)
	}
	defer func() {
		if _, err := t.client.Files.Delete(context.WithoutCancel(ctx), uploadedFile.Name, nil); err != nil {
			t.logger.Warnw("failed to delete uploaded file", "name", uploadedFile.Name, "error", err)
		}
	}()

	parts := []*genai.Part{
		genai.NewPartFromText(t.buildTranscriptionPrompt()),
		genai.NewPartFromURI(uploadedFile.URI, uploadedFile.MIMEType),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	resp, err := t.client.Models.GenerateContent(ctx, t.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	segments, err := parseTranscriptionResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transcription: %w", err)
	}

	duration, err := audio.GetDuration(audioPath)
	if err != nil {
		t.logger.Debugw("duration unavailable", "path", audioPath, "error", err)
	}

	return &Result{
		Segments: segments,
		Language: t.options.Language,
		Duration: duration,
	}, nil
}

// creates the prompt for transcription
func (t *GeminiTranscriber) buildTranscriptionPrompt() string {
	var sb strings.Builder

	sb.WriteString("Generate a detailed transcript of this audio. ")
	sb.WriteString("For each sentence or phrase, provide the start timestamp, end timestamp, the speaker and the exact text spoken. ")
	sb.WriteString("Format your response as a JSON array with objects containing 'start', 'end', 'speaker' and 'text' fields, ")
	sb.WriteString("where 'start' and 'end' are timestamps in seconds (as numbers) ")
	sb.WriteString("and 'speaker' is a zero-based label like SPEAKER_00 that stays the same for the same voice. ")

	if t.options.Language != "" {
		sb.WriteString(fmt.Sprintf("The audio is in %s. ", t.options.Language))
	}

	if t.options.Prompt != "" {
		sb.WriteString(t.options.Prompt)
		sb.WriteString(" ")
	}

	sb.WriteString("Return ONLY the JSON array, no other text or markdown formatting.")

	return sb.String()
}

// parses Gemini's response into untimed segments; timestamps from the model
// are only phrase-accurate, so words are not split out
func parseTranscriptionResponse(resp *genai.GenerateContentResponse) ([]timeline.Segment, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	var responseText string
	for _, candidate := range resp.Candidates {
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					responseText += part.Text
				}
			}
		}
	}

	if responseText == "" {
		return nil, fmt.Errorf("no text in Gemini response")
	}

	transcriptSegments, err := extractTranscriptSegments(cleanJSONResponse(responseText))
	if err != nil {
		return nil, err
	}

	segments := make([]timeline.Segment, 0, len(transcriptSegments))
	for _, ts := range transcriptSegments {
		text := strings.TrimSpace(ts.Text)
		if text == "" || ts.End <= ts.Start {
			continue
		}
		segments = append(segments, timeline.Segment{
			Speaker: normalizeSpeaker(ts.Speaker),
			Start:   timeline.FromSeconds(ts.Start),
			End:     timeline.FromSeconds(ts.End),
			Content: timeline.UntimedText(text),
		})
	}
	if len(segments) == 0 {
		return nil, ErrEmptyTranscript
	}
	return segments, nil
}

var speakerNumber = regexp.MustCompile(`(\d+)\s*$`)

// maps labels such as "Speaker 2" or "speaker_1" onto SPEAKER_NN
func normalizeSpeaker(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return ""
	}
	m := speakerNumber.FindStringSubmatch(label)
	if m == nil {
		return label
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return label
	}
	if !strings.HasPrefix(strings.ToUpper(label), "SPEAKER_") && n > 0 {
		// spoken-style labels count from one
		n--
	}
	return fmt.Sprintf("SPEAKER_%02d", n)
}

// extractTranscriptSegments finds the first JSON array of segments in the
// model output, tolerating prose around it and wrapper objects.
func extractTranscriptSegments(s string) ([]transcriptSegment, error) {
	for i := 0; i < len(s); i++ {
		if s[i] != '[' && s[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			continue
		}
		if segs, ok := segmentsFrom(raw); ok {
			return segs, nil
		}
		i += int(dec.InputOffset()) - 1
	}
	return nil, fmt.Errorf("no transcript segments in response: %s", truncateString(s, 200))
}

func segmentsFrom(raw json.RawMessage) ([]transcriptSegment, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false
	}
	switch trimmed[0] {
	case '[':
		var segs []transcriptSegment
		if err := json.Unmarshal(trimmed, &segs); err != nil || !validateSegments(segs) {
			return nil, false
		}
		return segs, true
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, false
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if segs, ok := segmentsFrom(obj[k]); ok {
				return segs, true
			}
		}
	}
	return nil, false
}

// at least one segment must carry text or timing
func validateSegments(segs []transcriptSegment) bool {
	for _, s := range segs {
		if s.Text != "" || s.Start != 0 || s.End != 0 {
			return true
		}
	}
	return false
}

var jsonBlockRegex = regexp.MustCompile("```(?:json)?\\s*")

// removes markdown formatting from the response
func cleanJSONResponse(s string) string {
	s = strings.TrimSpace(s)
	s = jsonBlockRegex.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
