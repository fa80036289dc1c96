package extract

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"strings"
	"text/template"
	"time"

	"github.com/kyohei-s/oboegaki/pkg/adapter"
	"github.com/kyohei-s/oboegaki/pkg/model"
	"github.com/kyohei-s/oboegaki/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

//go:embed prompt/extract.md
var extractPromptRaw string

var extractPromptTmpl = template.Must(template.New("extract").Parse(extractPromptRaw))

// Transcript renders a batch of messages into the one-line-per-message text
// block fed to the model. Embedded newlines in message text are passed
// through untouched; the model copes with multi-line entries.
func Transcript(batch []*model.Message) string {
	var sb strings.Builder
	for _, msg := range batch {
		sb.WriteString("[")
		sb.WriteString(msg.Timestamp.Format(time.RFC3339))
		sb.WriteString("] [Group: ")
		sb.WriteString(msg.GroupLabel())
		sb.WriteString("] [Sender: ")
		sb.WriteString(msg.Sender)
		sb.WriteString("]: ")
		sb.WriteString(msg.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Extractor turns a transcript into candidate reminders via one structured
// Gemini call. It never retries; transport failures surface to the caller.
type Extractor struct {
	gemini adapter.Gemini
}

func New(gemini adapter.Gemini) *Extractor {
	return &Extractor{gemini: gemini}
}

var candidateSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title": {
				Type:        genai.TypeString,
				Description: "Short imperative name of the task",
			},
			"description": {
				Type:        genai.TypeString,
				Description: "Context from the conversation, empty if none",
			},
			"due_date": {
				Type:        genai.TypeString,
				Description: "ISO calendar date (YYYY-MM-DD), omit when unknown",
			},
		},
		Required: []string{"title", "description"},
	},
}

// Extract asks the model for reminders mentioned in the transcript. The
// reference date anchors relative-date inference. A null, empty, or
// non-array payload yields zero candidates and no error.
func (x *Extractor) Extract(ctx context.Context, transcript string, refDate time.Time) ([]*model.Candidate, error) {
	var buf bytes.Buffer
	if err := extractPromptTmpl.Execute(&buf, map[string]any{
		"Date":       refDate.Format("2006-01-02"),
		"Transcript": transcript,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute extract prompt template")
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   candidateSchema,
	}

	contents := []*genai.Content{
		genai.NewContentFromText(buf.String(), genai.RoleUser),
	}

	resp, err := x.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to extract reminders")
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		logging.From(ctx).Warn("empty response from gemini, treating as no reminders")
		return nil, nil
	}

	rawJSON := strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text)
	if rawJSON == "" || rawJSON == "null" {
		return nil, nil
	}

	var candidates []*model.Candidate
	if err := json.Unmarshal([]byte(rawJSON), &candidates); err != nil {
		// Non-array payloads count as "nothing actionable" rather than
		// a cycle failure
		logging.From(ctx).Warn("malformed extraction payload, treating as no reminders",
			"error", err, "payload", rawJSON)
		return nil, nil
	}

	return candidates, nil
}
