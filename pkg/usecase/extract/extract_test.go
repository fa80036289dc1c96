package extract_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kyohei-s/oboegaki/pkg/model"
	"github.com/kyohei-s/oboegaki/pkg/usecase/extract"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

type mockGemini struct {
	generateFunc func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, contents, config)
	}
	return nil, errors.New("not implemented")
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{{Text: text}},
				},
			},
		},
	}
}

func TestTranscript(t *testing.T) {
	ts1 := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	ts2 := time.Date(2024, 5, 1, 9, 31, 0, 0, time.UTC)

	batch := []*model.Message{
		{Timestamp: ts1, Sender: "111@s.whatsapp.net", GroupID: "g1@g.us", GroupName: "Family", Text: "pay the electricity bill"},
		{Timestamp: ts2, Sender: "222@s.whatsapp.net", GroupID: "g1@g.us", Text: "will do"},
	}

	got := extract.Transcript(batch)
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	gt.A(t, lines).Length(2)
	gt.Equal(t, lines[0], "[2024-05-01T09:30:00Z] [Group: Family] [Sender: 111@s.whatsapp.net]: pay the electricity bill")
	// Group name falls back to the group ID
	gt.Equal(t, lines[1], "[2024-05-01T09:31:00Z] [Group: g1@g.us] [Sender: 222@s.whatsapp.net]: will do")
	gt.True(t, strings.HasSuffix(got, "\n"))
}

func TestTranscriptEmpty(t *testing.T) {
	gt.Equal(t, extract.Transcript(nil), "")
}

func TestExtract(t *testing.T) {
	var gotConfig *genai.GenerateContentConfig
	var gotPrompt string

	mock := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotConfig = config
			gotPrompt = contents[0].Parts[0].Text
			return textResponse(`[{"title":"Submit report","description":"monthly report for Alex","due_date":"2024-05-10"}]`), nil
		},
	}

	x := extract.New(mock)
	refDate := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	candidates, err := x.Extract(context.Background(), "some transcript", refDate)
	gt.NoError(t, err)
	gt.A(t, candidates).Length(1)
	gt.Equal(t, candidates[0].Title, "Submit report")
	gt.Equal(t, candidates[0].DueDate, "2024-05-10")

	gt.Equal(t, gotConfig.ResponseMIMEType, "application/json")
	gt.Equal(t, gotConfig.ResponseSchema.Type, genai.TypeArray)
	gt.S(t, gotPrompt).Contains("some transcript")
	gt.S(t, gotPrompt).Contains("2024-05-02")
}

func TestExtractEmptyPayloads(t *testing.T) {
	for _, payload := range []string{"", "null", "[]", "not json at all", `{"title":"object not array"}`} {
		t.Run(payload, func(t *testing.T) {
			mock := &mockGemini{
				generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
					return textResponse(payload), nil
				},
			}

			candidates, err := extract.New(mock).Extract(context.Background(), "transcript", time.Now())
			gt.NoError(t, err)
			gt.A(t, candidates).Length(0)
		})
	}
}

func TestExtractNoCandidatesInResponse(t *testing.T) {
	mock := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return &genai.GenerateContentResponse{}, nil
		},
	}

	candidates, err := extract.New(mock).Extract(context.Background(), "transcript", time.Now())
	gt.NoError(t, err)
	gt.A(t, candidates).Length(0)
}

func TestExtractTransportError(t *testing.T) {
	mock := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return nil, errors.New("quota exceeded")
		},
	}

	_, err := extract.New(mock).Extract(context.Background(), "transcript", time.Now())
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("quota exceeded")
}
