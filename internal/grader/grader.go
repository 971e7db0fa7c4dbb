// Package grader wraps an OpenAI-compatible evaluation service behind a
// narrow request/response contract. It performs no retries; callers own
// the retry policy.
package grader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mkarlsen/classpilot/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// Typed failure kinds. Every error returned by the client wraps one of these.
var (
	// ErrServiceUnavailable covers transport and API failures.
	ErrServiceUnavailable = errors.New("evaluation service unavailable")
	// ErrMalformedResponse covers non-JSON bodies, out-of-range scores,
	// and error types outside the enumeration.
	ErrMalformedResponse = errors.New("malformed evaluation response")
)

// Config carries the service endpoint and model, passed in at construction.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

// GradeRequest is the contract for grading one answer.
type GradeRequest struct {
	QuestionText string
	AnswerText   string
	GradingRules string
}

// GradeResult is the structured outcome of grading one answer.
// Score is on a fixed 0-10 scale.
type GradeResult struct {
	Score     int
	Feedback  string
	ErrorType model.ErrorType
}

// AnswerSummary is one per-answer triple fed into summarization.
type AnswerSummary struct {
	Question  string
	Feedback  string
	ErrorType model.ErrorType
}

// GeneratedTopic is one schedule entry produced from a syllabus.
type GeneratedTopic struct {
	Name        string
	Description string
	DueDate     time.Time
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new evaluation service client.
func New(cfg Config) *Client {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: cfg.Model,
	}
}

// Ping verifies the endpoint is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	return nil
}

// GradeAnswer grades a single free-text answer against its question and
// the exam's grading instructions. A single attempt, no retries.
func (c *Client) GradeAnswer(ctx context.Context, req GradeRequest) (*GradeResult, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildGradeSystemPrompt(req)},
			{Role: openai.ChatMessageRoleUser, Content: req.AnswerText},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("grading response", "raw", raw)

	return parseGradeResult(raw)
}

// Summarize produces overall feedback for one submission from its
// per-answer results and computed overall score.
func (c *Client) Summarize(ctx context.Context, perAnswer []AnswerSummary, overallScore float64) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildSummaryPrompt(perAnswer, overallScore)},
		},
		Temperature: 0.4,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return "", fmt.Errorf("%w: empty summary", ErrMalformedResponse)
	}
	return summary, nil
}

// GenerateQuestions produces n exam questions for a course topic.
func (c *Client) GenerateQuestions(ctx context.Context, courseName, topicName string, n int) ([]string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildQuestionGenPrompt(courseName, topicName, n)},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}

	raw := stripFences(resp.Choices[0].Message.Content)
	var questions []string
	if err := json.Unmarshal([]byte(raw), &questions); err != nil {
		return nil, fmt.Errorf("%w: parse questions: %v", ErrMalformedResponse, err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: empty question list", ErrMalformedResponse)
	}
	return questions, nil
}

// GenerateSchedule breaks syllabus text into sequential course topics
// with due dates starting from the given date.
func (c *Client) GenerateSchedule(ctx context.Context, syllabus string, start time.Time) ([]GeneratedTopic, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildSchedulePrompt(start)},
			{Role: openai.ChatMessageRoleUser, Content: syllabus},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}

	return parseSchedule(resp.Choices[0].Message.Content)
}

type gradeResponse struct {
	Score     int    `json:"score"`
	Feedback  string `json:"feedback"`
	ErrorType string `json:"error_type"`
}

func parseGradeResult(raw string) (*GradeResult, error) {
	var wire gradeResponse
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v (raw: %s)", ErrMalformedResponse, err, raw)
	}
	if wire.Score < 0 || wire.Score > 10 {
		return nil, fmt.Errorf("%w: score %d out of range", ErrMalformedResponse, wire.Score)
	}
	if !model.ValidErrorType(wire.ErrorType) {
		return nil, fmt.Errorf("%w: unknown error type %q", ErrMalformedResponse, wire.ErrorType)
	}
	return &GradeResult{
		Score:     wire.Score,
		Feedback:  wire.Feedback,
		ErrorType: model.ErrorType(wire.ErrorType),
	}, nil
}

type scheduleItem struct {
	TopicName        string `json:"topic_name"`
	TopicDescription string `json:"topic_description"`
	EndDate          string `json:"end_date"`
}

func parseSchedule(raw string) ([]GeneratedTopic, error) {
	raw = stripFences(raw)
	var items []scheduleItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("%w: parse schedule: %v", ErrMalformedResponse, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty schedule", ErrMalformedResponse)
	}

	var topics []GeneratedTopic
	for _, it := range items {
		due, err := time.Parse(time.DateOnly, it.EndDate)
		if err != nil {
			return nil, fmt.Errorf("%w: bad end_date %q: %v", ErrMalformedResponse, it.EndDate, err)
		}
		if it.TopicName == "" {
			return nil, fmt.Errorf("%w: schedule item missing topic_name", ErrMalformedResponse)
		}
		topics = append(topics, GeneratedTopic{
			Name:        it.TopicName,
			Description: it.TopicDescription,
			DueDate:     due,
		})
	}
	return topics, nil
}

// stripFences removes a markdown code fence wrapper if the model added one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}
