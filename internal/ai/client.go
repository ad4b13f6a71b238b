package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/example/leitner/internal/logger"
)

// Config holds the analysis service configuration
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	TargetLanguage string
	NativeLanguage string
	MaxRetries     int
	Timeout        time.Duration
}

// Client talks to an OpenAI-compatible chat completion endpoint
type Client struct {
	client *openai.Client
	config Config
	log    *logger.Logger
}

// ServiceError means the analysis service could not be reached or refused the request
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("analysis service error: %v", e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ParseError means the service answered with something that is not a usable analysis
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse analysis response: %s", e.Reason)
}

// Candidate is a vocabulary item proposed by the analysis
type Candidate struct {
	Term    string
	Meaning string
}

// Analysis is the structured result for one submitted paragraph
type Analysis struct {
	CorrectedText string
	Translation   string
	Phrases       []Candidate
	Words         []Candidate
}

// Vocabulary returns phrases followed by words
func (a *Analysis) Vocabulary() []Candidate {
	out := make([]Candidate, 0, len(a.Phrases)+len(a.Words))
	out = append(out, a.Phrases...)
	return append(out, a.Words...)
}

// New creates a new analysis client
func New(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.TargetLanguage == "" {
		cfg.TargetLanguage = "Swedish"
	}
	if cfg.NativeLanguage == "" {
		cfg.NativeLanguage = "English"
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
		log:    log,
	}, nil
}

type analysisResponse struct {
	CorrectedParagraph  string `json:"corrected_paragraph"`
	TranslatedParagraph string `json:"translated_paragraph"`
	Phrases             []struct {
		Phrase      string `json:"phrase"`
		Translation string `json:"translation"`
	} `json:"phrases"`
	Words []struct {
		Word        string `json:"word"`
		Translation string `json:"translation"`
	} `json:"words"`
}

// Analyze corrects and translates a paragraph and extracts study vocabulary
func (c *Client) Analyze(ctx context.Context, text string) (*Analysis, error) {
	content, err := c.complete(ctx, analysisPrompt(c.config.TargetLanguage, c.config.NativeLanguage, text))
	if err != nil {
		return nil, err
	}

	var resp analysisResponse
	if err := decodeJSON(content, &resp); err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.CorrectedParagraph) == "" ||
		strings.TrimSpace(resp.TranslatedParagraph) == "" ||
		resp.Phrases == nil || resp.Words == nil {
		return nil, &ParseError{Raw: content, Reason: "invalid response structure"}
	}

	analysis := &Analysis{
		CorrectedText: strings.TrimSpace(resp.CorrectedParagraph),
		Translation:   strings.TrimSpace(resp.TranslatedParagraph),
	}
	for _, p := range resp.Phrases {
		analysis.Phrases = append(analysis.Phrases, Candidate{Term: strings.TrimSpace(p.Phrase), Meaning: strings.TrimSpace(p.Translation)})
	}
	for _, w := range resp.Words {
		analysis.Words = append(analysis.Words, Candidate{Term: strings.TrimSpace(w.Word), Meaning: strings.TrimSpace(w.Translation)})
	}

	c.log.Debug("Paragraph analysed", "phrases", len(analysis.Phrases), "words", len(analysis.Words))
	return analysis, nil
}

// ExplainRoot returns a short explanation of a word's root and origin
func (c *Client) ExplainRoot(ctx context.Context, term string) (string, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return "", fmt.Errorf("term is required")
	}
	content, err := c.complete(ctx, rootPrompt(c.config.TargetLanguage, c.config.NativeLanguage, term))
	if err != nil {
		return "", err
	}
	explanation := strings.TrimSpace(content)
	if explanation == "" {
		return "", &ParseError{Raw: content, Reason: "empty explanation"}
	}
	return explanation, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	var content string
	err := c.doWithRetry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()

		resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model: c.config.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty chat response")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", &ServiceError{Err: err}
	}
	return content, nil
}

// doWithRetry executes a function with exponential backoff retry
func (c *Client) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt < c.config.MaxRetries-1 {
			wait := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			c.log.Debug("Analysis request failed, retrying", "attempt", attempt+1, "wait", wait, "error", lastErr)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

var (
	jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)
	codeFence  = regexp.MustCompile("(?s)^\\s*```(?:json)?\\s*(.*?)\\s*```\\s*$")
)

// decodeJSON parses a model reply, falling back to the outermost object in the text
func decodeJSON(content string, v interface{}) error {
	text := content
	if m := codeFence.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}
	match := jsonObject.FindString(text)
	if match == "" {
		return &ParseError{Raw: content, Reason: "no JSON object in response"}
	}
	if err := json.Unmarshal([]byte(match), v); err != nil {
		return &ParseError{Raw: content, Reason: err.Error()}
	}
	return nil
}
