// Package llm provides the generative fallback used when the knowledge base has no answer.
package llm

import (
	"context"
	"errors"
	"fmt"
	"mangrat-go/internal/config"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultSystemInstruction = "Tu es Mangrat, un assistant concis. Réponds en une ou deux phrases, " +
	"dans la langue de la question. Si tu ne sais pas, dis-le simplement."

// ErrEmptyResponse 表示模型没有返回任何文本。
var ErrEmptyResponse = errors.New("gemini returned an empty response")

// Client 为一个问题生成答案。
type Client interface {
	Generate(ctx context.Context, question string) (string, error)
	Close() error
}

type geminiClient struct {
	client *genai.Client
	cfg    config.GeminiConfig
}

// NewGeminiClient 创建 Gemini 客户端。
func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &geminiClient{client: client, cfg: cfg}, nil
}

func (c *geminiClient) Generate(ctx context.Context, question string) (string, error) {
	model := c.client.GenerativeModel(c.cfg.Model)

	instruction := c.cfg.SystemInstruction
	if instruction == "" {
		instruction = defaultSystemInstruction
	}
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(instruction)},
	}
	if c.cfg.Temperature > 0 {
		model.SetTemperature(c.cfg.Temperature)
	}
	if c.cfg.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(c.cfg.MaxOutputTokens)
	}

	resp, err := model.GenerateContent(ctx, genai.Text(question))
	if err != nil {
		return "", fmt.Errorf("gemini GenerateContent failed: %w", err)
	}
	return responseText(resp)
}

func (c *geminiClient) Close() error {
	return c.client.Close()
}

// responseText 拼接第一个候选结果中的所有文本片段。
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
