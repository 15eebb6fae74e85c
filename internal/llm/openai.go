package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iabetor/rssdigest/internal/logger"
)

const defaultTimeout = 120 * time.Second

// OpenAIProvider 通过 OpenAI 兼容的 chat completions 接口生成摘要。
type OpenAIProvider struct {
	apiURL     string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// NewOpenAIProvider 创建一个新的 OpenAI 兼容提供者。timeout <= 0 时使用默认值。
func NewOpenAIProvider(apiURL, apiKey, model string, maxTokens int, timeout time.Duration) *OpenAIProvider {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OpenAIProvider{
		apiURL:    strings.TrimRight(apiURL, "/"),
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// chatRequest 是发送到 chat completions 接口的 JSON 请求体。
type chatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
	Stream    bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Summarize 以 prompt 作为 system 消息、text 作为 user 消息发起一次请求。
func (p *OpenAIProvider) Summarize(ctx context.Context, prompt, text string) (string, error) {
	messages := make([]Message, 0, 2)
	if strings.TrimSpace(prompt) != "" {
		messages = append(messages, Message{Role: "system", Content: prompt})
	}
	messages = append(messages, Message{Role: "user", Content: text})

	bodyBytes, err := json.Marshal(chatRequest{
		Model:     p.model,
		Messages:  messages,
		MaxTokens: p.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("[llm] 序列化请求体失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.apiURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("[llm] 创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("[llm] 请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("[llm] API 返回状态码 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("[llm] 解析响应失败: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(cr.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}

	logger.Infof("[llm] 模型 %s 返回 %d 字符，耗时 %s", p.model, len(content), time.Since(start).Round(time.Millisecond))
	return content, nil
}
