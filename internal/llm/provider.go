// Package llm 封装生成摘要用的文本生成服务。
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse 服务返回了成功状态但没有任何内容。
var ErrEmptyResponse = errors.New("[llm] 响应为空")

// Message 表示与 LLM 对话中的一条消息。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Summarizer 根据指令 prompt 对文本生成摘要。每次调用只发一次请求，不重试。
type Summarizer interface {
	Summarize(ctx context.Context, prompt, text string) (string, error)
}
