// Package digest 把一次运行的全部新条目拼成一段文本，
// 连同指令 prompt 一起交给摘要服务，每次运行只调用一次。
package digest

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/iabetor/rssdigest/internal/llm"
	"github.com/iabetor/rssdigest/internal/logger"
	"github.com/iabetor/rssdigest/internal/rss"
)

//go:embed default_prompt.txt
var defaultPrompt string

// ErrNoEntries 没有条目可供摘要。
var ErrNoEntries = errors.New("没有需要摘要的条目")

// DefaultPrompt 返回内置的指令 prompt。
func DefaultPrompt() string {
	return defaultPrompt
}

// LoadPrompt 读取指令 prompt 文件；path 为空时返回内置 prompt。
func LoadPrompt(path string) (string, error) {
	if path == "" {
		return defaultPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("读取 prompt 文件 %s 失败: %w", path, err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("prompt 文件 %s 为空", path)
	}
	return prompt, nil
}

// BuildText 按给定顺序拼接每个条目的标题、摘要和链接。
func BuildText(entries []rss.Entry) string {
	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "Title: %s\n", e.Title)
		if e.Summary != nil {
			fmt.Fprintf(&sb, "Summary: %s\n", *e.Summary)
		}
		fmt.Fprintf(&sb, "Link: %s\n", e.Link)
	}
	return sb.String()
}

// Dispatcher 摘要调度器。
type Dispatcher struct {
	summarizer llm.Summarizer
	prompt     string
}

// NewDispatcher 创建调度器。
func NewDispatcher(summarizer llm.Summarizer, prompt string) *Dispatcher {
	return &Dispatcher{summarizer: summarizer, prompt: prompt}
}

// Dispatch 对所有条目发起一次摘要请求。失败不重试。
func (d *Dispatcher) Dispatch(ctx context.Context, entries []rss.Entry) (string, error) {
	if len(entries) == 0 {
		return "", ErrNoEntries
	}

	text := BuildText(entries)
	logger.Infof("[digest] 提交 %d 条内容（%d 字节）生成摘要", len(entries), len(text))

	summary, err := d.summarizer.Summarize(ctx, d.prompt, text)
	if err != nil {
		return "", fmt.Errorf("生成摘要失败: %w", err)
	}
	return summary, nil
}
