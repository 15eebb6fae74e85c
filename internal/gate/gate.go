// Package gate 在游标提交之后、调用摘要服务之前提供可选的人工确认。
package gate

import (
	"context"
	"fmt"

	"github.com/cqroot/prompt"
	"github.com/iabetor/rssdigest/internal/logger"
)

// Decision 确认环节的结果。
type Decision int

const (
	// NoUpdates 没有新条目，不调用摘要服务。
	NoUpdates Decision = iota
	// Proceed 继续生成摘要。
	Proceed
	// Declined 操作者拒绝，本次不生成摘要；游标已提交，不会回滚。
	Declined
)

func (d Decision) String() string {
	switch d {
	case NoUpdates:
		return "no_updates"
	case Proceed:
		return "proceed"
	case Declined:
		return "declined"
	}
	return "unknown"
}

// Confirmer 向操作者提问并返回是否继续。
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// ConfirmFunc 将普通函数适配为 Confirmer。
type ConfirmFunc func(ctx context.Context, question string) (bool, error)

// Confirm 实现 Confirmer。
func (f ConfirmFunc) Confirm(ctx context.Context, question string) (bool, error) {
	return f(ctx, question)
}

// AutoConfirm 不提问，始终返回固定答案（对应 --yes 或 confirm: false）。
type AutoConfirm bool

// Confirm 实现 Confirmer。
func (a AutoConfirm) Confirm(context.Context, string) (bool, error) {
	return bool(a), nil
}

const (
	choiceYes = "Yes, summarize"
	choiceNo  = "No, skip this run"
)

// TerminalConfirmer 在终端中用选择菜单提问。
type TerminalConfirmer struct{}

// Confirm 实现 Confirmer。
func (TerminalConfirmer) Confirm(ctx context.Context, question string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	choice, err := prompt.New().Ask(question).Choose([]string{choiceYes, choiceNo})
	if err != nil {
		return false, err
	}
	return choice == choiceYes, nil
}

// Gate 确认环节。
type Gate struct {
	confirmer Confirmer
}

// New 创建确认环节；confirmer 为 nil 时不提问直接继续。
func New(confirmer Confirmer) *Gate {
	if confirmer == nil {
		confirmer = AutoConfirm(true)
	}
	return &Gate{confirmer: confirmer}
}

// Decide 根据新条目数量决定是否继续。total 为 0 时直接返回 NoUpdates，不提问。
// 提问出错（例如用户按 Ctrl-C 退出选择）视为拒绝，同时返回错误供调用方记录。
func (g *Gate) Decide(ctx context.Context, total, sources int) (Decision, error) {
	if total == 0 {
		return NoUpdates, nil
	}

	question := fmt.Sprintf("Found %d new entries from %d sources. Send them for summarization?", total, sources)
	ok, err := g.confirmer.Confirm(ctx, question)
	if err != nil {
		logger.Warnf("[gate] 确认失败，按拒绝处理: %v", err)
		return Declined, err
	}
	if !ok {
		logger.Infof("[gate] 操作者拒绝生成摘要")
		return Declined, nil
	}
	return Proceed, nil
}
