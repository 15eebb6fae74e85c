package pipeline

import (
	"sync"

	"github.com/iabetor/rssdigest/internal/logger"
)

// Stage 表示一次运行当前所处的阶段。
type Stage int

const (
	// StageIdle 尚未开始。
	StageIdle Stage = iota
	// StageIngesting 正在抓取并计算新条目。
	StageIngesting
	// StageCommitted 游标已写回文件。
	StageCommitted
	// StageConfirming 等待操作者确认。
	StageConfirming
	// StageSummarizing 正在调用摘要服务。
	StageSummarizing
	// StageWriting 正在写出摘要文件。
	StageWriting
	// StageDone 本次运行结束。
	StageDone
)

var stageNames = [...]string{
	"Idle",
	"Ingesting",
	"Committed",
	"Confirming",
	"Summarizing",
	"Writing",
	"Done",
}

func (s Stage) String() string {
	if int(s) >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "Unknown"
}

// StateMachine 管理线程安全的阶段转换。
type StateMachine struct {
	mu       sync.RWMutex
	current  Stage
	onChange func(from, to Stage)
}

// NewStateMachine 创建一个初始阶段为 Idle 的状态机。
func NewStateMachine() *StateMachine {
	return &StateMachine{current: StageIdle}
}

// SetOnChange 注册阶段变化时的回调函数。
func (sm *StateMachine) SetOnChange(fn func(from, to Stage)) {
	sm.mu.Lock()
	sm.onChange = fn
	sm.mu.Unlock()
}

// Current 返回当前阶段。
func (sm *StateMachine) Current() Stage {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// Transition 尝试切换阶段。只有合法的转换才会生效：
//
//	Idle        → Ingesting
//	Ingesting   → Committed    （游标已提交）
//	Committed   → Confirming   （有新条目）
//	Confirming  → Summarizing  （确认继续）
//	Summarizing → Writing
//	Writing     → Done
//
// 除 Done 自身外任何阶段都可以直接结束，游标提交前后都一样。
// 关键约束是 Summarizing 只能从 Committed 之后到达，游标提交永远先于摘要调用。
func (sm *StateMachine) Transition(to Stage) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !validTransition(sm.current, to) {
		logger.Warnf("[state] 非法转换 %s → %s", sm.current, to)
		return false
	}

	from := sm.current
	sm.current = to
	logger.Debugf("[state] %s → %s", from, to)

	if sm.onChange != nil {
		sm.onChange(from, to)
	}
	return true
}

// validTransition 检查阶段转换是否合法。
func validTransition(from, to Stage) bool {
	if from == StageDone {
		return false
	}
	if to == StageDone {
		return true
	}
	switch from {
	case StageIdle:
		return to == StageIngesting
	case StageIngesting:
		return to == StageCommitted
	case StageCommitted:
		return to == StageConfirming
	case StageConfirming:
		return to == StageSummarizing
	case StageSummarizing:
		return to == StageWriting
	}
	return false
}
