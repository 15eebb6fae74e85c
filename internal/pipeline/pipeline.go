package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iabetor/rssdigest/internal/config"
	"github.com/iabetor/rssdigest/internal/database"
	"github.com/iabetor/rssdigest/internal/digest"
	"github.com/iabetor/rssdigest/internal/gate"
	"github.com/iabetor/rssdigest/internal/history"
	"github.com/iabetor/rssdigest/internal/ingest"
	"github.com/iabetor/rssdigest/internal/llm"
	"github.com/iabetor/rssdigest/internal/logger"
	"github.com/iabetor/rssdigest/internal/output"
	"github.com/iabetor/rssdigest/internal/rss"
)

// Outcome 一次运行的最终结果。
type Outcome string

const (
	OutcomeNoUpdates  Outcome = "no_updates"
	OutcomeDeclined   Outcome = "declined"
	OutcomeSummarized Outcome = "summarized"
	OutcomePrinted    Outcome = "printed"
	OutcomePreview    Outcome = "preview"
	OutcomeFailed     Outcome = "failed"
)

var (
	// ErrSummaryFailed 摘要或写出失败。游标此时已经提交。
	ErrSummaryFailed = errors.New("摘要未生成")
	// ErrStageOrder 阶段顺序被破坏，例如未提交游标就要调用摘要。
	ErrStageOrder = errors.New("运行阶段顺序错误")
)

// Journal 记录运行结果。*database.DB 实现了它。
type Journal interface {
	RecordRun(ctx context.Context, r database.Run) error
}

// Deps 可替换的组件，为 nil 时按配置创建。
type Deps struct {
	Fetcher ingest.Fetcher
	// Summarizer 为 nil 且配置中没有 LLM 时进入打印模式。
	Summarizer llm.Summarizer
	// Confirmer 为 nil 时按 cfg.ConfirmEnabled() 决定是否在终端提问。
	Confirmer gate.Confirmer
	Journal   Journal
	// Out 打印模式和预览的输出位置，默认 os.Stdout。
	Out io.Writer
	Now func() time.Time
}

// RunOptions 单次运行的选项。
type RunOptions struct {
	// DryRun 只计算新条目，不写游标也不调用摘要。
	DryRun bool
}

// Report 一次运行的汇总，供命令行展示。
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    Outcome
	Sources    int
	Result     *ingest.Result
	Summary    string
	Artifact   output.Artifact
	Err        error
	// Stages 本次运行依次进入的阶段，不含 Idle。
	Stages []Stage
}

// LastStage 返回结束前所处的阶段，用于说明运行停在哪一步。
func (r *Report) LastStage() Stage {
	for i := len(r.Stages) - 1; i >= 0; i-- {
		if r.Stages[i] != StageDone {
			return r.Stages[i]
		}
	}
	return StageIdle
}

// Total 新条目总数。
func (r *Report) Total() int {
	if r.Result == nil {
		return 0
	}
	return r.Result.Total()
}

// Pipeline 串联抓取、游标提交、确认、摘要和输出。
type Pipeline struct {
	cfg     *config.Config
	sources []rss.Source

	fetcher    ingest.Fetcher
	gate       *gate.Gate
	dispatcher *digest.Dispatcher
	sink       *output.Sink
	journal    Journal

	out   io.Writer
	now   func() time.Time
	state *StateMachine
}

// New 根据配置创建 Pipeline。订阅源列表在这里读取，出错时不会碰游标文件。
func New(cfg *config.Config, deps Deps) (*Pipeline, error) {
	p := &Pipeline{
		cfg:     cfg,
		fetcher: deps.Fetcher,
		journal: deps.Journal,
		out:     deps.Out,
		now:     deps.Now,
		state:   NewStateMachine(),
	}
	if p.out == nil {
		p.out = os.Stdout
	}
	if p.now == nil {
		p.now = time.Now
	}

	sources, err := rss.LoadSources(cfg.Sources.Files...)
	if err != nil {
		return nil, fmt.Errorf("加载订阅源失败: %w", err)
	}
	p.sources = sources
	logger.Infof("[pipeline] 已加载 %d 个订阅源", len(sources))

	if p.fetcher == nil {
		p.fetcher = rss.NewFetcher(rss.FetcherOptions{
			Timeout:       cfg.Ingest.FetchTimeout,
			UserAgent:     cfg.Ingest.UserAgent,
			RatePerSecond: cfg.Ingest.RatePerSecond,
		})
	}

	confirmer := deps.Confirmer
	if confirmer == nil {
		if cfg.ConfirmEnabled() {
			confirmer = gate.TerminalConfirmer{}
		} else {
			confirmer = gate.AutoConfirm(true)
		}
	}
	p.gate = gate.New(confirmer)

	summarizer := deps.Summarizer
	if summarizer == nil && cfg.LLM.Enabled() {
		summarizer = llm.NewOpenAIProvider(cfg.LLM.APIURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.Timeout)
	}
	if summarizer != nil {
		prompt, err := digest.LoadPrompt(cfg.LLM.PromptFile)
		if err != nil {
			return nil, err
		}
		p.dispatcher = digest.NewDispatcher(summarizer, prompt)
		p.sink = output.NewSink(cfg.Output.Dir, cfg.Output.NotesDir, cfg.Output.Extension)
	} else {
		logger.Infof("[pipeline] 未配置 LLM，新条目将直接打印")
	}

	return p, nil
}

// Sources 返回已加载的订阅源。
func (p *Pipeline) Sources() []rss.Source {
	return p.sources
}

// Stage 返回当前阶段。
func (p *Pipeline) Stage() Stage {
	return p.state.Current()
}

// Run 执行一次完整运行：
//
//  1. 抓取所有源并提交游标；
//  2. 没有新条目时结束；
//  3. 询问操作者，拒绝时结束；
//  4. 生成摘要并写出文件。
//
// 第 4 步失败时游标已经前进，本批条目不会再次出现。
// 返回的 error 仅表示运行没有正常完成，Report 总是非 nil。
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: p.now(),
		Sources:   len(p.sources),
	}
	p.state = NewStateMachine()
	p.state.SetOnChange(func(_, to Stage) {
		report.Stages = append(report.Stages, to)
	})
	defer p.record(ctx, report)

	err := p.run(ctx, opts, report)
	if err != nil {
		report.Outcome = OutcomeFailed
		report.Err = err
	}
	report.FinishedAt = p.now()
	// 未结束的任何阶段都可以进入 Done
	p.state.Transition(StageDone)

	logger.Infof("[pipeline] 运行 %s 结束: %s（新条目 %d）", report.RunID, report.Outcome, report.Total())
	return report, err
}

func (p *Pipeline) run(ctx context.Context, opts RunOptions, report *Report) error {
	cutoff, err := config.ParseCutoff(p.cfg.Ingest.Cutoff, report.StartedAt)
	if err != nil {
		return err
	}
	order, err := ingest.ParseOrder(p.cfg.Ingest.Order)
	if err != nil {
		return err
	}
	engine := ingest.New(p.fetcher, ingest.Options{
		BootstrapCap: p.cfg.Ingest.BootstrapCap,
		Cutoff:       cutoff,
		Order:        order,
		Concurrency:  p.cfg.Ingest.Concurrency,
	})

	if err := p.enter(StageIngesting); err != nil {
		return err
	}

	if opts.DryRun {
		res, err := engine.Collect(ctx, history.Load(p.cfg.History.Path), p.sources)
		if err != nil {
			return err
		}
		report.Result = res
		report.Outcome = OutcomePreview
		printEntries(p.out, res.Entries)
		return nil
	}

	res, err := engine.Run(ctx, p.cfg.History.Path, p.sources)
	if err != nil {
		return err
	}
	report.Result = res
	if err := p.enter(StageCommitted); err != nil {
		return err
	}

	if res.Total() == 0 {
		logger.Infof("[pipeline] 没有新条目")
		report.Outcome = OutcomeNoUpdates
		return nil
	}

	if p.dispatcher == nil {
		printEntries(p.out, res.Entries)
		report.Outcome = OutcomePrinted
		return nil
	}

	if err := p.enter(StageConfirming); err != nil {
		return err
	}
	decision, err := p.gate.Decide(ctx, res.Total(), len(p.sources))
	switch decision {
	case gate.NoUpdates:
		report.Outcome = OutcomeNoUpdates
		return nil
	case gate.Declined:
		// 提问失败同样按拒绝处理，游标保持已提交状态
		report.Outcome = OutcomeDeclined
		if err != nil {
			logger.Warnf("[pipeline] 确认环节出错: %v", err)
		}
		return nil
	}

	if err := p.enter(StageSummarizing); err != nil {
		return err
	}
	summary, err := p.dispatcher.Dispatch(ctx, res.Entries)
	if err != nil {
		logger.Errorf("[pipeline] %v", err)
		return fmt.Errorf("%w: %w", ErrSummaryFailed, err)
	}
	report.Summary = summary

	if err := p.enter(StageWriting); err != nil {
		return err
	}
	art, err := p.sink.Write(report.StartedAt, summary)
	if err != nil {
		logger.Errorf("[pipeline] 写出摘要失败: %v", err)
		return fmt.Errorf("%w: %w", ErrSummaryFailed, err)
	}
	report.Artifact = art
	report.Outcome = OutcomeSummarized
	return nil
}

// enter 切换到下一阶段，非法转换返回 ErrStageOrder。
func (p *Pipeline) enter(to Stage) error {
	from := p.state.Current()
	if !p.state.Transition(to) {
		return fmt.Errorf("%w: %s → %s", ErrStageOrder, from, to)
	}
	return nil
}

// record 写入运行日志。预览不记录，写入失败只记录警告。
func (p *Pipeline) record(ctx context.Context, report *Report) {
	if p.journal == nil || report.Outcome == OutcomePreview {
		return
	}

	run := database.Run{
		ID:         report.RunID,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Outcome:    string(report.Outcome),
		Sources:    report.Sources,
		Entries:    report.Total(),
		Artifact:   report.Artifact.Path,
	}
	if report.Result != nil {
		run.Warnings = len(report.Result.Warnings)
		run.Counts = report.Result.Counts
	}
	if report.Err != nil {
		run.Error = report.Err.Error()
	}

	// 运行被中断时也要留下记录
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.journal.RecordRun(rctx, run); err != nil {
		logger.Warnf("[pipeline] 记录运行日志失败: %v", err)
	}
}

const separator = "----------------------------------------"

// printEntries 以纯文本列出新条目。
func printEntries(w io.Writer, entries []rss.Entry) {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(separator)
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "Title: %s\n", e.Title)
		if s := e.SummaryText(); s != "" {
			fmt.Fprintf(&sb, "Summary: %s\n", s)
		}
		fmt.Fprintf(&sb, "Link: %s\n", e.Link)
	}
	if len(entries) > 0 {
		sb.WriteString(separator)
		sb.WriteString("\n")
	}
	io.WriteString(w, sb.String())
}
