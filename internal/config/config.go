package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Config 是 rssdigest 的顶层配置结构。
// 在 main 中构造一次，以指针形式传给各组件。
type Config struct {
	Sources SourcesConfig `yaml:"sources"`
	History HistoryConfig `yaml:"history"`
	Ingest  IngestConfig  `yaml:"ingest"`
	LLM     LLMConfig     `yaml:"llm"`
	Output  OutputConfig  `yaml:"output"`
	Journal JournalConfig `yaml:"journal"`
	Log     LogConfig     `yaml:"log"`

	// Confirm 为 true 时，调用摘要服务前需要交互确认。
	Confirm *bool `yaml:"confirm"`
}

// SourcesConfig 订阅源列表文件。
type SourcesConfig struct {
	Files []string `yaml:"files"`
}

// HistoryConfig 游标文件配置。
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// IngestConfig 增量抓取配置。
type IngestConfig struct {
	// BootstrapCap 首次见到某个源时最多取的条目数。
	BootstrapCap int `yaml:"bootstrap_cap"`
	// Order 单个源内的条目顺序：newest_first 或 oldest_first。
	Order string `yaml:"order"`
	// Cutoff 可以是 RFC3339 时间，也可以是回看时长（如 72h、7d）。
	Cutoff       string        `yaml:"cutoff"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	Concurrency  int           `yaml:"concurrency"`
	// RatePerSecond 为 0 表示不限速。
	RatePerSecond float64 `yaml:"rate_per_second"`
	UserAgent     string  `yaml:"user_agent"`
}

// LLMConfig 摘要服务配置（OpenAI 兼容接口）。
type LLMConfig struct {
	APIURL     string        `yaml:"api_url"`
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	PromptFile string        `yaml:"prompt_file"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxTokens  int           `yaml:"max_tokens"`
}

// Enabled 判断是否配置了摘要服务。
func (c LLMConfig) Enabled() bool {
	return c.APIURL != "" && c.Model != ""
}

// OutputConfig 输出配置。
type OutputConfig struct {
	Dir string `yaml:"dir"`
	// NotesDir 外部笔记工具的目录（例如 Obsidian vault 中的文件夹），为空则不复制。
	NotesDir  string `yaml:"notes_dir"`
	Extension string `yaml:"extension"`
}

// JournalConfig 运行日志数据库配置。
type JournalConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConfirmEnabled 返回是否启用确认环节。
func (c *Config) ConfirmEnabled() bool {
	return c.Confirm == nil || *c.Confirm
}

// JournalEnabled 返回是否记录运行日志。
func (c *Config) JournalEnabled() bool {
	return c.Journal.Enabled == nil || *c.Journal.Enabled
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	expanded := os.Expand(string(data), os.Getenv)

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	// 相对路径以配置文件所在目录为基准
	base := filepath.Dir(path)
	for i, f := range cfg.Sources.Files {
		cfg.Sources.Files[i] = resolvePath(base, f)
	}
	cfg.LLM.PromptFile = resolvePath(base, cfg.LLM.PromptFile)

	setDefaults(cfg)

	// 状态文件和输出目录同样以配置目录为基准，默认的 XDG 路径本身就是绝对路径
	cfg.History.Path = resolvePath(base, cfg.History.Path)
	cfg.Journal.Path = resolvePath(base, cfg.Journal.Path)
	cfg.Output.Dir = resolvePath(base, cfg.Output.Dir)
	cfg.Output.NotesDir = resolvePath(base, cfg.Output.NotesDir)
	cfg.Log.File = resolvePath(base, cfg.Log.File)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.History.Path == "" {
		cfg.History.Path = filepath.Join(xdg.DataHome, "rssdigest", "history.json")
	}
	cfg.History.Path = expandHome(cfg.History.Path)

	if cfg.Ingest.BootstrapCap == 0 {
		cfg.Ingest.BootstrapCap = 3
	}
	if cfg.Ingest.Order == "" {
		cfg.Ingest.Order = "newest_first"
	}
	if cfg.Ingest.FetchTimeout == 0 {
		cfg.Ingest.FetchTimeout = 15 * time.Second
	}
	if cfg.Ingest.Concurrency == 0 {
		cfg.Ingest.Concurrency = 4
	}
	if cfg.Ingest.UserAgent == "" {
		cfg.Ingest.UserAgent = "rssdigest/1.0 (+https://github.com/iabetor/rssdigest)"
	}

	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 120 * time.Second
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1500
	}
	// 去除 API Key 两端可能的空白（环境变量展开后常见）
	cfg.LLM.APIKey = strings.TrimSpace(cfg.LLM.APIKey)
	cfg.LLM.APIURL = strings.TrimRight(strings.TrimSpace(cfg.LLM.APIURL), "/")

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "./summaries"
	}
	cfg.Output.Dir = expandHome(cfg.Output.Dir)
	cfg.Output.NotesDir = expandHome(cfg.Output.NotesDir)
	if cfg.Output.Extension == "" {
		cfg.Output.Extension = ".md"
	} else if !strings.HasPrefix(cfg.Output.Extension, ".") {
		cfg.Output.Extension = "." + cfg.Output.Extension
	}

	if cfg.Journal.Path == "" {
		cfg.Journal.Path = filepath.Join(xdg.DataHome, "rssdigest", "journal.db")
	}
	cfg.Journal.Path = expandHome(cfg.Journal.Path)

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Log.File = expandHome(cfg.Log.File)
}

func validate(cfg *Config) error {
	if len(cfg.Sources.Files) == 0 {
		return fmt.Errorf("sources.files 不能为空")
	}
	if cfg.Ingest.BootstrapCap < 0 {
		return fmt.Errorf("ingest.bootstrap_cap 不能为负数: %d", cfg.Ingest.BootstrapCap)
	}
	switch cfg.Ingest.Order {
	case "newest_first", "oldest_first":
	default:
		return fmt.Errorf("ingest.order 无效: %q (可选 newest_first, oldest_first)", cfg.Ingest.Order)
	}
	if cfg.Ingest.Cutoff != "" {
		if _, err := ParseCutoff(cfg.Ingest.Cutoff, time.Now()); err != nil {
			return err
		}
	}
	return nil
}

// ParseCutoff 解析截止时间。支持 RFC3339 / 日期（2006-01-02）/ 回看时长（72h、7d）。
// 空字符串返回零值，表示不启用截止。
func ParseCutoff(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}
	if strings.HasSuffix(s, "d") {
		if days, err := strconv.Atoi(strings.TrimSuffix(s, "d")); err == nil && days >= 0 {
			return now.Add(-time.Duration(days) * 24 * time.Hour), nil
		}
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return now.Add(-d), nil
	}
	return time.Time{}, fmt.Errorf("无法解析截止时间 %q", s)
}

func resolvePath(base, p string) string {
	if p == "" {
		return p
	}
	p = expandHome(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// expandHome 展开 ~/ 前缀，Go 不会自动处理。
func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return p
	}
	return filepath.Join(home, p[2:])
}
