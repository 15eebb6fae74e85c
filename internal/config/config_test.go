package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig 在临时目录中写入配置文件，返回目录和文件路径。
func writeConfig(t *testing.T, content string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return dir, path
}

func TestSetDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	assert.Equal(t, 3, cfg.Ingest.BootstrapCap)
	assert.Equal(t, "newest_first", cfg.Ingest.Order)
	assert.Equal(t, 15*time.Second, cfg.Ingest.FetchTimeout)
	assert.Equal(t, 4, cfg.Ingest.Concurrency)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 1500, cfg.LLM.MaxTokens)
	assert.Equal(t, "./summaries", cfg.Output.Dir)
	assert.Equal(t, ".md", cfg.Output.Extension)
	assert.Equal(t, filepath.Join(xdg.DataHome, "rssdigest", "history.json"), cfg.History.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.ConfirmEnabled(), "Confirm 默认应启用")
	assert.True(t, cfg.JournalEnabled(), "Journal 默认应启用")
}

func TestSetDefaults_DoesNotOverride(t *testing.T) {
	cfg := &Config{
		Ingest: IngestConfig{BootstrapCap: 2, Order: "oldest_first", Concurrency: 1},
		LLM:    LLMConfig{APIURL: " https://api.example.com/v1/ ", APIKey: "  key\n", MaxTokens: 300},
		Output: OutputConfig{Dir: "/tmp/out", Extension: "txt"},
		Log:    LogConfig{Level: "debug"},
	}
	setDefaults(cfg)

	assert.Equal(t, 2, cfg.Ingest.BootstrapCap)
	assert.Equal(t, "oldest_first", cfg.Ingest.Order)
	assert.Equal(t, 1, cfg.Ingest.Concurrency)
	assert.Equal(t, "https://api.example.com/v1", cfg.LLM.APIURL, "APIURL 应去除空白和结尾斜杠")
	assert.Equal(t, "key", cfg.LLM.APIKey, "APIKey 应去除空白")
	assert.Equal(t, 300, cfg.LLM.MaxTokens)
	assert.Equal(t, ".txt", cfg.Output.Extension, "Extension 应补全点号")
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ValidYAML(t *testing.T) {
	t.Setenv("RSSDIGEST_TEST_KEY", "secret-from-env")

	dir, path := writeConfig(t, `
sources:
  files:
    - feeds.json
    - /etc/rssdigest/extra.yaml
history:
  path: /tmp/history.json
ingest:
  bootstrap_cap: 2
  cutoff: 7d
  fetch_timeout: 5s
llm:
  api_url: https://api.example.com/v1
  api_key: ${RSSDIGEST_TEST_KEY}
  model: gpt-4o-mini
  prompt_file: prompt.txt
confirm: false
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "feeds.json"), cfg.Sources.Files[0], "相对路径应以配置目录为基准")
	assert.Equal(t, "/etc/rssdigest/extra.yaml", cfg.Sources.Files[1], "绝对路径不应改变")
	assert.Equal(t, "/tmp/history.json", cfg.History.Path)
	assert.Equal(t, "secret-from-env", cfg.LLM.APIKey, "环境变量未展开")
	assert.Equal(t, filepath.Join(dir, "prompt.txt"), cfg.LLM.PromptFile)
	assert.Equal(t, 5*time.Second, cfg.Ingest.FetchTimeout)
	assert.False(t, cfg.ConfirmEnabled(), "confirm: false 应关闭确认")
	assert.True(t, cfg.LLM.Enabled())
}

func TestLoad_RelativeStatePathsUseConfigDir(t *testing.T) {
	dir, path := writeConfig(t, `
sources:
  files: [feeds.json]
history:
  path: ./data/history.json
journal:
  path: data/journal.db
output:
  dir: ./summaries
  notes_dir: notes
log:
  file: logs/rssdigest.log
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	tests := []struct {
		name, got, want string
	}{
		{"history.path", cfg.History.Path, filepath.Join(dir, "data", "history.json")},
		{"journal.path", cfg.Journal.Path, filepath.Join(dir, "data", "journal.db")},
		{"output.dir", cfg.Output.Dir, filepath.Join(dir, "summaries")},
		{"output.notes_dir", cfg.Output.NotesDir, filepath.Join(dir, "notes")},
		{"log.file", cfg.Log.File, filepath.Join(dir, "logs", "rssdigest.log")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.got, "%s 应以配置目录为基准", tt.name)
	}
}

func TestLoad_DefaultPathsAreAbsolute(t *testing.T) {
	dir, path := writeConfig(t, "sources:\n  files: [feeds.json]\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	for name, p := range map[string]string{
		"history.path": cfg.History.Path,
		"journal.path": cfg.Journal.Path,
		"output.dir":   cfg.Output.Dir,
	} {
		assert.True(t, filepath.IsAbs(p), "%s 默认值应为绝对路径: %s", name, p)
	}
	assert.Equal(t, filepath.Join(dir, "summaries"), cfg.Output.Dir, "默认输出目录应位于配置目录下")
	assert.Empty(t, cfg.Log.File, "未配置日志文件时应保持为空")
}

func TestLoad_MissingSources(t *testing.T) {
	_, path := writeConfig(t, "log:\n  level: info\n")
	_, err := Load(path)
	assert.Error(t, err, "缺少 sources.files 应返回错误")
}

func TestLoad_InvalidOrder(t *testing.T) {
	_, path := writeConfig(t, "sources:\n  files: [a.json]\ningest:\n  order: random\n")
	_, err := Load(path)
	assert.Error(t, err, "非法 order 应返回错误")
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestParseCutoff(t *testing.T) {
	now := time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"", time.Time{}},
		{"2026-02-01T00:00:00Z", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"2026-02-10", time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)},
		{"7d", now.Add(-7 * 24 * time.Hour)},
		{"36h", now.Add(-36 * time.Hour)},
	}
	for _, tt := range tests {
		got, err := ParseCutoff(tt.in, now)
		if !assert.NoError(t, err, "ParseCutoff(%q)", tt.in) {
			continue
		}
		assert.True(t, got.Equal(tt.want), "ParseCutoff(%q) = %v, want %v", tt.in, got, tt.want)
	}

	_, err := ParseCutoff("yesterday", now)
	assert.Error(t, err, "无法解析的截止时间应返回错误")
}
