package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"", zapcore.InfoLevel, false},
		{" INFO ", zapcore.InfoLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "ParseLevel(%q)", tt.in)
		} else {
			assert.NoError(t, err, "ParseLevel(%q)", tt.in)
		}
		assert.Equal(t, tt.want, got, "ParseLevel(%q)", tt.in)
	}
}

func TestInitWritesToFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "rssdigest.log")
	t.Cleanup(func() {
		Z = zap.New(newCore(os.Stderr, zapcore.WarnLevel))
		L = Z.Sugar()
	})
	require.NoError(t, Init(Config{Level: "debug", File: file}))
	Infof("[test] hello %d", 42)
	Sync()
	fileWriter = nil

	data, err := os.ReadFile(file)
	require.NoError(t, err, "读取日志文件失败")
	assert.Contains(t, string(data), "[test] hello 42")
}

func TestInitRejectsBadLevel(t *testing.T) {
	assert.Error(t, Init(Config{Level: "loud"}), "无效级别应返回错误")
}
