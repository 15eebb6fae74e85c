// Package database 记录每次运行的结果（运行日志），供 runs 命令查看。
// 游标不在这里保存，游标始终是单独的 JSON 文件。
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/iabetor/rssdigest/internal/logger"
	_ "modernc.org/sqlite"
)

// DB 运行日志数据库。
type DB struct {
	*sql.DB
}

// Open 打开或创建数据库。
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 WAL 模式失败: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 busy_timeout 失败: %w", err)
	}

	logger.Debugf("[database] 数据库已打开: %s", dbPath)
	return &DB{DB: db}, nil
}

// Migrate 创建运行日志表。
func (db *DB) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			outcome TEXT NOT NULL,
			sources INTEGER NOT NULL DEFAULT 0,
			entries INTEGER NOT NULL DEFAULT 0,
			warnings INTEGER NOT NULL DEFAULT 0,
			counts TEXT NOT NULL DEFAULT '{}',
			artifact TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("数据库迁移失败: %w", err)
		}
	}
	return nil
}

// Run 一次运行的记录。
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    string
	Sources    int
	Entries    int
	Warnings   int
	// Counts 每个源的新条目数。
	Counts   map[string]int
	Artifact string
	Error    string
}

// RecordRun 写入一条运行记录。
func (db *DB) RecordRun(ctx context.Context, r Run) error {
	counts := r.Counts
	if counts == nil {
		counts = map[string]int{}
	}
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("序列化 counts 失败: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, outcome, sources, entries, warnings, counts, artifact, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.FinishedAt.UTC().Format(time.RFC3339Nano),
		r.Outcome, r.Sources, r.Entries, r.Warnings,
		string(countsJSON), r.Artifact, r.Error,
	)
	if err != nil {
		return fmt.Errorf("写入运行记录失败: %w", err)
	}
	return nil
}

// RecentRuns 按开始时间倒序返回最近的运行记录。
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, outcome, sources, entries, warnings, counts, artifact, error
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询运行记录失败: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished string
			counts            string
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Outcome, &r.Sources, &r.Entries,
			&r.Warnings, &counts, &r.Artifact, &r.Error); err != nil {
			return nil, fmt.Errorf("读取运行记录失败: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		if err := json.Unmarshal([]byte(counts), &r.Counts); err != nil {
			logger.Warnf("[database] 运行 %s 的 counts 无法解析: %v", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close 关闭数据库连接。
func (db *DB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}
