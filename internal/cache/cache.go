package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/iabetor/pispeak/internal/database"
	"github.com/iabetor/pispeak/internal/logger"
)

// Cache 管理合成结果缓存：PCM 数据存为文件，索引存在 SQLite 中。
// 超过容量上限时按最近最少使用淘汰。
type Cache struct {
	mu      sync.Mutex
	dir     string
	maxSize int64 // 字节，0 表示禁用
	db      *database.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS utterances (
	key         TEXT PRIMARY KEY,
	engine      TEXT NOT NULL,
	text        TEXT NOT NULL,
	sample_rate INTEGER NOT NULL,
	size        INTEGER NOT NULL,
	created_at  TEXT NOT NULL,
	last_used   TEXT NOT NULL
)`

// New 创建缓存管理器。
// dir 为缓存目录（为空时使用 ~/.pispeak/cache），
// dbPath 为索引数据库路径，maxSizeMB 为容量上限（0 表示禁用缓存）。
func New(dir, dbPath string, maxSizeMB int64) (*Cache, error) {
	if maxSizeMB == 0 {
		return &Cache{}, nil
	}

	if dir == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			dir = filepath.Join(home, ".pispeak", "cache")
		} else {
			dir = "./cache"
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建缓存目录失败: %w", err)
	}

	db, err := database.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化缓存索引表失败: %w", err)
	}

	c := &Cache{
		dir:     dir,
		maxSize: maxSizeMB * 1024 * 1024,
		db:      db,
	}

	// 校验索引：移除本地文件已丢失的条目
	c.validate()

	return c, nil
}

// Enabled 返回缓存是否启用。
func (c *Cache) Enabled() bool {
	return c.maxSize > 0
}

// Key 根据引擎、音色、采样率和文本计算缓存键。
func Key(engine, voiceID string, sampleRate int, text string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%s", engine, voiceID, sampleRate, text)
	return hex.EncodeToString(h.Sum(nil))
}

// Lookup 查找缓存条目，命中时返回 PCM 数据和采样率，并更新 last_used。
func (c *Cache) Lookup(key string) ([]byte, int, bool) {
	if !c.Enabled() {
		return nil, 0, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var sampleRate int
	err := c.db.QueryRow("SELECT sample_rate FROM utterances WHERE key = ?", key).Scan(&sampleRate)
	if err != nil {
		return nil, 0, false
	}

	pcm, err := os.ReadFile(c.filePath(key))
	if err != nil {
		// 索引有、文件没了：清掉这条记录
		_, _ = c.db.Exec("DELETE FROM utterances WHERE key = ?", key)
		return nil, 0, false
	}

	now := time.Now().Format(time.RFC3339)
	_, _ = c.db.Exec("UPDATE utterances SET last_used = ? WHERE key = ?", now, key)

	logger.Debugf("[cache] 命中: %s (%d 字节)", key[:12], len(pcm))
	return pcm, sampleRate, true
}

// Store 写入缓存条目并在超出容量时淘汰最久未用的条目。
func (c *Cache) Store(key, engine, text string, sampleRate int, pcm []byte) error {
	if !c.Enabled() || len(pcm) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.WriteFile(c.filePath(key), pcm, 0644); err != nil {
		return fmt.Errorf("写入缓存文件失败: %w", err)
	}

	now := time.Now().Format(time.RFC3339)
	_, err := c.db.Exec(
		`INSERT INTO utterances (key, engine, text, sample_rate, size, created_at, last_used)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET last_used = excluded.last_used`,
		key, engine, text, sampleRate, int64(len(pcm)), now, now)
	if err != nil {
		return fmt.Errorf("写入缓存索引失败: %w", err)
	}

	c.evict()
	return nil
}

// filePath 返回缓存键对应的 PCM 文件路径。
func (c *Cache) filePath(key string) string {
	return filepath.Join(c.dir, key+".pcm")
}

// evict 淘汰最久未用的条目直到总大小回到上限以内。调用方需持锁。
func (c *Cache) evict() {
	var total int64
	if err := c.db.QueryRow("SELECT COALESCE(SUM(size), 0) FROM utterances").Scan(&total); err != nil {
		logger.Warnf("[cache] 统计缓存大小失败: %v", err)
		return
	}

	for total > c.maxSize {
		var key string
		var size int64
		err := c.db.QueryRow(
			"SELECT key, size FROM utterances ORDER BY last_used ASC LIMIT 1").Scan(&key, &size)
		if err != nil {
			return
		}
		if _, err := c.db.Exec("DELETE FROM utterances WHERE key = ?", key); err != nil {
			logger.Warnf("[cache] 删除缓存索引失败: %v", err)
			return
		}
		_ = os.Remove(c.filePath(key))
		total -= size
		logger.Infof("[cache] 淘汰: %s (%d 字节)", key[:12], size)
	}
}

// validate 移除文件已不存在的索引条目。
func (c *Cache) validate() {
	rows, err := c.db.Query("SELECT key FROM utterances")
	if err != nil {
		return
	}
	var missing []string
	for rows.Next() {
		var key string
		if rows.Scan(&key) == nil {
			if _, err := os.Stat(c.filePath(key)); err != nil {
				missing = append(missing, key)
			}
		}
	}
	rows.Close()

	for _, key := range missing {
		_, _ = c.db.Exec("DELETE FROM utterances WHERE key = ?", key)
	}
	if len(missing) > 0 {
		logger.Infof("[cache] 清理了 %d 条失效索引", len(missing))
	}
}

// Close 关闭缓存索引数据库。
func (c *Cache) Close() {
	if c.db != nil {
		c.db.Close()
	}
}
