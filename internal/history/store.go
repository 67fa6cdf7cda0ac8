package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Record 代表一条已下发推荐的记录
type Record struct {
	UserID    string `json:"user_id"`
	TrackID   int    `json:"track_id"`
	Source    string `json:"source"` // "favorites" 或 "history"
	Timestamp int64  `json:"timestamp"`
}

// Store 定义推荐下发历史的存储接口
type Store interface {
	// GetRecent 获取用户在指定 source 下最近 N 天被推荐过的 track_id（去重）
	GetRecent(userID string, source string, days int) ([]int, error)
	// Save 保存一批新下发的推荐
	Save(userID string, source string, trackIDs []int) error
	// Cleanup 删除超过保留期的记录
	Cleanup(retainDays int) error
}

// FileStore 基于 JSONL 文件的历史存储实现
type FileStore struct {
	filePath string
	mu       sync.RWMutex
	records  []Record // 内存缓存，用于快速查询
}

// NewFileStore 创建一个新的 FileStore
// 如果文件不存在，会自动创建
func NewFileStore(filePath string) (*FileStore, error) {
	fs := &FileStore{
		filePath: filePath,
		records:  make([]Record, 0),
	}

	if err := fs.load(); err != nil {
		return nil, err
	}

	return fs, nil
}

// load 从文件加载所有历史记录到内存
func (s *FileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.filePath, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	s.records = s.records[:0]
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			// 损坏的行直接跳过
			continue
		}
		s.records = append(s.records, record)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to scan history file: %w", err)
	}

	return nil
}

// GetRecent 获取用户最近 N 天被推荐过的 track_id
// 返回顺序为记录写入顺序，重复的 track_id 只保留第一次出现
func (s *FileStore) GetRecent(userID string, source string, days int) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Unix() - int64(days)*24*60*60

	// 全量扫描对这个量级足够；数据变大可以换成 map[userID][]Record 索引
	seen := make(map[int]struct{})
	var result []int
	for _, r := range s.records {
		if r.UserID != userID || r.Source != source || r.Timestamp < cutoff {
			continue
		}
		if _, ok := seen[r.TrackID]; ok {
			continue
		}
		seen[r.TrackID] = struct{}{}
		result = append(result, r.TrackID)
	}

	return result, nil
}

// Save 把新下发的推荐追加到文件和内存
func (s *FileStore) Save(userID string, source string, trackIDs []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open history file for appending: %w", err)
	}
	defer f.Close()

	now := time.Now().Unix()
	encoder := json.NewEncoder(f)

	for _, id := range trackIDs {
		record := Record{
			UserID:    userID,
			TrackID:   id,
			Source:    source,
			Timestamp: now,
		}

		if err := encoder.Encode(record); err != nil {
			return fmt.Errorf("failed to write history record: %w", err)
		}

		s.records = append(s.records, record)
	}

	return nil
}

// Cleanup 删除超过 retainDays 的记录并重写文件
// 先写临时文件再原子替换，避免清理中途崩溃丢数据
func (s *FileStore) Cleanup(retainDays int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Unix() - int64(retainDays)*24*60*60

	kept := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		if r.Timestamp >= cutoff {
			kept = append(kept, r)
		}
	}

	tmpPath := s.filePath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temp history file: %w", err)
	}

	encoder := json.NewEncoder(f)
	for _, r := range kept {
		if err := encoder.Encode(r); err != nil {
			f.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to write history record: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp history file: %w", err)
	}

	if err := os.Rename(tmpPath, s.filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace history file: %w", err)
	}

	s.records = kept
	return nil
}
