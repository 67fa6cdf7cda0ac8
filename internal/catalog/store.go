package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Aliuddin002/recommendation/internal/model"
)

// 必需的 CSV 列名，与清洗后的数据集保持一致
const (
	colID     = "track_id"
	colTitle  = "title"
	colGenre  = "genre_top"
	colArtist = "artist_name"
)

// Store 是只读的内存曲库表
// 进程启动时构建一次，之后所有请求并发只读，因此不需要任何锁
type Store struct {
	tracks []model.Track
	byID   map[int]model.Track
}

// NewStoreFromCSV 从 CSV 文件构建 Store
// 文件缺失、表头缺列、track_id 非法或重复都视为启动失败，由调用方决定退出
func NewStoreFromCSV(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer f.Close()

	return newStore(csv.NewReader(f))
}

// NewStoreFromTracks 直接从内存数据构建 Store，主要供测试使用
func NewStoreFromTracks(tracks []model.Track) (*Store, error) {
	s := &Store{byID: make(map[int]model.Track, len(tracks))}
	for _, t := range tracks {
		if _, exists := s.byID[t.ID]; exists {
			return nil, fmt.Errorf("duplicate track_id: %d", t.ID)
		}
		s.tracks = append(s.tracks, t)
		s.byID[t.ID] = t
	}
	return s, nil
}

func newStore(r *csv.Reader) (*Store, error) {
	// 数据集可能带有额外的列，按表头定位需要的列即可
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog header: %w", err)
	}

	colIdx := make(map[string]int, len(header))
	for i, name := range header {
		colIdx[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colID, colTitle, colGenre, colArtist} {
		if _, ok := colIdx[required]; !ok {
			return nil, fmt.Errorf("catalog missing required column: %s", required)
		}
	}

	s := &Store{byID: make(map[int]model.Track)}

	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog row: %w", err)
		}
		line++

		field := func(col string) string {
			i := colIdx[col]
			if i >= len(record) {
				return ""
			}
			return record[i]
		}

		id, err := strconv.Atoi(strings.TrimSpace(field(colID)))
		if err != nil {
			return nil, fmt.Errorf("invalid track_id at line %d: %w", line, err)
		}
		if _, exists := s.byID[id]; exists {
			return nil, fmt.Errorf("duplicate track_id %d at line %d", id, line)
		}

		t := model.Track{
			ID:     id,
			Title:  field(colTitle),
			Genre:  field(colGenre),
			Artist: field(colArtist),
		}
		s.tracks = append(s.tracks, t)
		s.byID[id] = t
	}

	return s, nil
}

// Get 按 track_id 查找歌曲
func (s *Store) Get(id int) (model.Track, bool) {
	t, ok := s.byID[id]
	return t, ok
}

// Tracks 返回全部歌曲，调用方必须只读
func (s *Store) Tracks() []model.Track {
	return s.tracks
}

// Len 返回曲库大小
func (s *Store) Len() int {
	return len(s.tracks)
}
