package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Aliuddin002/recommendation/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracks.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewStoreFromCSV(t *testing.T) {
	// 列顺序打乱并带额外列，按表头定位
	path := writeCSV(t, `artist_name,track_id,listens,title,genre_top
A,1,9000,First,Rock
B,2,120,Second,Jazz
,3,5,Third,
`)

	store, err := NewStoreFromCSV(path)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Len())

	track, ok := store.Get(1)
	require.True(t, ok)
	assert.Equal(t, model.Track{ID: 1, Title: "First", Genre: "Rock", Artist: "A"}, track)

	// 空白单元格加载为空字符串
	track, ok = store.Get(3)
	require.True(t, ok)
	assert.Equal(t, "", track.Genre)
	assert.Equal(t, "", track.Artist)

	_, ok = store.Get(99)
	assert.False(t, ok)
}

func TestNewStoreFromCSVMissingFile(t *testing.T) {
	_, err := NewStoreFromCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestNewStoreFromCSVMissingColumn(t *testing.T) {
	path := writeCSV(t, `track_id,title,genre_top
1,First,Rock
`)
	_, err := NewStoreFromCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artist_name")
}

func TestNewStoreFromCSVInvalidID(t *testing.T) {
	path := writeCSV(t, `track_id,title,genre_top,artist_name
abc,First,Rock,A
`)
	_, err := NewStoreFromCSV(path)
	assert.Error(t, err)
}

func TestNewStoreFromCSVDuplicateID(t *testing.T) {
	path := writeCSV(t, `track_id,title,genre_top,artist_name
1,First,Rock,A
1,Dup,Jazz,B
`)
	_, err := NewStoreFromCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate track_id")
}

func TestNewStoreFromTracksDuplicateID(t *testing.T) {
	_, err := NewStoreFromTracks([]model.Track{{ID: 1}, {ID: 1}})
	assert.Error(t, err)
}
