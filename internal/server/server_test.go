package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Aliuddin002/recommendation/internal/catalog"
	"github.com/Aliuddin002/recommendation/internal/history"
	"github.com/Aliuddin002/recommendation/internal/model"
	"github.com/Aliuddin002/recommendation/internal/recommend"
	"github.com/Aliuddin002/recommendation/internal/task"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider 用内存 map 替代 users.yaml
type fakeProvider struct {
	users map[string]*model.User
}

func (p *fakeProvider) GetUser(userID string) (*model.User, error) {
	for _, u := range p.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user not found: %s", userID)
}

func (p *fakeProvider) GetUserByToken(token string) (*model.User, error) {
	u, ok := p.users[token]
	if !ok {
		return nil, fmt.Errorf("invalid token")
	}
	return u, nil
}

type recommendResponse struct {
	Source string            `json:"source"`
	Items  []model.Candidate `json:"items"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := catalog.NewStoreFromTracks([]model.Track{
		{ID: 1, Title: "Track 1", Genre: "Rock", Artist: "A"},
		{ID: 2, Title: "Track 2", Genre: "Rock", Artist: "B"},
		{ID: 3, Title: "Track 3", Genre: "Jazz", Artist: "A"},
		{ID: 4, Title: "Track 4", Genre: "Jazz", Artist: "C"},
	})
	require.NoError(t, err)

	historyStore, err := history.NewFileStore(filepath.Join(t.TempDir(), "history.jsonl"))
	require.NoError(t, err)

	provider := &fakeProvider{users: map[string]*model.User{
		"token-fav":  {ID: "u1", Name: "Alice", Token: "token-fav", Favorites: []int{1}},
		"token-none": {ID: "u2", Name: "Bob", Token: "token-none"},
	}}

	rec := recommend.NewRecommender(store, recommend.DefaultDiversitySeed)
	return NewServer(provider, rec, historyStore, task.NewManager(), Config{
		DefaultTopK:  10,
		LookbackDays: 7,
	})
}

func doRequest(s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = doRequest(s, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/recommend/favorites", "", `{"track_ids":[1]}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(s, http.MethodPost, "/api/v1/recommend/favorites", "wrong-token", `{"track_ids":[1]}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInvalidSource(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/recommend/trending", "token-fav", `{"track_ids":[1]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid source")
}

func TestRecommendFavorites(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/recommend/favorites", "token-fav", `{"track_ids":[1],"top_k":2}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp recommendResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "favorites", resp.Source)

	// 种子 1 (Rock/A)：2 同流派 0.7，3 同歌手 0.3，4 来自跨流派抽样
	require.NotEmpty(t, resp.Items)
	assert.Equal(t, 2, resp.Items[0].ID)
	assert.Equal(t, 0.7, resp.Items[0].Similarity)

	seen := make(map[int]struct{})
	for _, item := range resp.Items {
		assert.NotEqual(t, 1, item.ID, "seed must not be recommended back")
		_, dup := seen[item.ID]
		assert.False(t, dup)
		seen[item.ID] = struct{}{}
	}
}

func TestRecommendHistorySourceIdentical(t *testing.T) {
	s := newTestServer(t)

	wFav := doRequest(s, http.MethodPost, "/api/v1/recommend/favorites", "token-fav", `{"track_ids":[1],"top_k":3}`)
	wHist := doRequest(s, http.MethodPost, "/api/v1/recommend/history", "token-fav", `{"track_ids":[1],"top_k":3}`)
	require.Equal(t, http.StatusOK, wFav.Code)
	require.Equal(t, http.StatusOK, wHist.Code)

	var fav, hist recommendResponse
	require.NoError(t, json.Unmarshal(wFav.Body.Bytes(), &fav))
	require.NoError(t, json.Unmarshal(wHist.Body.Bytes(), &hist))
	assert.Equal(t, fav.Items, hist.Items)
}

func TestRecommendFallsBackToUserFavorites(t *testing.T) {
	s := newTestServer(t)

	// 空请求体：使用用户配置的收藏作为种子
	w := doRequest(s, http.MethodPost, "/api/v1/recommend/favorites", "token-fav", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp recommendResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Items)
}

func TestRecommendNoSeeds(t *testing.T) {
	s := newTestServer(t)

	// 用户没有收藏且请求未带种子
	w := doRequest(s, http.MethodPost, "/api/v1/recommend/favorites", "token-none", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no track IDs provided")
}

func TestRecommendUnknownSeeds(t *testing.T) {
	s := newTestServer(t)

	// 全部种子未知：返回空列表而不是错误
	w := doRequest(s, http.MethodPost, "/api/v1/recommend/favorites", "token-fav", `{"track_ids":[998,999]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp recommendResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Items)
	assert.Contains(t, w.Body.String(), `"items":[]`)
}

func TestRecommendNegativeTopK(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/recommend/favorites", "token-fav", `{"track_ids":[1],"top_k":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecommendAsync(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/recommend/favorites/async", "token-fav", `{"track_ids":[1],"top_k":2}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var accepted struct {
		TaskID string `json:"task_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	require.NotEmpty(t, accepted.TaskID)

	var finished task.Task
	require.Eventually(t, func() bool {
		tw := doRequest(s, http.MethodGet, "/api/v1/tasks/"+accepted.TaskID, "token-fav", "")
		if tw.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(tw.Body.Bytes(), &finished); err != nil {
			return false
		}
		return finished.Status == task.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	require.NotEmpty(t, finished.Result)
	assert.Equal(t, 2, finished.Result[0].ID)
	assert.Equal(t, 0.7, finished.Result[0].Similarity)
}

func TestTaskNotFound(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/v1/tasks/no-such-id", "token-fav", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistoryRecordsServedTracks(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/recommend/favorites", "token-fav", `{"track_ids":[1],"top_k":2}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp recommendResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Items)

	// 下发记录是异步写入的
	require.Eventually(t, func() bool {
		hw := doRequest(s, http.MethodGet, "/api/v1/history?source=favorites", "token-fav", "")
		if hw.Code != http.StatusOK {
			return false
		}
		var hist struct {
			TrackIDs []int `json:"track_ids"`
		}
		if err := json.Unmarshal(hw.Body.Bytes(), &hist); err != nil {
			return false
		}
		return len(hist.TrackIDs) == len(resp.Items)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHistoryInvalidParams(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/v1/history?days=zero", "token-fav", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(s, http.MethodGet, "/api/v1/history?source=trending", "token-fav", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
