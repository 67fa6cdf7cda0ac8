package user

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Aliuddin002/recommendation/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticProvider(t *testing.T) {
	p := &StaticProvider{
		users: map[string]*model.User{
			"u1": {ID: "u1", Name: "Test User", Token: "t1", Favorites: []int{10, 20}},
		},
		tokenIndex: map[string]*model.User{
			"t1": {ID: "u1", Name: "Test User", Token: "t1", Favorites: []int{10, 20}},
		},
	}

	u, err := p.GetUser("u1")
	require.NoError(t, err)
	assert.Equal(t, "Test User", u.Name)
	assert.Equal(t, []int{10, 20}, u.Favorites)

	u2, err := p.GetUserByToken("t1")
	require.NoError(t, err)
	assert.Equal(t, "u1", u2.ID)

	_, err = p.GetUser("u2")
	assert.Error(t, err, "expected error for non-existent user")

	_, err = p.GetUserByToken("bad")
	assert.Error(t, err, "expected error for unknown token")
}

func TestNewStaticProviderFromYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "users.yaml")
	content := `users:
  - id: u1
    name: Alice
    token: token-1
    favorites: [1, 2, 3]
  - id: u2
    name: Bob
    token: token-2
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	p, err := NewStaticProvider(configPath)
	require.NoError(t, err)

	u, err := p.GetUserByToken("token-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, []int{1, 2, 3}, u.Favorites)

	u, err = p.GetUser("u2")
	require.NoError(t, err)
	assert.Empty(t, u.Favorites)
}

func TestNewStaticProviderMissingFile(t *testing.T) {
	_, err := NewStaticProvider(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
