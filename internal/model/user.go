package model

// User 代表系统中的用户信息
type User struct {
	ID        string `json:"id" yaml:"id"`
	Token     string `json:"-" yaml:"token"` // Token 用于鉴权，不序列化到 JSON
	Name      string `json:"name" yaml:"name"`
	Favorites []int  `json:"favorites" yaml:"favorites"` // 收藏的 track_id 列表，请求未带种子时作为默认种子
}
