package model

// Track 代表曲库中的一首歌曲
// 字段名与清洗后数据集的列名保持一致，方便直接对照
type Track struct {
	ID     int    `json:"track_id"`
	Title  string `json:"title"`
	Genre  string `json:"genre_top"`
	Artist string `json:"artist_name"`
}

// Candidate 代表一次打分产出的候选项：歌曲 + 相对某个种子的相似度
// 只在单次请求内存在，不做任何持久化
type Candidate struct {
	Track
	Similarity float64 `json:"similarity"`
}
