package recommend

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/Aliuddin002/recommendation/internal/catalog"
	"github.com/Aliuddin002/recommendation/internal/model"
)

// 打分权重：流派一致占主导，歌手一致次之
// 两个条件相互独立、可叠加，因此单个候选的相似度只会是 0.0 / 0.3 / 0.7 / 1.0
const (
	genreWeight  = 0.7
	artistWeight = 0.3
)

const (
	// DefaultSeedTopK 单种子打分的默认 top_k
	DefaultSeedTopK = 5
	// DefaultAggregateTopK 多种子聚合的默认 top_k
	DefaultAggregateTopK = 10
	// DefaultDiversitySeed 多样性抽样的默认随机种子，保证结果可复现
	DefaultDiversitySeed = 42

	perSeedBudget    = 3 // 聚合时每个种子的固定子预算
	diverseDrawCount = 5 // 每次打分随机抽取的跨流派候选数上限
	extraSlots       = 3 // 单种子结果去重后允许超出 top_k 的名额
)

// Normalize 把原始属性值转成可比较的规范形式：
// 去掉首尾空白并统一小写，缺失值规范为空字符串。对任何输入都不会失败
func Normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// Recommender 基于浅层内容属性（流派/歌手）给曲库打分并排序
// 自身不持有可变状态，曲库只读，可被并发请求安全共享
type Recommender struct {
	store         *catalog.Store
	diversitySeed int64
}

// NewRecommender 创建一个 Recommender
// diversitySeed 控制多样性抽样的随机源，<=0 时使用默认值
func NewRecommender(store *catalog.Store, diversitySeed int64) *Recommender {
	if diversitySeed <= 0 {
		diversitySeed = DefaultDiversitySeed
	}
	return &Recommender{
		store:         store,
		diversitySeed: diversitySeed,
	}
}

// ScoreAgainstSeed 以单个种子为基准给全曲库打分，返回排序后的候选序列
// 种子不存在或曲库为空时返回空序列，不报错
// 结果不含种子自身，track_id 不重复，长度 <= topK+3
func (r *Recommender) ScoreAgainstSeed(seedID int, topK int) []model.Candidate {
	if topK <= 0 {
		topK = DefaultSeedTopK
	}

	seed, ok := r.store.Get(seedID)
	if !ok {
		return nil
	}

	seedGenre := Normalize(seed.Genre)
	seedArtist := Normalize(seed.Artist)

	// 候选集 = 除种子自身外的全部歌曲
	// 跨流派的候选同时进入多样性抽样池
	var scored []model.Candidate
	var diversePool []model.Candidate
	for _, t := range r.store.Tracks() {
		if t.ID == seedID {
			continue
		}

		similarity := 0.0
		sameGenre := Normalize(t.Genre) == seedGenre
		if sameGenre {
			similarity += genreWeight
		}
		if Normalize(t.Artist) == seedArtist {
			similarity += artistWeight
		}

		c := model.Candidate{Track: t, Similarity: similarity}
		scored = append(scored, c)
		if !sameGenre {
			diversePool = append(diversePool, c)
		}
	}

	// 按相似度稳定降序，同分候选保持曲库扫描顺序
	// 主排序池取 2*topK，给多样性环节留出余量而不挤占主排序
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	pool := scored
	if len(pool) > topK*2 {
		pool = pool[:topK*2]
	}

	// 跨流派随机抽样，避免结果过度集中在种子流派
	// 每次调用都用固定种子重建生成器：结果可复现，并发请求之间也不共享 rand 状态
	rng := rand.New(rand.NewSource(r.diversitySeed))
	diverse := sampleCandidates(diversePool, diverseDrawCount, rng)

	ranked := pool
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	// 主排序前 topK 在前、多样性抽样在后，按 track_id 去重保留先出现者
	// 这样排进 topK 的歌不会被抽样中的同一首歌顶掉
	merged := make([]model.Candidate, 0, len(ranked)+len(diverse))
	merged = append(merged, ranked...)
	merged = append(merged, diverse...)
	merged = dedupByID(merged)
	if len(merged) > topK+extraSlots {
		merged = merged[:topK+extraSlots]
	}
	return merged
}

// Aggregate 聚合多个种子的打分结果并取全局 top_k
// 种子列表可以包含重复或未知的 ID：未知种子不贡献任何候选，列表为空返回空序列
func (r *Recommender) Aggregate(seedIDs []int, topK int) []model.Candidate {
	if topK <= 0 {
		topK = DefaultAggregateTopK
	}

	// 每个种子固定子预算 3，按种子顺序累积
	// 累积顺序同时是后续同分候选的平局基准：靠前种子的候选优先
	var all []model.Candidate
	for _, id := range seedIDs {
		all = append(all, r.ScoreAgainstSeed(id, perSeedBudget)...)
	}

	all = dedupByID(all)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Similarity > all[j].Similarity
	})
	if len(all) > topK {
		all = all[:topK]
	}
	return all
}

// FromFavorites 基于收藏列表推荐
func (r *Recommender) FromFavorites(favoriteIDs []int, topK int) []model.Candidate {
	return r.Aggregate(favoriteIDs, topK)
}

// FromHistory 基于播放历史推荐
// 目前与 FromFavorites 行为完全一致，仅在语义上区分入口，方便将来单独演进
func (r *Recommender) FromHistory(historyIDs []int, topK int) []model.Candidate {
	return r.Aggregate(historyIDs, topK)
}

// sampleCandidates 从 pool 中不放回地随机抽取至多 n 个
// 池子不足 n 时全部取出，不补位
func sampleCandidates(pool []model.Candidate, n int, rng *rand.Rand) []model.Candidate {
	if n > len(pool) {
		n = len(pool)
	}
	if n == 0 {
		return nil
	}

	picked := make([]model.Candidate, 0, n)
	for _, i := range rng.Perm(len(pool))[:n] {
		picked = append(picked, pool[i])
	}
	return picked
}

// dedupByID 按 track_id 去重，保留先出现的候选
func dedupByID(candidates []model.Candidate) []model.Candidate {
	seen := make(map[int]struct{}, len(candidates))
	var result []model.Candidate
	for _, c := range candidates {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		result = append(result, c)
	}
	return result
}
