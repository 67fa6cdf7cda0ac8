package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Aliuddin002/recommendation/internal/history"
	"github.com/Aliuddin002/recommendation/internal/logger"
	"github.com/Aliuddin002/recommendation/internal/model"
	"github.com/Aliuddin002/recommendation/internal/recommend"
	"github.com/Aliuddin002/recommendation/internal/task"
	"github.com/Aliuddin002/recommendation/internal/user"

	"github.com/gin-gonic/gin"
)

// 请求可用的意图标签
// 两者走同一条聚合链路，仅在空种子兜底时读取不同的数据源
const (
	SourceFavorites = "favorites"
	SourceHistory   = "history"
)

// Config 是服务器的运行参数
type Config struct {
	DefaultTopK  int // 请求未指定 top_k 时的默认值
	LookbackDays int // history 兜底和历史查询的回看天数
}

// Server 代表 HTTP API 服务器
type Server struct {
	router       *gin.Engine
	userProvider user.Provider
	recommender  *recommend.Recommender
	historyStore history.Store
	tasks        *task.Manager
	cfg          Config
}

// NewServer 创建新的 HTTP 服务器
func NewServer(up user.Provider, rec *recommend.Recommender, hs history.Store, tm *task.Manager, cfg Config) *Server {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = recommend.DefaultAggregateTopK
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 7
	}

	s := &Server{
		router:       gin.Default(),
		userProvider: up,
		recommender:  rec,
		historyStore: hs,
		tasks:        tm,
		cfg:          cfg,
	}
	s.router.Use(s.corsMiddleware())
	s.setupRoutes()
	return s
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// Run 启动服务器
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func (s *Server) setupRoutes() {
	// 存活探针不需要鉴权
	s.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Recommendation API is running"})
	})
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.router.Group("/api/v1")

	// 中间件：Token 鉴权
	v1.Use(s.authMiddleware())

	// 推荐接口 - 使用路径参数传递意图标签
	v1.POST("/recommend/:source", s.handleRecommend)
	v1.POST("/recommend/:source/async", s.handleRecommendAsync)
	v1.GET("/tasks/:id", s.handleGetTask)
	v1.GET("/history", s.handleHistory)
}

// authMiddleware 鉴权中间件
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		token := parts[1]
		u, err := s.userProvider.GetUserByToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("user", u)
		c.Next()
	}
}

// RecommendRequest 是推荐接口的请求体
// track_ids 为空时使用用户的收藏或下发历史兜底
type RecommendRequest struct {
	TrackIDs []int `json:"track_ids"`
	TopK     int   `json:"top_k"`
}

// prepareRecommend 做参数校验并解析出最终的种子列表和 top_k
// 校验失败时直接写出 4xx 响应并返回 false
func (s *Server) prepareRecommend(c *gin.Context) (u *model.User, source string, seeds []int, topK int, ok bool) {
	source = c.Param("source")
	if source != SourceFavorites && source != SourceHistory {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source, use 'history' or 'favorites'"})
		return nil, "", nil, 0, false
	}

	// 请求体允许为空，此时走兜底逻辑
	var req RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return nil, "", nil, 0, false
	}

	if req.TopK < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "top_k must be positive"})
		return nil, "", nil, 0, false
	}
	topK = req.TopK
	if topK == 0 {
		topK = s.cfg.DefaultTopK
	}

	uVal, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return nil, "", nil, 0, false
	}
	u = uVal.(*model.User)

	seeds = req.TrackIDs
	if len(seeds) == 0 {
		seeds = s.fallbackSeeds(u, source)
	}
	if len(seeds) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no track IDs provided"})
		return nil, "", nil, 0, false
	}

	return u, source, seeds, topK, true
}

// fallbackSeeds 在请求未携带种子时给出默认种子：
// favorites 用用户配置的收藏，history 用最近的下发记录
func (s *Server) fallbackSeeds(u *model.User, source string) []int {
	if source == SourceFavorites {
		return u.Favorites
	}

	recent, err := s.historyStore.GetRecent(u.ID, SourceHistory, s.cfg.LookbackDays)
	if err != nil {
		logger.Error("Failed to load history seeds for user %s: %v", u.ID, err)
		return nil
	}
	return recent
}

// recommendFor 把意图标签映射到对应的聚合入口
// 两个入口目前行为一致，映射只发生在这一层，核心不感知标签
func (s *Server) recommendFor(source string, seeds []int, topK int) []model.Candidate {
	if source == SourceHistory {
		return s.recommender.FromHistory(seeds, topK)
	}
	return s.recommender.FromFavorites(seeds, topK)
}

// handleRecommend 处理同步推荐请求
// POST /api/v1/recommend/:source
func (s *Server) handleRecommend(c *gin.Context) {
	u, source, seeds, topK, ok := s.prepareRecommend(c)
	if !ok {
		return
	}

	candidates := s.recommendFor(source, seeds, topK)
	if candidates == nil {
		candidates = []model.Candidate{}
	}

	// 异步保存下发记录
	s.saveServed(u.ID, source, candidates)

	c.JSON(http.StatusOK, gin.H{
		"source": source,
		"items":  candidates,
	})
}

// handleRecommendAsync 处理异步推荐请求，立即返回任务 ID
// POST /api/v1/recommend/:source/async
func (s *Server) handleRecommendAsync(c *gin.Context) {
	u, source, seeds, topK, ok := s.prepareRecommend(c)
	if !ok {
		return
	}

	t := s.tasks.NewTask()
	if err := s.tasks.UpdateStatus(t.ID, task.StatusProcessing); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	go func() {
		candidates := s.recommendFor(source, seeds, topK)
		if candidates == nil {
			candidates = []model.Candidate{}
		}
		if err := s.tasks.SetResult(t.ID, candidates); err != nil {
			logger.Error("Failed to store task result %s: %v", t.ID, err)
			return
		}
		s.saveServed(u.ID, source, candidates)
	}()

	c.JSON(http.StatusAccepted, gin.H{"task_id": t.ID})
}

// handleGetTask 查询异步任务状态
// GET /api/v1/tasks/:id
func (s *Server) handleGetTask(c *gin.Context) {
	t, err := s.tasks.GetTask(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, t)
}

// handleHistory 查询当前用户最近的下发记录
// GET /api/v1/history?source=favorites&days=7
func (s *Server) handleHistory(c *gin.Context) {
	uVal, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}
	u := uVal.(*model.User)

	source := c.DefaultQuery("source", SourceFavorites)
	if source != SourceFavorites && source != SourceHistory {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source, use 'history' or 'favorites'"})
		return
	}

	days := s.cfg.LookbackDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
			return
		}
		days = parsed
	}

	trackIDs, err := s.historyStore.GetRecent(u.ID, source, days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if trackIDs == nil {
		trackIDs = []int{}
	}

	c.JSON(http.StatusOK, gin.H{
		"source":    source,
		"track_ids": trackIDs,
	})
}

// saveServed 异步记录本次下发的推荐，失败只打日志不影响响应
func (s *Server) saveServed(userID, source string, candidates []model.Candidate) {
	if len(candidates) == 0 {
		return
	}

	trackIDs := make([]int, 0, len(candidates))
	for _, c := range candidates {
		trackIDs = append(trackIDs, c.ID)
	}

	go func() {
		if err := s.historyStore.Save(userID, source, trackIDs); err != nil {
			logger.Error("Failed to save history async: %v", err)
		}
	}()
}
