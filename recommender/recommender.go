// Package recommender 是编排层：装配数据源、向量索引、协同召回与重排，
// 对外提供按策略打分的相似路线推荐。
package recommender

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trailteam/trailkit/core"
	"github.com/trailteam/trailkit/feature"
	"github.com/trailteam/trailkit/filter"
	"github.com/trailteam/trailkit/pipeline"
	"github.com/trailteam/trailkit/pkg/conv"
	"github.com/trailteam/trailkit/recall"
	"github.com/trailteam/trailkit/rerank"
	"github.com/trailteam/trailkit/vector"
)

const scalerFile = "scaler.json"

// Options 是 Recommender 的装配参数。
type Options struct {
	// Source 源数据（CSV / Feast）
	Source feature.RecordSource

	// TrainedDir 离线训练产物目录，EnsureReady 最优先尝试
	TrainedDir string

	// CacheDir 服务自建索引的落盘目录；为空不落盘
	CacheDir string

	// Metric 距离度量，缺省 cosine
	Metric core.Metric

	// Store 可选的 KV 存储：协同分数缓存、已完成集合、离线热度榜
	Store core.KeyValueStore

	// PopularityKey 离线热度榜 zset 的 key；为空时热度从交互日志统计
	PopularityKey string

	// OverfetchFactor 含 MMR 策略的候选超拉倍数，缺省 10
	OverfetchFactor int

	// DefaultLambda MMR 默认相关性权重，缺省 0.3（均衡档）
	DefaultLambda float64

	// EnsembleContentWeight 融合策略中内容分数权重，缺省 0.6
	EnsembleContentWeight float64

	// CollabTTLSeconds 协同分数缓存有效期（秒），缺省 30 分钟
	CollabTTLSeconds int

	Logger *zap.Logger
}

// Recommender 持有一代完整的推荐状态：索引、scaler、交互矩阵、热度表。
//
// 并发模型：一把互斥锁守护全部状态，重建即整代替换——索引与 idmap、
// scaler 永远作为一个单元换入，读请求拿到的要么是旧代要么是新代，
// 不会见到半新半旧的组合。
type Recommender struct {
	opts   Options
	logger *zap.Logger

	mu    sync.Mutex
	ready bool
	state *state
}

// state 是一代推荐状态，整体构建、整体替换。
type state struct {
	index      *vector.FlatIndex
	scaler     *feature.StandardScaler
	records    map[string]feature.Record
	collab     *recall.CollabRecall
	popularity *recall.PopularityTable
	seen       map[string]map[string]bool
}

// New 创建 Recommender，不做任何 IO；首次 Recommend 或显式 EnsureReady
// 时才加载/构建状态。
func New(opts Options) *Recommender {
	if opts.Metric == "" {
		opts.Metric = core.MetricCosine
	}
	if opts.OverfetchFactor <= 0 {
		opts.OverfetchFactor = 10
	}
	if opts.DefaultLambda <= 0 || opts.DefaultLambda > 1 {
		opts.DefaultLambda = 0.3
	}
	if opts.EnsembleContentWeight <= 0 || opts.EnsembleContentWeight > 1 {
		opts.EnsembleContentWeight = 0.6
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recommender{opts: opts, logger: logger}
}

// EnsureReady 保证推荐状态可用，按回退链尝试：
//
//	训练产物目录 → 缓存产物目录 → 从源数据重建
//
// 任一环节成功即就绪；全部失败返回最后一个错误。幂等，已就绪直接返回。
func (r *Recommender) EnsureReady(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensureReadyLocked(ctx)
}

func (r *Recommender) ensureReadyLocked(ctx context.Context) error {
	if r.ready {
		return nil
	}

	st, err := r.buildState(ctx, false)
	if err != nil {
		return err
	}
	r.state = st
	r.ready = true
	return nil
}

// Rebuild 从源数据整体重建一代状态并原子换入（忽略已有产物）。
// 重建期间旧状态继续服务，换入在锁内完成。
func (r *Recommender) Rebuild(ctx context.Context) error {
	st, err := r.buildState(ctx, true)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.state = st
	r.ready = true
	r.mu.Unlock()

	r.logger.Info("recommender state rebuilt",
		zap.Int("items", st.index.NTotal()),
		zap.Int("users", st.collab.Matrix.Users()))
	return nil
}

// buildState 构建一代完整状态。force 为 true 时跳过产物加载，直接重建索引。
func (r *Recommender) buildState(ctx context.Context, force bool) (*state, error) {
	if r.opts.Source == nil {
		return nil, core.NewDomainError(core.ModuleRecommender, core.ErrorCodeInvalidInput,
			"recommender: no record source configured")
	}

	ds, err := r.opts.Source.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(ds.Records) == 0 {
		return nil, core.NewDomainError(core.ModuleRecommender, core.ErrorCodeEmptyData,
			"recommender: source returned zero records")
	}

	st := &state{records: make(map[string]feature.Record, len(ds.Records))}
	for _, rec := range ds.Records {
		st.records[rec.ID] = rec
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		idx, scaler, err := r.resolveIndex(gctx, ds, force)
		if err != nil {
			return err
		}
		st.index, st.scaler = idx, scaler
		return nil
	})

	g.Go(func() error {
		matrix := recall.BuildInteractionMatrix(ds.Interactions)
		st.collab = &recall.CollabRecall{
			Matrix:     matrix,
			Cache:      r.opts.Store,
			TTLSeconds: r.opts.CollabTTLSeconds,
			Logger:     r.logger,
		}
		seen := make(map[string]map[string]bool)
		for _, in := range ds.Interactions {
			if in.UserID == "" || in.ItemID == "" {
				continue
			}
			if seen[in.UserID] == nil {
				seen[in.UserID] = make(map[string]bool)
			}
			seen[in.UserID][in.ItemID] = true
		}
		st.seen = seen
		return nil
	})

	g.Go(func() error {
		st.popularity = r.resolvePopularity(gctx, ds)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return st, nil
}

// resolveIndex 按回退链拿到索引与 scaler：产物目录 → 从数据集重建。
func (r *Recommender) resolveIndex(ctx context.Context, ds *feature.Dataset, force bool) (*vector.FlatIndex, *feature.StandardScaler, error) {
	if !force {
		for _, dir := range []string{r.opts.TrainedDir, r.opts.CacheDir} {
			if dir == "" {
				continue
			}
			idx, scaler, err := loadArtifacts(dir)
			if err != nil {
				r.logger.Warn("index artifacts unusable, trying next source",
					zap.String("dir", dir), zap.Error(err))
				continue
			}
			r.logger.Info("index loaded from artifacts",
				zap.String("dir", dir), zap.Int("items", idx.NTotal()))
			return idx, scaler, nil
		}
	}

	ids, matrix, scaler, err := (&feature.Vectorizer{}).FitTransform(ds.Records)
	if err != nil {
		return nil, nil, err
	}
	idx, err := vector.Build(r.opts.Metric, ids, matrix)
	if err != nil {
		return nil, nil, err
	}
	r.logger.Info("index built from source data", zap.Int("items", idx.NTotal()))

	if r.opts.CacheDir != "" {
		if err := saveArtifacts(r.opts.CacheDir, idx, scaler); err != nil {
			// 落盘失败不影响本代服务，下次启动多付一次重建代价
			r.logger.Warn("persist index artifacts failed",
				zap.String("dir", r.opts.CacheDir), zap.Error(err))
		}
	}
	return idx, scaler, nil
}

// resolvePopularity 优先读离线热度榜，不可用时从交互日志统计。
func (r *Recommender) resolvePopularity(ctx context.Context, ds *feature.Dataset) *recall.PopularityTable {
	if r.opts.Store != nil && r.opts.PopularityKey != "" {
		table, err := recall.PopularityFromStore(ctx, r.opts.Store, r.opts.PopularityKey, 1000)
		if err == nil {
			return table
		}
		r.logger.Warn("popularity zset unusable, counting interactions",
			zap.String("key", r.opts.PopularityKey), zap.Error(err))
	}
	return recall.BuildPopularity(ds.Interactions)
}

func loadArtifacts(dir string) (*vector.FlatIndex, *feature.StandardScaler, error) {
	idx, err := vector.Load(dir)
	if err != nil {
		return nil, nil, err
	}
	raw, err := os.ReadFile(filepath.Join(dir, scalerFile))
	if err != nil {
		return nil, nil, core.NewDomainError(core.ModuleRecommender, core.ErrorCodeLoadFailed,
			"recommender: scaler artifact missing: "+err.Error())
	}
	var scaler feature.StandardScaler
	if err := json.Unmarshal(raw, &scaler); err != nil {
		return nil, nil, core.NewDomainError(core.ModuleRecommender, core.ErrorCodeLoadFailed,
			"recommender: scaler artifact corrupt: "+err.Error())
	}
	if len(scaler.Mean) != idx.Dim() || len(scaler.Std) != idx.Dim() {
		return nil, nil, core.NewDomainError(core.ModuleRecommender, core.ErrorCodeLoadFailed,
			"recommender: scaler and index dimensions are out of step")
	}
	return idx, &scaler, nil
}

func saveArtifacts(dir string, idx *vector.FlatIndex, scaler *feature.StandardScaler) error {
	if err := idx.Save(dir); err != nil {
		return err
	}
	raw, err := json.Marshal(scaler)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, scalerFile), raw, 0o644)
}

// Recommend 执行一次推荐请求。
//
// 流程：参数规整 → EnsureReady → 策略打分产出候选池 → Pipeline
//（元数据补全 → 已见过滤 / 表达式过滤 → MMR 或 Top-N）。
//
// 查询锚点不在索引中不是错误，返回空结果。
func (r *Recommender) Recommend(ctx context.Context, query *core.Query) ([]*core.Item, error) {
	if query == nil || query.ItemID == "" {
		return nil, core.NewDomainError(core.ModuleRecommender, core.ErrorCodeInvalidInput,
			"recommender: query item id is required")
	}
	q := *query
	if q.K <= 0 {
		q.K = 10
	}
	if q.Strategy == "" {
		q.Strategy = core.StrategyContent
	}
	if !q.Strategy.Valid() {
		return nil, core.NewDomainError(core.ModuleRecommender, core.ErrorCodeInvalidInput,
			"recommender: unknown strategy: "+string(q.Strategy))
	}
	// 未传（nil）或非法（NaN / 负值）使用服务默认值；显式 0.0 是合法的纯多样性档
	lambda := r.opts.DefaultLambda
	if q.Lambda != nil && !math.IsNaN(*q.Lambda) && *q.Lambda >= 0 {
		lambda = *q.Lambda
	}
	if lambda > 1 {
		lambda = 1
	}
	q.Lambda = &lambda

	r.mu.Lock()
	if err := r.ensureReadyLocked(ctx); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	st := r.state
	r.mu.Unlock()

	items, err := r.score(ctx, st, &q)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []*core.Item{}, nil
	}

	return r.postProcess(ctx, st, &q, items)
}

// postProcess 在策略打分之后执行过滤、重排与元数据补全。
func (r *Recommender) postProcess(ctx context.Context, st *state, q *core.Query, items []*core.Item) ([]*core.Item, error) {
	filters := []filter.Filter{
		&filter.SeenFilter{Seen: st.seen, Store: r.opts.Store},
	}
	if expr, ok := conv.ToString(q.Params["filter_expr"]); ok && expr != "" {
		filters = append(filters, filter.NewExprFilter(expr))
	}

	// 元数据补全在过滤之前，表达式过滤依赖 meta 字段
	nodes := []pipeline.Node{
		&EnrichNode{Records: st.records},
		&filter.FilterNode{Filters: filters},
	}
	if q.Strategy.UsesMMR() {
		nodes = append(nodes, &rerank.MMRNode{Lambda: *q.Lambda, TopM: q.K})
	} else {
		nodes = append(nodes, &rerank.TopNNode{N: q.K})
	}

	return (&pipeline.Pipeline{Nodes: nodes}).Run(ctx, q, items)
}
