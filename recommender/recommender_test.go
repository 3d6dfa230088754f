package recommender

import (
	"context"
	"math"
	"testing"

	"github.com/trailteam/trailkit/core"
	"github.com/trailteam/trailkit/feature"
	"github.com/trailteam/trailkit/store"
)

type fakeSource struct {
	ds *feature.Dataset
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Load(_ context.Context) (*feature.Dataset, error) {
	return f.ds, nil
}

// r0 与 r1 是近似的短距离路线，r3 是长距离大爬升路线。
// r0 没有任何交互（融合策略的退化锚点），r1/r2/r3 有交互历史。
func sampleDataset() *feature.Dataset {
	return &feature.Dataset{
		Records: []feature.Record{
			{ID: "r0", DistanceM: 5000, DurationS: 1800, ElevationGainM: 120, HRAvg: 140,
				Meta: map[string]any{"surface": "trail"}},
			{ID: "r1", DistanceM: 5100, DurationS: 1820, ElevationGainM: 125, HRAvg: 142,
				Meta: map[string]any{"surface": "trail"}},
			{ID: "r2", DistanceM: 5200, DurationS: 1860, ElevationGainM: 130, HRAvg: 148,
				Meta: map[string]any{"surface": "road"}},
			{ID: "r3", DistanceM: 21000, DurationS: 7200, ElevationGainM: 850, HRAvg: 155,
				Meta: map[string]any{"surface": "trail"}},
			{ID: "r4", DistanceM: 10000, DurationS: 3600, ElevationGainM: 300, HRAvg: 150,
				Meta: map[string]any{"surface": "road"}},
		},
		Interactions: []feature.Interaction{
			{UserID: "u1", ItemID: "r1"},
			{UserID: "u1", ItemID: "r2"},
			{UserID: "u2", ItemID: "r1"},
			{UserID: "u2", ItemID: "r2"},
			{UserID: "u2", ItemID: "r3"},
			{UserID: "u3", ItemID: "r3"},
		},
	}
}

func lambdaOf(v float64) *float64 { return &v }

func newTestRecommender(t *testing.T) *Recommender {
	t.Helper()
	kv := store.NewMemoryStore()
	t.Cleanup(func() { kv.Close() })
	return New(Options{
		Source: &fakeSource{ds: sampleDataset()},
		Metric: core.MetricCosine,
		Store:  kv,
	})
}

func TestRecommend_Content(t *testing.T) {
	ctx := context.Background()
	rec := newTestRecommender(t)

	items, err := rec.Recommend(ctx, &core.Query{ItemID: "r0", K: 3, Strategy: core.StrategyContent})
	if err != nil {
		t.Fatalf("Recommend 失败: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("结果数 = %d, 期望 3", len(items))
	}
	for i, it := range items {
		if it.ID == "r0" {
			t.Error("结果不应包含查询锚点自身")
		}
		if i > 0 && items[i].Score > items[i-1].Score {
			t.Errorf("分数必须降序: 第 %d 位 %.4f > 第 %d 位 %.4f",
				i, items[i].Score, i-1, items[i-1].Score)
		}
		if it.Meta["surface"] == nil {
			t.Errorf("%s 缺少补全的元数据", it.ID)
		}
	}
}

func TestRecommend_UnknownAnchor(t *testing.T) {
	rec := newTestRecommender(t)

	items, err := rec.Recommend(context.Background(),
		&core.Query{ItemID: "ghost", K: 3, Strategy: core.StrategyContent})
	if err != nil {
		t.Fatalf("未知锚点不是错误: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("未知锚点应返回空结果, 实际 %d 条", len(items))
	}
}

func TestRecommend_InvalidInput(t *testing.T) {
	rec := newTestRecommender(t)
	ctx := context.Background()

	if _, err := rec.Recommend(ctx, &core.Query{ItemID: "r0", Strategy: "pagerank"}); !core.IsInvalidInput(err) {
		t.Errorf("未知策略期望 INVALID_INPUT, 实际 %v", err)
	}
	if _, err := rec.Recommend(ctx, &core.Query{}); !core.IsInvalidInput(err) {
		t.Errorf("缺锚点期望 INVALID_INPUT, 实际 %v", err)
	}
}

func TestRecommend_ContentMMR_LambdaOne(t *testing.T) {
	ctx := context.Background()
	rec := newTestRecommender(t)

	content, err := rec.Recommend(ctx,
		&core.Query{ItemID: "r0", K: 3, Strategy: core.StrategyContent})
	if err != nil {
		t.Fatal(err)
	}
	mmr, err := rec.Recommend(ctx,
		&core.Query{ItemID: "r0", K: 3, Strategy: core.StrategyContentMMR, Lambda: lambdaOf(1.0)})
	if err != nil {
		t.Fatal(err)
	}

	if len(mmr) != len(content) {
		t.Fatalf("λ=1.0 结果数 = %d, 期望与 content 一致 %d", len(mmr), len(content))
	}
	for i := range content {
		if mmr[i].ID != content[i].ID {
			t.Errorf("λ=1.0 的 content_mmr 应与 content 同序: 第 %d 位 %s vs %s",
				i, mmr[i].ID, content[i].ID)
		}
	}
	// MMR 的最终分数是归一化相关性
	for _, it := range mmr {
		if it.Score < 0 || it.Score > 1 {
			t.Errorf("归一化分数越界: %s=%.4f", it.ID, it.Score)
		}
	}
}

func TestRecommend_EnsembleFallbackEqualsContent(t *testing.T) {
	ctx := context.Background()
	rec := newTestRecommender(t)

	// r0 无任何交互：融合策略必须与 content 完全一致（ID 与分数）
	content, err := rec.Recommend(ctx,
		&core.Query{ItemID: "r0", K: 3, Strategy: core.StrategyContent})
	if err != nil {
		t.Fatal(err)
	}
	ensemble, err := rec.Recommend(ctx,
		&core.Query{ItemID: "r0", K: 3, Strategy: core.StrategyEnsemble})
	if err != nil {
		t.Fatal(err)
	}

	if len(ensemble) != len(content) {
		t.Fatalf("退化结果数 = %d, 期望 %d", len(ensemble), len(content))
	}
	for i := range content {
		if ensemble[i].ID != content[i].ID || math.Abs(ensemble[i].Score-content[i].Score) > 1e-12 {
			t.Errorf("退化结果第 %d 位 %s/%.6f, 期望 %s/%.6f",
				i, ensemble[i].ID, ensemble[i].Score, content[i].ID, content[i].Score)
		}
		if lbl, ok := ensemble[i].GetLabel("fallback"); !ok || lbl.Value != "content" {
			t.Errorf("退化结果应带 fallback=content 标签, 实际 %+v", lbl)
		}
	}
}

func TestRecommend_EnsembleWithSignal(t *testing.T) {
	ctx := context.Background()
	rec := newTestRecommender(t)

	// r1 有交互历史：不应退化
	items, err := rec.Recommend(ctx,
		&core.Query{ItemID: "r1", K: 3, Strategy: core.StrategyEnsemble})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) == 0 {
		t.Fatal("有协同信号的锚点不应返回空")
	}
	for _, it := range items {
		if _, ok := it.GetLabel("fallback"); ok {
			t.Errorf("%s 不应带 fallback 标签", it.ID)
		}
		if it.Score < 0 || it.Score > 1 {
			t.Errorf("融合分数应在 [0,1]: %s=%.4f", it.ID, it.Score)
		}
	}
}

func TestRecommend_EnsembleMMR(t *testing.T) {
	ctx := context.Background()
	rec := newTestRecommender(t)

	// K=4 时两种策略的候选池都是全量 4 条：融合打分完全一致，
	// λ=1 的 MMR 退化为纯相关性排序，顺序必须与 ensemble 相同
	ensemble, err := rec.Recommend(ctx,
		&core.Query{ItemID: "r1", K: 4, Strategy: core.StrategyEnsemble})
	if err != nil {
		t.Fatal(err)
	}
	mmr, err := rec.Recommend(ctx,
		&core.Query{ItemID: "r1", K: 4, Strategy: core.StrategyEnsembleMMR, Lambda: lambdaOf(1.0)})
	if err != nil {
		t.Fatal(err)
	}

	if len(mmr) != len(ensemble) {
		t.Fatalf("λ=1.0 结果数 = %d, 期望与 ensemble 一致 %d", len(mmr), len(ensemble))
	}
	for i := range ensemble {
		if mmr[i].ID != ensemble[i].ID {
			t.Errorf("λ=1.0 的 ensemble_mmr 应与 ensemble 同序: 第 %d 位 %s vs %s",
				i, mmr[i].ID, ensemble[i].ID)
		}
	}
	for _, it := range mmr {
		if _, ok := it.GetLabel("fallback"); ok {
			t.Errorf("r1 有协同信号, %s 不应带 fallback 标签", it.ID)
		}
		if lbl, ok := it.GetLabel("strategy"); !ok || lbl.Value != string(core.StrategyEnsembleMMR) {
			t.Errorf("%s 的 strategy 标签 = %+v, 期望 ensemble_mmr", it.ID, lbl)
		}
		if it.Score < 0 || it.Score > 1 {
			t.Errorf("归一化分数越界: %s=%.4f", it.ID, it.Score)
		}
	}

	// 不传 λ 走服务默认值（0.3），融合后仍经 MMR 截断到 K
	defaulted, err := rec.Recommend(ctx,
		&core.Query{ItemID: "r1", K: 2, Strategy: core.StrategyEnsembleMMR})
	if err != nil {
		t.Fatal(err)
	}
	if len(defaulted) != 2 {
		t.Errorf("默认 λ 的结果数 = %d, 期望 2", len(defaulted))
	}
}

func TestRecommend_LambdaDefaults(t *testing.T) {
	ctx := context.Background()
	rec := newTestRecommender(t)

	// 不传 Lambda（nil）等价于显式传服务默认值 0.3
	omitted, err := rec.Recommend(ctx,
		&core.Query{ItemID: "r0", K: 3, Strategy: core.StrategyContentMMR})
	if err != nil {
		t.Fatal(err)
	}
	explicit, err := rec.Recommend(ctx,
		&core.Query{ItemID: "r0", K: 3, Strategy: core.StrategyContentMMR, Lambda: lambdaOf(0.3)})
	if err != nil {
		t.Fatal(err)
	}
	if len(omitted) != len(explicit) {
		t.Fatalf("结果数不一致: %d vs %d", len(omitted), len(explicit))
	}
	for i := range explicit {
		if omitted[i].ID != explicit[i].ID || omitted[i].Score != explicit[i].Score {
			t.Errorf("省略 Lambda 第 %d 位 %s/%.6f, 期望与显式 0.3 一致 %s/%.6f",
				i, omitted[i].ID, omitted[i].Score, explicit[i].ID, explicit[i].Score)
		}
	}

	// 越界值收敛到 1
	clamped, err := rec.Recommend(ctx,
		&core.Query{ItemID: "r0", K: 3, Strategy: core.StrategyContentMMR, Lambda: lambdaOf(9)})
	if err != nil {
		t.Fatal(err)
	}
	one, err := rec.Recommend(ctx,
		&core.Query{ItemID: "r0", K: 3, Strategy: core.StrategyContentMMR, Lambda: lambdaOf(1.0)})
	if err != nil {
		t.Fatal(err)
	}
	for i := range one {
		if clamped[i].ID != one[i].ID {
			t.Errorf("λ>1 应按 1 处理: 第 %d 位 %s vs %s", i, clamped[i].ID, one[i].ID)
		}
	}
}

func TestRecommend_PopularityFallback(t *testing.T) {
	ctx := context.Background()
	ds := sampleDataset()
	ds.Interactions = nil

	rec := New(Options{
		Source: &fakeSource{ds: ds},
		Metric: core.MetricCosine,
	})

	items, err := rec.Recommend(ctx,
		&core.Query{ItemID: "r0", K: 3, Strategy: core.StrategyPopularity})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) == 0 {
		t.Fatal("退化为 content 后不应为空")
	}
	for _, it := range items {
		if lbl, ok := it.GetLabel("fallback"); !ok || lbl.Source != string(core.StrategyPopularity) {
			t.Errorf("无热度数据应退化并打标, 实际 %+v", lbl)
		}
	}
}

func TestRecommend_SeenFilter(t *testing.T) {
	ctx := context.Background()
	rec := newTestRecommender(t)

	// u1 完成过 r1、r2，推荐结果不得再出现
	items, err := rec.Recommend(ctx,
		&core.Query{ItemID: "r0", UserID: "u1", K: 3, Strategy: core.StrategyContent})
	if err != nil {
		t.Fatal(err)
	}
	for _, it := range items {
		if it.ID == "r1" || it.ID == "r2" {
			t.Errorf("u1 已完成的 %s 不应出现在结果中", it.ID)
		}
	}
}

func TestRecommend_FilterExpr(t *testing.T) {
	ctx := context.Background()
	rec := newTestRecommender(t)

	items, err := rec.Recommend(ctx, &core.Query{
		ItemID:   "r0",
		K:        4,
		Strategy: core.StrategyContent,
		Params:   map[string]any{"filter_expr": `meta.surface == "trail"`},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) == 0 {
		t.Fatal("表达式过滤后不应为空")
	}
	for _, it := range items {
		if it.Meta["surface"] != "trail" {
			t.Errorf("%s surface = %v, 表达式应只保留 trail", it.ID, it.Meta["surface"])
		}
	}
}

func TestArtifacts_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := New(Options{
		Source:   &fakeSource{ds: sampleDataset()},
		Metric:   core.MetricCosine,
		CacheDir: dir,
	})
	want, err := first.Recommend(ctx,
		&core.Query{ItemID: "r0", K: 3, Strategy: core.StrategyContent})
	if err != nil {
		t.Fatal(err)
	}

	// 第二个实例从产物目录加载，检索结果必须逐位一致
	second := New(Options{
		Source:     &fakeSource{ds: sampleDataset()},
		Metric:     core.MetricCosine,
		TrainedDir: dir,
	})
	got, err := second.Recommend(ctx,
		&core.Query{ItemID: "r0", K: 3, Strategy: core.StrategyContent})
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != len(want) {
		t.Fatalf("结果数不一致: %d vs %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Score != want[i].Score {
			t.Errorf("第 %d 位不一致: %s/%.6f vs %s/%.6f",
				i, got[i].ID, got[i].Score, want[i].ID, want[i].Score)
		}
	}
}

func TestRebuild_SwapsState(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{ds: sampleDataset()}
	rec := New(Options{Source: src, Metric: core.MetricCosine})

	if err := rec.EnsureReady(ctx); err != nil {
		t.Fatal(err)
	}

	// 源数据换掉后 Rebuild，新增路线应可检索
	ds := sampleDataset()
	ds.Records = append(ds.Records, feature.Record{
		ID: "r9", DistanceM: 5050, DurationS: 1810, ElevationGainM: 122, HRAvg: 141,
	})
	src.ds = ds
	if err := rec.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild 失败: %v", err)
	}

	items, err := rec.Recommend(ctx,
		&core.Query{ItemID: "r9", K: 3, Strategy: core.StrategyContent})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) == 0 {
		t.Error("重建后新增路线应可作为锚点")
	}
}

func TestEnsureReady_EmptySource(t *testing.T) {
	rec := New(Options{
		Source: &fakeSource{ds: &feature.Dataset{}},
		Metric: core.MetricCosine,
	})
	if err := rec.EnsureReady(context.Background()); !core.IsEmptyData(err) {
		t.Errorf("空数据源期望 EMPTY_DATA, 实际 %v", err)
	}
}
