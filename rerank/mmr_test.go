package rerank

import (
	"context"
	"math"
	"testing"

	"github.com/trailteam/trailkit/core"
)

// 四候选近似重复场景：a 与 b 几乎同向且相关性最高，c、d 指向其他方向。
// λ 取中等值时，选完 a 后 b 被相似度惩罚压制，c 应先于 b 入选。
func nearDuplicates() ([][]float64, []string, []float64) {
	vectors := [][]float64{
		{1, 0, 0},
		{0.999, 0.04, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	ids := []string{"a", "b", "c", "d"}
	relevance := []float64{1.0, 0.95, 0.5, 0.3}
	return vectors, ids, relevance
}

func TestMMR_LambdaOne_PureRelevance(t *testing.T) {
	vectors, ids, relevance := nearDuplicates()
	mmr := &MMR{Lambda: 1.0, TopM: 3}

	got := mmr.Rerank(vectors, ids, relevance)
	want := []int{0, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("λ=1.0 应等价纯相关性排序, 实际 %v", got)
		}
	}
}

func TestMMR_MidLambda_SuppressesDuplicates(t *testing.T) {
	vectors, ids, relevance := nearDuplicates()
	mmr := &MMR{Lambda: 0.5, TopM: 3}

	got := mmr.Rerank(vectors, ids, relevance)
	if got[0] != 0 {
		t.Fatalf("首选应为相关性最高的 a, 实际下标 %d", got[0])
	}
	// b 与 a 余弦 ≈0.999，效用 0.5×0.92−0.5×0.999 < 0；
	// c 与 a 正交，效用 0.5×0.286−0 > 0，应先入选
	if got[1] != 2 {
		t.Fatalf("次选应为正交的 c, 实际下标 %d（近似重复未被压制）", got[1])
	}
}

func TestMMR_EqualRelevance_AvoidsNearDuplicate(t *testing.T) {
	// 四候选相关性全部相同：首选由并列规则决定（ID 最小者），
	// 次选绝不能是首选的近似重复，只要存在更不相似的替代
	vectors := [][]float64{
		{1, 0},
		{1, 0.01},
		{0, 1},
		{-1, 0},
	}
	ids := []string{"a", "b", "c", "d"}
	relevance := []float64{0.9, 0.9, 0.9, 0.9}

	got := (&MMR{Lambda: 0.5, TopM: 2}).Rerank(vectors, ids, relevance)
	if len(got) != 2 {
		t.Fatalf("结果数 = %d, 期望 2", len(got))
	}
	if got[0] != 0 {
		t.Fatalf("同分首选应为 ID 最小的 a, 实际下标 %d", got[0])
	}
	if got[1] == 1 {
		t.Error("次选不应是首选的近似重复 b")
	}
}

func TestMMR_LambdaZero_MaxDiversity(t *testing.T) {
	vectors, ids, relevance := nearDuplicates()

	baseline := (&MMR{Lambda: 1.0, TopM: 3}).Rerank(vectors, ids, relevance)
	diverse := (&MMR{Lambda: 0.0, TopM: 3}).Rerank(vectors, ids, relevance)

	baseVecs := make([][]float64, len(baseline))
	for i, idx := range baseline {
		baseVecs[i] = vectors[idx]
	}
	divVecs := make([][]float64, len(diverse))
	for i, idx := range diverse {
		divVecs[i] = vectors[idx]
	}

	if IntraListDiversity(divVecs) < IntraListDiversity(baseVecs) {
		t.Errorf("λ=0 的列表多样性不应低于 λ=1: %.4f < %.4f",
			IntraListDiversity(divVecs), IntraListDiversity(baseVecs))
	}
}

func TestMMR_FewerCandidatesThanTopM(t *testing.T) {
	vectors, ids, relevance := nearDuplicates()
	mmr := &MMR{Lambda: 0.3, TopM: 10}

	got := mmr.Rerank(vectors, ids, relevance)
	if len(got) != len(ids) {
		t.Fatalf("候选不足 TopM 时应全量返回, 实际 %d 条", len(got))
	}
	for i := range got {
		if got[i] != i {
			t.Fatalf("候选不足 TopM 时不应扰动顺序, 实际 %v", got)
		}
	}
}

func TestMMRNode_Process(t *testing.T) {
	vectors, ids, relevance := nearDuplicates()
	items := make([]*core.Item, len(ids))
	for i := range ids {
		it := core.NewItem(ids[i])
		it.Score = relevance[i]
		it.Vector = vectors[i]
		items[i] = it
	}

	lambda := 0.5
	node := &MMRNode{Lambda: 0.5, TopM: 3}
	query := &core.Query{K: 3, Lambda: &lambda}
	out, err := node.Process(context.Background(), query, items)
	if err != nil {
		t.Fatalf("Process 失败: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("结果数 = %d, 期望 3", len(out))
	}

	// 最终分数是归一化相关性，不是边际效用
	if math.Abs(out[0].Score-1.0) > 1e-9 {
		t.Errorf("a 的归一化相关性应为 1.0, 实际 %.4f", out[0].Score)
	}
	for _, it := range out {
		if it.Score < 0 || it.Score > 1 {
			t.Errorf("归一化相关性必须在 [0,1]: %s=%.4f", it.ID, it.Score)
		}
	}
}

func TestTopNNode(t *testing.T) {
	items := []*core.Item{core.NewItem("a"), core.NewItem("b"), core.NewItem("c")}

	out, err := (&TopNNode{N: 2}).Process(context.Background(), nil, items)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0].ID != "a" || out[1].ID != "b" {
		t.Errorf("TopN 截断错误: %v", out)
	}

	out, err = (&TopNNode{N: 0}).Process(context.Background(), nil, items)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Errorf("N<=0 不应截断, 实际 %d 条", len(out))
	}
}
