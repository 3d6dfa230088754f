package filter

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/trailteam/trailkit/core"
)

var (
	celEnv     *cel.Env
	celEnvOnce sync.Once
	celEnvErr  error
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.DynType),
			cel.Variable("meta", cel.DynType),
			cel.Variable("query", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// ExprFilter 用 CEL 表达式按元数据筛选候选，表达式返回 true 表示保留。
//
// 可用变量：
//   - meta：物品元数据，如 meta.surface == "trail" / meta.distance_km < 15.0
//   - item：id 与 score，如 item.score > 0.5
//   - query：请求参数，如 query.user_id != ""
//
// 示例：
//   - `meta.surface == "trail" && meta.distance_km < 15.0`
//   - `meta.elevation_m > 300.0 || item.score > 0.9`
//
// 表达式在构造时编译一次，之后按候选逐条求值；求值出错的候选保留
// （元数据缺字段不应让整条路线消失）。
type ExprFilter struct {
	Expr string

	prgOnce sync.Once
	prg     cel.Program
	prgErr  error
}

// NewExprFilter 创建表达式过滤器。表达式在首次求值时编译。
func NewExprFilter(expr string) *ExprFilter {
	return &ExprFilter{Expr: expr}
}

func (f *ExprFilter) Name() string { return "filter.expr" }

func (f *ExprFilter) compile() (cel.Program, error) {
	f.prgOnce.Do(func() {
		env, err := getCELEnv()
		if err != nil {
			f.prgErr = err
			return
		}
		ast, issues := env.Compile(f.Expr)
		if issues != nil && issues.Err() != nil {
			f.prgErr = fmt.Errorf("compile expr %q: %w", f.Expr, issues.Err())
			return
		}
		f.prg, f.prgErr = env.Program(ast)
	})
	return f.prg, f.prgErr
}

func (f *ExprFilter) ShouldFilter(
	_ context.Context,
	query *core.Query,
	item *core.Item,
) (bool, error) {
	if f.Expr == "" || item == nil {
		return false, nil
	}
	prg, err := f.compile()
	if err != nil {
		return false, err
	}

	input := map[string]interface{}{
		"item": map[string]interface{}{
			"id":    item.ID,
			"score": item.Score,
		},
		"meta": item.Meta,
	}
	if query != nil {
		input["query"] = map[string]interface{}{
			"user_id": query.UserID,
			"item_id": query.ItemID,
			"k":       query.K,
		}
	} else {
		input["query"] = map[string]interface{}{}
	}

	out, _, err := prg.Eval(input)
	if err != nil {
		// 缺字段等求值错误：保留该候选
		return false, nil
	}
	keep, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter: expr must return boolean, got %T", out.Value())
	}
	return !keep, nil
}
