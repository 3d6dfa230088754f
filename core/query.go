package core

// Query 承载一次推荐请求的上下文，贯穿 Pipeline 透传。
//
// ItemID 是查询锚点（"和这条路线相似的还有什么"）；UserID 可选，
// 提供时过滤阶段可剔除该用户已完成的路线。
type Query struct {
	ItemID string
	UserID string

	// K 期望返回的结果数
	K int

	// Strategy 打分策略（封闭枚举，见 strategy.go）
	Strategy Strategy

	// Lambda MMR 多样性权衡参数 ∈ [0,1]，仅对含 MMR 的策略有意义；
	// nil 表示使用服务端默认值，显式指向 0.0 是合法的纯多样性档
	Lambda *float64

	// Params 请求级参数：过滤表达式、调试开关等
	Params map[string]any
}
