package utils

// Label 是推荐链路中的一等公民：可解释、可追踪、可透传。
// 本仓库用它标注候选来源（content/popularity/ensemble）与回退路径
// （例如 ensemble 无协同信号时退化为 content，会留下 fallback 标签），
// 使"走了哪条路"成为可断言的事实而非日志里的一句话。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // strategy / rerank / filter / fallback ...
}

// MergeLabel 用于合并同名 Label，遵循"保留历史、可追踪"的默认策略。
// - Value: 以 '|' 累积
// - Source: 以 ',' 累积
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := existing
	merged.Value = existing.Value + "|" + incoming.Value
	switch {
	case existing.Source == "":
		merged.Source = incoming.Source
	case incoming.Source == "":
		merged.Source = existing.Source
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}
