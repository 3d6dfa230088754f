// Package conv 提供类型转换工具，用于简化请求参数（map[string]any）处理中的重复逻辑。
package conv

// ToString 将 any 转为 string。仅支持 string 类型，否则返回 ("", false)。
func ToString(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ToBool 将 any 转为 bool。仅支持 bool 类型，否则返回 (false, false)。
func ToBool(v any) (bool, bool) {
	if v == nil {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}
