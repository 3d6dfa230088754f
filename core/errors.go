package core

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX）
//
// 注意：按 ID 查询索引中不存在的物品不是错误，返回空结果即可；
// EMPTY_DATA / LOAD_FAILED 才是真正的失败路径（由 EnsureReady 的回退链兜底）。
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "EMPTY_DATA"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "feature", "vector"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// GetDomainError 获取 DomainError，如果不是则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	if domainErr, ok := err.(*DomainError); ok {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 服务不可用
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeEmptyData     = "EMPTY_DATA"     // 源数据为空（无法拟合 scaler / 建索引）
	ErrorCodeLoadFailed    = "LOAD_FAILED"    // 持久化产物缺失或损坏
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误
)

// 模块名称常量
const (
	ModuleStore       = "store"       // 存储模块
	ModuleFeature     = "feature"     // 特征模块
	ModuleVector      = "vector"      // 向量索引模块
	ModuleRecall      = "recall"      // 召回/协同模块
	ModuleRecommender = "recommender" // 编排模块
)

func hasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool { return hasCode(err, ErrorCodeNotSupported) }

// IsEmptyData 检查错误是否为 EMPTY_DATA
func IsEmptyData(err error) bool { return hasCode(err, ErrorCodeEmptyData) }

// IsLoadFailed 检查错误是否为 LOAD_FAILED
func IsLoadFailed(err error) bool { return hasCode(err, ErrorCodeLoadFailed) }

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool { return hasCode(err, ErrorCodeInvalidInput) }
