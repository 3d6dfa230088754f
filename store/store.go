// Package store 提供 core.Store / core.KeyValueStore 的具体实现。
// 接口定义在 core 包（领域层定义接口，基础设施层实现）。
//
//	var cache core.Store = store.NewMemoryStore()
//	kv, err := store.NewRedisStore("127.0.0.1:6379", 0)
package store
