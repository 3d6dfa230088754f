package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是推荐服务的顶层配置（YAML）。
//
// 示例：
//
//	data:
//	  csv_path: data/activities.csv
//	artifacts:
//	  trained_dir: models/trained
//	  cache_dir: models/cache
//	index:
//	  metric: cosine
//	recommend:
//	  overfetch_factor: 10
//	  default_lambda: 0.5
//	  ensemble_content_weight: 0.6
//	cache:
//	  collab_ttl_seconds: 1800
//	  redis_addr: 127.0.0.1:6379
//	rebuild:
//	  interval: 6h
type Config struct {
	Data      DataConfig      `yaml:"data"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Index     IndexConfig     `yaml:"index"`
	Recommend RecommendConfig `yaml:"recommend"`
	Cache     CacheConfig     `yaml:"cache"`
	Rebuild   RebuildConfig   `yaml:"rebuild"`
}

type DataConfig struct {
	// CSVPath 活动日志 CSV 路径
	CSVPath string `yaml:"csv_path"`
}

type ArtifactsConfig struct {
	// TrainedDir 离线训练产物目录（优先加载）
	TrainedDir string `yaml:"trained_dir"`
	// CacheDir 服务自身重建后写入的产物目录（次优先）
	CacheDir string `yaml:"cache_dir"`
}

type IndexConfig struct {
	// Metric 距离度量：cosine / euclidean
	Metric string `yaml:"metric"`
}

type RecommendConfig struct {
	// OverfetchFactor 含 MMR 策略的候选超拉倍数
	OverfetchFactor int `yaml:"overfetch_factor"`
	// DefaultLambda MMR 默认相关性权重（0.3 为均衡档）
	DefaultLambda float64 `yaml:"default_lambda"`
	// EnsembleContentWeight 融合策略中内容分数的权重
	EnsembleContentWeight float64 `yaml:"ensemble_content_weight"`
}

type CacheConfig struct {
	// CollabTTLSeconds 协同分数缓存有效期
	CollabTTLSeconds int `yaml:"collab_ttl_seconds"`
	// RedisAddr 为空时使用进程内存储
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
}

type RebuildConfig struct {
	// Interval 定时重建间隔，如 "6h"；为空不启用定时重建
	Interval string `yaml:"interval"`
}

// Default 返回内置默认配置。
func Default() *Config {
	return &Config{
		Index: IndexConfig{Metric: "cosine"},
		Recommend: RecommendConfig{
			OverfetchFactor:       10,
			DefaultLambda:         0.3,
			EnsembleContentWeight: 0.6,
		},
		Cache: CacheConfig{CollabTTLSeconds: 1800},
	}
}

// Load 从 YAML 文件加载配置，缺省字段回填默认值。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) fillDefaults() {
	if c.Index.Metric == "" {
		c.Index.Metric = "cosine"
	}
	if c.Recommend.OverfetchFactor <= 0 {
		c.Recommend.OverfetchFactor = 10
	}
	if c.Recommend.DefaultLambda < 0 || c.Recommend.DefaultLambda > 1 {
		c.Recommend.DefaultLambda = 0.3
	}
	if c.Recommend.EnsembleContentWeight <= 0 || c.Recommend.EnsembleContentWeight > 1 {
		c.Recommend.EnsembleContentWeight = 0.6
	}
	if c.Cache.CollabTTLSeconds <= 0 {
		c.Cache.CollabTTLSeconds = 1800
	}
}

// RebuildInterval 解析定时重建间隔；未配置返回 0。
func (c *Config) RebuildInterval() (time.Duration, error) {
	if c.Rebuild.Interval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Rebuild.Interval)
	if err != nil {
		return 0, fmt.Errorf("parse rebuild interval: %w", err)
	}
	return d, nil
}
