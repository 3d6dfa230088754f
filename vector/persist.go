package vector

import (
	"encoding/gob"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/trailteam/trailkit/core"
)

// 每代索引持久化为两个产物：向量矩阵 blob + idmap 数组。
// 写后再读必须复现完全相同的检索结果（ID 与分数）。
const (
	indexFile = "vectors.gob"
	idmapFile = "idmap.json"
)

type persistedIndex struct {
	Metric string
	Dim    int
	Data   []float64
}

// Save 把索引写入 dir 下的两个产物文件。
// 先写临时文件再 rename，避免进程中途退出留下半截产物被下次 Load 误读。
func (idx *FlatIndex) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return core.NewDomainError(core.ModuleVector, core.ErrorCodeInternalError,
			"vector: create index dir failed: "+err.Error())
	}

	if err := writeAtomic(filepath.Join(dir, indexFile), func(f *os.File) error {
		return gob.NewEncoder(f).Encode(persistedIndex{
			Metric: string(idx.metric),
			Dim:    idx.dim,
			Data:   idx.data,
		})
	}); err != nil {
		return err
	}

	return writeAtomic(filepath.Join(dir, idmapFile), func(f *os.File) error {
		return json.NewEncoder(f).Encode(idx.ids)
	})
}

// Load 从 dir 重新加载索引。任一产物缺失或损坏都返回 LOAD_FAILED，
// 由调用方回退到"从源数据重建"，绝不带着半份产物继续跑。
func Load(dir string) (*FlatIndex, error) {
	f, err := os.Open(filepath.Join(dir, indexFile))
	if err != nil {
		return nil, loadFailed("open index blob: " + err.Error())
	}
	defer f.Close()

	var p persistedIndex
	if err := gob.NewDecoder(f).Decode(&p); err != nil {
		return nil, loadFailed("decode index blob: " + err.Error())
	}

	mf, err := os.Open(filepath.Join(dir, idmapFile))
	if err != nil {
		return nil, loadFailed("open idmap: " + err.Error())
	}
	defer mf.Close()

	var ids []string
	if err := json.NewDecoder(mf).Decode(&ids); err != nil {
		return nil, loadFailed("decode idmap: " + err.Error())
	}

	metric := core.Metric(p.Metric)
	if !metric.Valid() || p.Dim <= 0 {
		return nil, loadFailed("index blob carries invalid metric/dim")
	}
	if len(p.Data) != len(ids)*p.Dim {
		return nil, loadFailed("index blob and idmap are out of step")
	}

	idx := &FlatIndex{
		metric: metric,
		dim:    p.Dim,
		data:   p.Data,
		ids:    ids,
		rows:   make(map[string]int, len(ids)),
	}
	for row, id := range ids {
		idx.rows[id] = row
	}
	return idx, nil
}

func loadFailed(msg string) error {
	return core.NewDomainError(core.ModuleVector, core.ErrorCodeLoadFailed, "vector: "+msg)
}

func writeAtomic(path string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return core.NewDomainError(core.ModuleVector, core.ErrorCodeInternalError,
			"vector: create temp artifact failed: "+err.Error())
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return core.NewDomainError(core.ModuleVector, core.ErrorCodeInternalError,
			"vector: write artifact failed: "+err.Error())
	}
	if err := tmp.Close(); err != nil {
		return core.NewDomainError(core.ModuleVector, core.ErrorCodeInternalError,
			"vector: close artifact failed: "+err.Error())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return core.NewDomainError(core.ModuleVector, core.ErrorCodeInternalError,
			"vector: rename artifact failed: "+err.Error())
	}
	return nil
}
