package feature

import (
	"context"
	"fmt"
	"strconv"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	feasttypes "github.com/feast-dev/feast/sdk/go/protos/feast/types"

	"github.com/trailteam/trailkit/core"
)

// FeastSource 从 Feast 在线特征库拉取路线特征，作为 CSV 之外的 RecordSource。
//
// 在线库是按实体 key 的点查存储，没有"扫全表"能力，所以需要外部提供
// 物品目录（ItemIDs）；特征引用形如 "route_stats:distance_m"，取冒号后的
// 字段名映射到 Record 的规范列。Feast 只承载内容特征，交互日志仍走离线通道
// （返回的 Dataset.Interactions 为空）。
type FeastSource struct {
	Host    string
	Port    int
	Project string

	// EntityName 实体 key 名称，例如 "route_id"
	EntityName string

	// ItemIDs 待取特征的物品目录
	ItemIDs []string

	// Features 特征引用列表；为空时使用默认的四个规范列
	Features []string

	client *feastsdk.GrpcClient
}

func (s *FeastSource) Name() string { return "feast" }

func (s *FeastSource) connect() error {
	if s.client != nil {
		return nil
	}
	port := s.Port
	if port == 0 {
		port = 6565
	}
	client, err := feastsdk.NewGrpcClient(s.Host, port)
	if err != nil {
		return core.NewDomainError(core.ModuleFeature, core.ErrorCodeUnavailable,
			"feature: feast connect failed: "+err.Error())
	}
	s.client = client
	return nil
}

func (s *FeastSource) Load(ctx context.Context) (*Dataset, error) {
	if len(s.ItemIDs) == 0 {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeEmptyData,
			"feature: feast source has no item catalog")
	}
	if err := s.connect(); err != nil {
		return nil, err
	}

	features := s.Features
	if len(features) == 0 {
		features = []string{
			"route_stats:distance_m",
			"route_stats:duration_s",
			"route_stats:elevation_gain_m",
			"route_stats:hr_avg",
		}
	}

	entityName := s.EntityName
	if entityName == "" {
		entityName = "route_id"
	}

	entities := make([]feastsdk.Row, len(s.ItemIDs))
	for i, id := range s.ItemIDs {
		entities[i] = feastsdk.Row{entityName: feastsdk.StrVal(id)}
	}

	resp, err := s.client.GetOnlineFeatures(ctx, &feastsdk.OnlineFeaturesRequest{
		Features: features,
		Entities: entities,
		Project:  s.Project,
	})
	if err != nil {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeUnavailable,
			"feature: feast get online features failed: "+err.Error())
	}

	rows := resp.Rows()
	if len(rows) != len(s.ItemIDs) {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeInternalError,
			fmt.Sprintf("feature: feast row count mismatch: expected %d, got %d",
				len(s.ItemIDs), len(rows)))
	}

	ds := &Dataset{Records: make([]Record, 0, len(rows))}
	for i, row := range rows {
		rec := Record{ID: s.ItemIDs[i], Meta: make(map[string]any)}
		for _, ref := range features {
			name := featureField(ref)
			val, ok := featureFloat(row[ref])
			if !ok {
				if val, ok = featureFloat(row[name]); !ok {
					continue
				}
			}
			switch name {
			case "distance_m":
				rec.DistanceM = val
			case "duration_s":
				rec.DurationS = val
			case "elevation_gain_m":
				rec.ElevationGainM = val
			case "hr_avg":
				rec.HRAvg = val
			default:
				rec.Meta[name] = val
			}
		}
		ds.Records = append(ds.Records, rec)
	}

	return ds, nil
}

func (s *FeastSource) Close() error {
	s.client = nil
	return nil
}

// featureField 取特征引用 "view:field" 的字段名部分。
func featureField(ref string) string {
	for i := len(ref) - 1; i >= 0; i-- {
		if ref[i] == ':' {
			return ref[i+1:]
		}
	}
	return ref
}

// featureFloat 解码 SDK 返回的 proto oneof 特征值。
// 数值类型直接取值，字符串尝试解析；bytes、list 等类型不参与向量化。
// 特征缺失时 SDK 返回 Val 为 nil 的空 Value，同样按缺失处理。
func featureFloat(v *feasttypes.Value) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.Val.(type) {
	case *feasttypes.Value_DoubleVal:
		return val.DoubleVal, true
	case *feasttypes.Value_FloatVal:
		return float64(val.FloatVal), true
	case *feasttypes.Value_Int32Val:
		return float64(val.Int32Val), true
	case *feasttypes.Value_Int64Val:
		return float64(val.Int64Val), true
	case *feasttypes.Value_BoolVal:
		if val.BoolVal {
			return 1, true
		}
		return 0, true
	case *feasttypes.Value_StringVal:
		f, err := strconv.ParseFloat(val.StringVal, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

var _ RecordSource = (*FeastSource)(nil)
var _ RecordSource = (*CSVSource)(nil)
