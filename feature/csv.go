package feature

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/trailteam/trailkit/core"
)

// CSVSource 从活动日志 CSV 加载数据集。
//
// 规范列名：item_id, distance_m, duration_s, elevation_gain_m, hr_avg。
// 同时兼容历史导出格式的列名（route_id / distance_km_route /
// elevation_meters_route / average_pace_min_per_km 等），单位折算到米/秒。
// 每行是一次"用户完成某条路线"的活动：物品特征按 item_id 去重（首见为准），
// user_id 列存在时同步产出交互日志。
type CSVSource struct {
	Path string
}

func (s *CSVSource) Name() string { return "csv" }

func (s *CSVSource) Load(ctx context.Context) (*Dataset, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeNotFound,
			"feature: csv not found: "+s.Path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeEmptyData,
			"feature: csv has no header: "+s.Path)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}

	idCol := firstColumn(col, "item_id", "id", "route_id")
	if idCol < 0 {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput,
			"feature: csv missing item id column (item_id/id/route_id)")
	}
	userCol := firstColumn(col, "user_id")

	ds := &Dataset{}
	seen := make(map[string]bool)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// 坏行跳过，不让单行脏数据废掉整次重建
			continue
		}

		itemID := field(row, idCol)
		if itemID == "" {
			continue
		}

		if userCol >= 0 {
			if userID := field(row, userCol); userID != "" {
				ds.Interactions = append(ds.Interactions, Interaction{
					UserID: userID,
					ItemID: itemID,
				})
			}
		}

		if seen[itemID] {
			continue
		}
		seen[itemID] = true
		ds.Records = append(ds.Records, parseRecord(itemID, row, col))
	}

	return ds, nil
}

func parseRecord(itemID string, row []string, col map[string]int) Record {
	rec := Record{ID: itemID, Meta: make(map[string]any)}

	distKM := numeric(row, col, "distance_km_route", "distance_km_user", "distance_km")
	switch {
	case hasColumn(row, col, "distance_m"):
		rec.DistanceM = numeric(row, col, "distance_m")
	case distKM != 0:
		rec.DistanceM = distKM * 1000
	}

	switch {
	case hasColumn(row, col, "duration_s"):
		rec.DurationS = numeric(row, col, "duration_s")
	default:
		// 历史格式只有配速（min/km）：按配速×距离折算总时长
		if pace := numeric(row, col, "average_pace_min_per_km"); pace != 0 && distKM != 0 {
			rec.DurationS = pace * distKM * 60
		}
	}

	rec.ElevationGainM = numeric(row, col,
		"elevation_gain_m", "elevation_meters_route", "elevation_meters_user")
	rec.HRAvg = numeric(row, col, "hr_avg", "heart_rate_avg")

	if surface := text(row, col, "surface", "surface_type_route", "surface_type_user"); surface != "" {
		rec.Meta["surface"] = surface
	}
	if distKM != 0 {
		rec.Meta["distance_km"] = distKM
	} else if rec.DistanceM != 0 {
		rec.Meta["distance_km"] = rec.DistanceM / 1000
	}
	if rec.ElevationGainM != 0 {
		rec.Meta["elevation_m"] = rec.ElevationGainM
	}
	if diff := numeric(row, col, "difficulty", "difficulty_score"); diff != 0 {
		rec.Meta["difficulty"] = diff
	}
	if loop := text(row, col, "loop", "is_loop"); loop != "" {
		rec.Meta["loop"] = loop == "true" || loop == "1"
	}

	return rec
}

func firstColumn(col map[string]int, names ...string) int {
	for _, n := range names {
		if i, ok := col[n]; ok {
			return i
		}
	}
	return -1
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func hasColumn(row []string, col map[string]int, name string) bool {
	i, ok := col[name]
	return ok && i < len(row) && row[i] != ""
}

func numeric(row []string, col map[string]int, names ...string) float64 {
	for _, n := range names {
		if v := field(row, firstColumn(col, n)); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func text(row []string, col map[string]int, names ...string) string {
	for _, n := range names {
		if v := field(row, firstColumn(col, n)); v != "" {
			return v
		}
	}
	return ""
}
