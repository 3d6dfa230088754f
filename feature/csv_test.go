package feature

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/trailteam/trailkit/core"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "activities.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCSVSource_Load(t *testing.T) {
	path := writeCSV(t, `item_id,user_id,distance_m,duration_s,elevation_gain_m,hr_avg,surface
r1,u1,5000,1800,120,145,trail
r2,u1,5200,1860,130,148,road
r1,u2,9999,9999,999,999,asphalt
r3,,10000,3600,300,150,trail
`)

	ds, err := (&CSVSource{Path: path}).Load(context.Background())
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}

	// r1 重复出现：特征按首见去重
	if len(ds.Records) != 3 {
		t.Fatalf("记录数 = %d, 期望 3", len(ds.Records))
	}
	if ds.Records[0].ID != "r1" || ds.Records[0].DistanceM != 5000 {
		t.Errorf("r1 去重应保留首见值, 实际 %+v", ds.Records[0])
	}
	if ds.Records[0].Meta["surface"] != "trail" {
		t.Errorf("surface 元数据 = %v, 期望 trail", ds.Records[0].Meta["surface"])
	}

	// r3 无 user_id：只产出特征，不产出交互
	if len(ds.Interactions) != 3 {
		t.Fatalf("交互数 = %d, 期望 3", len(ds.Interactions))
	}
	if ds.Interactions[2].UserID != "u2" || ds.Interactions[2].ItemID != "r1" {
		t.Errorf("第 3 条交互 = %+v", ds.Interactions[2])
	}
}

func TestCSVSource_LegacyColumns(t *testing.T) {
	path := writeCSV(t, `route_id,distance_km_route,average_pace_min_per_km,elevation_meters_route,heart_rate_avg
r1,5.0,6.0,120,145
`)

	ds, err := (&CSVSource{Path: path}).Load(context.Background())
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if len(ds.Records) != 1 {
		t.Fatalf("记录数 = %d, 期望 1", len(ds.Records))
	}

	rec := ds.Records[0]
	if rec.DistanceM != 5000 {
		t.Errorf("distance_m = %v, 期望 5000（km 折算）", rec.DistanceM)
	}
	// 6 min/km × 5 km × 60 = 1800 s
	if rec.DurationS != 1800 {
		t.Errorf("duration_s = %v, 期望 1800（配速折算）", rec.DurationS)
	}
	if rec.ElevationGainM != 120 || rec.HRAvg != 145 {
		t.Errorf("爬升/心率解析错误: %+v", rec)
	}
}

func TestCSVSource_Missing(t *testing.T) {
	_, err := (&CSVSource{Path: filepath.Join(t.TempDir(), "nope.csv")}).Load(context.Background())
	if !core.IsNotFound(err) {
		t.Errorf("文件缺失期望 NOT_FOUND, 实际 %v", err)
	}
}

func TestCSVSource_MissingIDColumn(t *testing.T) {
	path := writeCSV(t, "foo,bar\n1,2\n")
	_, err := (&CSVSource{Path: path}).Load(context.Background())
	if !core.IsInvalidInput(err) {
		t.Errorf("缺 id 列期望 INVALID_INPUT, 实际 %v", err)
	}
}
