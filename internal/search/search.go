package search

import (
	"math"
	"sort"
	"strings"

	"github.com/langchou/chargehive/internal/models"
)

// EarthRadiusKm 地球半径
const EarthRadiusKm = 6371.0

// Predicate 站点过滤条件
type Predicate func(*models.Station) bool

// All 把多个条件按 AND 组合，nil 条件视为恒真
func All(preds ...Predicate) Predicate {
	return func(st *models.Station) bool {
		for _, p := range preds {
			if p != nil && !p(st) {
				return false
			}
		}
		return true
	}
}

// Criteria 搜索条件，nil 表示不过滤
type Criteria struct {
	Query     *string
	City      *string
	Available *bool
}

// NameContains 名称包含关键字（不区分大小写）
func NameContains(query *string) Predicate {
	if query == nil {
		return nil
	}
	q := strings.ToLower(*query)
	return func(st *models.Station) bool {
		return strings.Contains(strings.ToLower(st.Name), q)
	}
}

// CityEquals 城市相同（不区分大小写）
func CityEquals(city *string) Predicate {
	if city == nil {
		return nil
	}
	c := *city
	return func(st *models.Station) bool {
		return strings.EqualFold(st.City, c)
	}
}

// HasPorts available=true 时要求至少有一个端口
// available=false 不过滤任何站点
func HasPorts(available *bool) Predicate {
	if available == nil || !*available {
		return nil
	}
	return func(st *models.Station) bool {
		return st.HasPorts()
	}
}

// Predicate 组合全部条件
func (c Criteria) Predicate() Predicate {
	return All(NameContains(c.Query), CityEquals(c.City), HasPorts(c.Available))
}

// Filter 全量扫描，保持输入顺序
func Filter(stations []*models.Station, pred Predicate) []*models.Station {
	out := make([]*models.Station, 0, len(stations))
	for _, st := range stations {
		if pred == nil || pred(st) {
			out = append(out, st)
		}
	}
	return out
}

// Haversine 两点的大圆距离（km）
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Ranked 带距离的站点
type Ranked struct {
	Station    *models.Station
	DistanceKm float64
}

// Nearby 半径内的已审批站点，按距离升序（稳定排序）
// 没有坐标的站点视为无穷远
func Nearby(stations []*models.Station, lat, lng, radiusKm float64) []Ranked {
	ranked := make([]Ranked, 0)
	for _, st := range stations {
		if !st.Approved || !st.HasCoordinates() {
			continue
		}
		d := Haversine(lat, lng, *st.Latitude, *st.Longitude)
		if d <= radiusKm {
			ranked = append(ranked, Ranked{Station: st, DistanceKm: d})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceKm < ranked[j].DistanceKm
	})
	return ranked
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
