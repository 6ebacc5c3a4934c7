package market

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"
)

// Window is a chart time range.
type Window string

const (
	Window1h  Window = "1h"
	Window24h Window = "24h"
	Window7d  Window = "7d"
	Window30d Window = "30d"
	Window1y  Window = "1y"
)

// DefaultWindow is used for unknown window names.
const DefaultWindow = Window24h

var windowDays = map[Window]float64{
	Window1h:  0.042,
	Window24h: 1,
	Window7d:  7,
	Window30d: 30,
	Window1y:  365,
}

// Windows lists the supported windows from shortest to longest.
func Windows() []Window {
	return []Window{Window1h, Window24h, Window7d, Window30d, Window1y}
}

// ParseWindow returns the matching window or DefaultWindow.
func ParseWindow(s string) Window {
	w := Window(s)
	if _, ok := windowDays[w]; ok {
		return w
	}
	return DefaultWindow
}

// Days is the upstream "days" parameter for w.
func (w Window) Days() float64 {
	if d, ok := windowDays[w]; ok {
		return d
	}
	return windowDays[DefaultWindow]
}

func (w Window) DaysParam() string {
	return strconv.FormatFloat(w.Days(), 'f', -1, 64)
}

// TickLayout is the time layout for axis labels at this window.
func (w Window) TickLayout() string {
	switch w {
	case Window1h, Window24h:
		return "15:04"
	case Window7d, Window30d:
		return "Jan 02"
	default:
		return "Jan 2006"
	}
}

// ChartPoint is one sample of a price chart.
type ChartPoint struct {
	Time   time.Time
	Price  float64
	Volume float64
}

type rawChart struct {
	Prices       [][2]float64 `json:"prices"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
}

// DecodeChart turns a market_chart payload into points ordered by time.
// Volume samples are matched by timestamp; a price without a matching volume
// sample gets volume 0.
func DecodeChart(raw json.RawMessage) ([]ChartPoint, error) {
	var rc rawChart
	if err := json.Unmarshal(raw, &rc); err != nil {
		return nil, fmt.Errorf("decoding chart: %w", err)
	}

	volumes := make(map[int64]float64, len(rc.TotalVolumes))
	for _, v := range rc.TotalVolumes {
		volumes[int64(v[0])] = v[1]
	}

	points := make([]ChartPoint, 0, len(rc.Prices))
	for _, p := range rc.Prices {
		ms := int64(p[0])
		points = append(points, ChartPoint{
			Time:   time.UnixMilli(ms).UTC(),
			Price:  p[1],
			Volume: volumes[ms],
		})
	}
	slices.SortStableFunc(points, func(a, b ChartPoint) int {
		return a.Time.Compare(b.Time)
	})
	return points, nil
}

// PriceRange returns the lowest and highest price in points.
func PriceRange(points []ChartPoint) (low, high float64) {
	for i, p := range points {
		if i == 0 || p.Price < low {
			low = p.Price
		}
		if i == 0 || p.Price > high {
			high = p.Price
		}
	}
	return low, high
}
