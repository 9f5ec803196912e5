package feature

import (
	"math"
	"sort"
	"strings"

	"farebid/internal/types"
)

const (
	clipQuantile = 0.99
	topCarNames  = 7
	OtherCarName = "Other"
)

// Stats holds batch statistics frozen at training time and reused verbatim at inference.
// The zero value disables clipping and makes every lookup fall back.
type Stats struct {
	ClipBounds     map[string]float64 `json:"clip_bounds"`
	CarModelFreq   map[string]float64 `json:"carmodel_freq"`
	CarNameCodes   map[string]int     `json:"carname_codes"`
	DriverAvgPrice map[string]float64 `json:"driver_avg_price"`
	UserAvgPrice   map[string]float64 `json:"user_avg_price"`
	GlobalAvgPrice float64            `json:"global_avg_price"`
}

// FitStats computes Stats over a training batch.
func FitStats(recs []OrderRecord) Stats {
	st := Stats{
		ClipBounds:     make(map[string]float64, 6),
		CarModelFreq:   make(map[string]float64),
		CarNameCodes:   make(map[string]int),
		DriverAvgPrice: make(map[string]float64),
		UserAvgPrice:   make(map[string]float64),
	}
	if len(recs) == 0 {
		st.CarNameCodes[OtherCarName] = 0
		return st
	}

	for col, get := range clippedColumns {
		xs := make([]float64, 0, len(recs))
		for _, r := range recs {
			xs = append(xs, get(r))
		}
		st.ClipBounds[col] = quantile(xs, clipQuantile)
	}

	n := float64(len(recs))
	brands := make(map[string]int)
	names := make(map[string]int)
	for _, r := range recs {
		if b := normalizeCategory(r.CarModel); b != "" {
			brands[b]++
		}
		if c := normalizeCategory(r.CarName); c != "" {
			names[c]++
		}
	}
	for b, c := range brands {
		st.CarModelFreq[b] = float64(c) / n
	}
	st.CarNameCodes = encodeTopNames(names, topCarNames)

	st.DriverAvgPrice = meanBy(recs, func(r OrderRecord) types.ID { return r.DriverID })
	st.UserAvgPrice = meanBy(recs, func(r OrderRecord) types.ID { return r.UserID })
	var sum float64
	for _, r := range recs {
		sum += r.PriceBid
	}
	st.GlobalAvgPrice = sum / n
	return st
}

var clippedColumns = map[string]func(OrderRecord) float64{
	ColDistance:      func(r OrderRecord) float64 { return r.DistanceMeters },
	ColDuration:      func(r OrderRecord) float64 { return r.DurationSeconds },
	ColPickupMeters:  func(r OrderRecord) float64 { return r.PickupMeters },
	ColPickupSeconds: func(r OrderRecord) float64 { return r.PickupSeconds },
	ColPriceStart:    func(r OrderRecord) float64 { return r.PriceStart },
	ColPriceBid:      func(r OrderRecord) float64 { return r.PriceBid },
}

func (s Stats) clip(col string, v float64) float64 {
	if bound, ok := s.ClipBounds[col]; ok && v > bound {
		return bound
	}
	return v
}

func (s Stats) carNameCode(name string) int {
	if code, ok := s.CarNameCodes[normalizeCategory(name)]; ok {
		return code
	}
	return s.CarNameCodes[OtherCarName]
}

func (s Stats) driverAvg(id types.ID) float64 {
	if v, ok := s.DriverAvgPrice[string(id)]; ok {
		return v
	}
	return s.GlobalAvgPrice
}

func (s Stats) userAvg(id types.ID) float64 {
	if v, ok := s.UserAvgPrice[string(id)]; ok {
		return v
	}
	return s.GlobalAvgPrice
}

func normalizeCategory(s string) string { return strings.TrimSpace(s) }

// quantile uses linear interpolation between closest ranks.
func quantile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// encodeTopNames keeps the n most frequent names (ties broken by name), groups the rest
// under OtherCarName and assigns codes by sorted class order.
func encodeTopNames(counts map[string]int, n int) map[string]int {
	type kv struct {
		name  string
		count int
	}
	ranked := make([]kv, 0, len(counts))
	for k, c := range counts {
		ranked = append(ranked, kv{k, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].name < ranked[j].name
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	classes := []string{OtherCarName}
	for _, r := range ranked {
		if r.name != OtherCarName {
			classes = append(classes, r.name)
		}
	}
	sort.Strings(classes)
	codes := make(map[string]int, len(classes))
	for i, c := range classes {
		codes[c] = i
	}
	return codes
}

func meanBy(recs []OrderRecord, key func(OrderRecord) types.ID) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range recs {
		k := string(key(r))
		if k == "" {
			continue
		}
		sums[k] += r.PriceBid
		counts[k]++
	}
	out := make(map[string]float64, len(sums))
	for k, s := range sums {
		out[k] = s / float64(counts[k])
	}
	return out
}
