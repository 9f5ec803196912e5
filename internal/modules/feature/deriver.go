package feature

import (
	"math"
	"strings"
)

const (
	ratioEpsilon   = 1e-6
	pctEpsilon     = 0.1
	perKmEpsilon   = 0.1
	highRating     = 4.95
	largeIncreaseP = 20.0
)

// Deriver turns order records into feature vectors using frozen Stats.
// It holds no mutable state and is safe for concurrent use.
type Deriver struct {
	stats Stats
}

func NewDeriver(stats Stats) *Deriver {
	return &Deriver{stats: stats}
}

func (d *Deriver) Stats() Stats { return d.stats }

// Derive never fails: missing or malformed optional inputs degrade to fallback constants.
func (d *Deriver) Derive(r OrderRecord) Vector {
	st := d.stats
	v := make(Vector, len(Columns))

	distance := st.clip(ColDistance, r.DistanceMeters)
	duration := st.clip(ColDuration, r.DurationSeconds)
	pickupM := st.clip(ColPickupMeters, r.PickupMeters)
	pickupS := st.clip(ColPickupSeconds, r.PickupSeconds)
	start := st.clip(ColPriceStart, r.PriceStart)
	bid := st.clip(ColPriceBid, r.PriceBid)

	v[FDriverRating] = r.DriverRating
	v[FIsZeroDistance] = boolf(r.DistanceMeters == 0)
	v[FDistanceClipped] = distance
	v[FDurationClipped] = duration
	v[FPickupMetersClipped] = pickupM
	v[FPickupSecondsClipped] = pickupS
	v[FPriceStartClipped] = start
	v[FPriceBidClipped] = bid

	hour := 0
	if !r.OrderTime.IsZero() {
		hour = r.OrderTime.Hour()
		dow := dayOfWeek(r.OrderTime)
		v[FOrderHour] = float64(hour)
		v[FOrderDayOfWeek] = float64(dow)
		v[FOrderDay] = float64(r.OrderTime.Day())
		v[FIsNight] = boolf(isNight(hour))
		v[FIsPeakHour] = boolf(isPeakHour(hour))
		v[FIsWeekend] = boolf(isWeekend(dow))
		v[FTimeOfDay] = float64(timeOfDay(hour))
	} else {
		v[FOrderHour] = 0
		v[FOrderDayOfWeek] = 0
		v[FOrderDay] = 0
		v[FIsNight] = 0
		v[FIsPeakHour] = 0
		v[FIsWeekend] = 0
		v[FTimeOfDay] = TimeOfDayUnknown
	}

	v[FResponseTime] = 0
	if !r.OrderTime.IsZero() && !r.TenderTime.IsZero() {
		v[FResponseTime] = r.TenderTime.Sub(r.OrderTime).Seconds()
	}
	v[FDriverAccountAge] = 0
	if !r.OrderTime.IsZero() && !r.DriverRegDate.IsZero() {
		days := math.Floor(r.OrderTime.Sub(r.DriverRegDate).Hours() / 24)
		v[FDriverAccountAge] = math.Max(0, days)
	}

	diff := r.PriceBid - r.PriceStart
	pct := diff / (r.PriceStart + pctEpsilon) * 100
	v[FPriceDiff] = diff
	v[FPriceRatio] = r.PriceBid / (r.PriceStart + ratioEpsilon)
	v[FPriceChangePct] = pct
	v[FPriceIncrease] = boolf(diff > 0)
	v[FLargePriceIncrease] = boolf(pct > largeIncreaseP)
	v[FPricePerKm] = bid / (distance/1000 + perKmEpsilon)

	v[FPickupToDistanceRatio] = pickupM / (distance + 1)
	v[FAvgSpeed] = 0
	if duration > 0 {
		v[FAvgSpeed] = distance / duration
	}
	v[FPickupDistanceRatio] = r.PickupMeters / (r.DistanceMeters + ratioEpsilon)
	v[FPickupTimeRatio] = r.PickupSeconds / (r.DurationSeconds + ratioEpsilon)

	v[FDistanceCategory] = float64(distanceCategory(distance))
	v[FIsHighRating] = boolf(r.DriverRating >= highRating)
	v[FIsIOS] = boolf(strings.EqualFold(strings.TrimSpace(r.Platform), "ios"))
	v[FCarModelFreq] = st.CarModelFreq[normalizeCategory(r.CarModel)]
	v[FCarNameEncoded] = float64(st.carNameCode(r.CarName))

	v[FDriverAvgPrice] = st.driverAvg(r.DriverID)
	v[FUserAvgPrice] = st.userAvg(r.UserID)

	v[FPickupHourInteraction] = pickupM * float64(hour) / 100

	for k, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			v[k] = 0
		}
	}
	return v
}

// DeriveBatch derives every record in order.
func (d *Deriver) DeriveBatch(recs []OrderRecord) []Vector {
	out := make([]Vector, len(recs))
	for i, r := range recs {
		out[i] = d.Derive(r)
	}
	return out
}

func distanceCategory(m float64) int {
	switch {
	case m <= 1000:
		return 0
	case m <= 3000:
		return 1
	case m <= 7000:
		return 2
	default:
		return 3
	}
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
