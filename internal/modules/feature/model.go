// README: Order record, feature vector and the canonical feature column set.
package feature

import (
	"errors"
	"fmt"
	"math"
	"time"

	"farebid/internal/types"
)

var (
	ErrMissingField  = errors.New("missing required field")
	ErrInvalidRecord = errors.New("invalid order record")
)

// MissingFieldError names a structurally required raw column absent from a batch.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingField, e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

const (
	OutcomeDone   = "done"
	OutcomeCancel = "cancel"
)

// OrderRecord is one bid observation. Zero times mean the timestamp was missing or unparseable.
type OrderRecord struct {
	OrderID         types.ID
	TenderID        types.ID
	DriverID        types.ID
	UserID          types.ID
	OrderTime       time.Time
	TenderTime      time.Time
	DriverRegDate   time.Time
	Platform        string
	CarModel        string
	CarName         string
	DurationSeconds float64
	PickupSeconds   float64
	DistanceMeters  float64
	PickupMeters    float64
	PriceStart      float64
	PriceBid        float64
	DriverRating    float64
	Outcome         string
}

// WithBid returns a copy of the record carrying a different bid.
func (r OrderRecord) WithBid(bid float64) OrderRecord {
	r.PriceBid = bid
	return r
}

// Validate rejects negative or non-finite magnitudes.
func (r OrderRecord) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{ColDuration, r.DurationSeconds},
		{ColPickupSeconds, r.PickupSeconds},
		{ColDistance, r.DistanceMeters},
		{ColPickupMeters, r.PickupMeters},
		{ColPriceStart, r.PriceStart},
		{ColPriceBid, r.PriceBid},
		{ColDriverRating, r.DriverRating},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number", ErrInvalidRecord, f.name)
		}
	}
	return nil
}

// Label maps the outcome to the training target. ok is false for unlabeled records.
func Label(r OrderRecord) (y int, ok bool) {
	switch r.Outcome {
	case OutcomeDone:
		return 1, true
	case OutcomeCancel:
		return 0, true
	}
	return 0, false
}

// Raw column names as they appear in CSV batches and the orders table.
const (
	ColOrderID       = "order_id"
	ColTenderID      = "tender_id"
	ColDriverID      = "driver_id"
	ColUserID        = "user_id"
	ColOrderTime     = "order_timestamp"
	ColTenderTime    = "tender_timestamp"
	ColDriverRegDate = "driver_reg_date"
	ColPlatform      = "platform"
	ColCarModel      = "carmodel"
	ColCarName       = "carname"
	ColDuration      = "duration_in_seconds"
	ColPickupSeconds = "pickup_in_seconds"
	ColDistance      = "distance_in_meters"
	ColPickupMeters  = "pickup_in_meters"
	ColPriceStart    = "price_start_local"
	ColPriceBid      = "price_bid_local"
	ColDriverRating  = "driver_rating"
	ColOutcome       = "is_done"
)

// RequiredColumns must be present in every tabular batch.
var RequiredColumns = []string{
	ColOrderID, ColTenderID, ColDriverID, ColUserID,
	ColOrderTime, ColTenderTime, ColDriverRegDate,
	ColPlatform, ColCarModel, ColCarName,
	ColDuration, ColPickupSeconds, ColDistance, ColPickupMeters,
	ColPriceStart, ColPriceBid, ColDriverRating,
}

// CheckColumns returns a *MissingFieldError for the first required column absent from header.
func CheckColumns(header []string) error {
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		seen[h] = true
	}
	for _, c := range RequiredColumns {
		if !seen[c] {
			return &MissingFieldError{Field: c}
		}
	}
	return nil
}

// Derived feature names.
const (
	FDriverRating          = "driver_rating"
	FIsZeroDistance        = "is_zero_distance"
	FDistanceClipped       = "distance_in_meters_clipped"
	FDurationClipped       = "duration_in_seconds_clipped"
	FPickupMetersClipped   = "pickup_in_meters_clipped"
	FPickupSecondsClipped  = "pickup_in_seconds_clipped"
	FPriceStartClipped     = "price_start_local_clipped"
	FPriceBidClipped       = "price_bid_local_clipped"
	FOrderHour             = "order_hour"
	FOrderDayOfWeek        = "order_dayofweek"
	FOrderDay              = "order_day"
	FIsNight               = "is_night"
	FIsPeakHour            = "is_peak_hour"
	FIsWeekend             = "is_weekend"
	FTimeOfDay             = "time_of_day_code"
	FResponseTime          = "response_time_seconds"
	FDriverAccountAge      = "driver_account_age_days"
	FPriceDiff             = "price_diff"
	FPriceRatio            = "price_ratio"
	FPriceChangePct        = "price_change_pct"
	FPriceIncrease         = "price_increase"
	FLargePriceIncrease    = "large_price_increase"
	FPricePerKm            = "price_per_km"
	FPickupToDistanceRatio = "pickup_to_distance_ratio"
	FAvgSpeed              = "avg_speed"
	FPickupDistanceRatio   = "pickup_distance_ratio"
	FPickupTimeRatio       = "pickup_time_ratio"
	FDistanceCategory      = "distance_category"
	FIsHighRating          = "is_high_rating"
	FIsIOS                 = "is_ios"
	FCarModelFreq          = "carmodel_freq"
	FCarNameEncoded        = "carname_encoded"
	FDriverAvgPrice        = "driver_avg_price"
	FUserAvgPrice          = "user_avg_price"
	FPickupHourInteraction = "pickup_hour_interaction"
)

// Columns is the full ordered set of features Derive emits.
var Columns = []string{
	FDriverRating, FIsZeroDistance,
	FDistanceClipped, FDurationClipped, FPickupMetersClipped, FPickupSecondsClipped,
	FPriceStartClipped, FPriceBidClipped,
	FOrderHour, FOrderDayOfWeek, FOrderDay, FIsNight, FIsPeakHour, FIsWeekend, FTimeOfDay,
	FResponseTime, FDriverAccountAge,
	FPriceDiff, FPriceRatio, FPriceChangePct, FPriceIncrease, FLargePriceIncrease, FPricePerKm,
	FPickupToDistanceRatio, FAvgSpeed, FPickupDistanceRatio, FPickupTimeRatio,
	FDistanceCategory, FIsHighRating, FIsIOS, FCarModelFreq, FCarNameEncoded,
	FDriverAvgPrice, FUserAvgPrice, FPickupHourInteraction,
}

// Vector maps feature name to value for one record.
type Vector map[string]float64

// Values returns the vector laid out in the given column order; see Align.
func (v Vector) Values(names []string) []float64 {
	return Align(v, names)
}
