// README: Base handler utilities (JSON helpers, request decoding, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"farebid/internal/modules/bidding"
	"farebid/internal/modules/feature"
	"farebid/internal/types"
)

// maxBatch bounds /api/predict/batch request size.
const maxBatch = 1000

type errorResponse struct {
	Error string `json:"error"`
}

// orderRequest mirrors the raw order columns. Pointers tell absent fields from zero values.
type orderRequest struct {
	OrderID         types.ID  `json:"order_id"`
	TenderID        types.ID  `json:"tender_id"`
	DriverID        *types.ID `json:"driver_id"`
	UserID          *types.ID `json:"user_id"`
	OrderTimestamp  *string   `json:"order_timestamp"`
	TenderTimestamp *string   `json:"tender_timestamp"`
	DriverRegDate   *string   `json:"driver_reg_date"`
	Platform        *string   `json:"platform"`
	CarModel        *string   `json:"carmodel"`
	CarName         *string   `json:"carname"`
	DurationSeconds *float64  `json:"duration_in_seconds"`
	PickupSeconds   *float64  `json:"pickup_in_seconds"`
	DistanceMeters  *float64  `json:"distance_in_meters"`
	PickupMeters    *float64  `json:"pickup_in_meters"`
	PriceStart      *float64  `json:"price_start_local"`
	PriceBid        *float64  `json:"price_bid_local"`
	DriverRating    *float64  `json:"driver_rating"`
}

// record checks required fields in column order and validates magnitudes.
func (r orderRequest) record() (feature.OrderRecord, error) {
	required := []struct {
		name    string
		present bool
	}{
		{feature.ColDriverID, r.DriverID != nil},
		{feature.ColUserID, r.UserID != nil},
		{feature.ColOrderTime, r.OrderTimestamp != nil},
		{feature.ColTenderTime, r.TenderTimestamp != nil},
		{feature.ColDriverRegDate, r.DriverRegDate != nil},
		{feature.ColPlatform, r.Platform != nil},
		{feature.ColCarModel, r.CarModel != nil},
		{feature.ColCarName, r.CarName != nil},
		{feature.ColDuration, r.DurationSeconds != nil},
		{feature.ColPickupSeconds, r.PickupSeconds != nil},
		{feature.ColDistance, r.DistanceMeters != nil},
		{feature.ColPickupMeters, r.PickupMeters != nil},
		{feature.ColPriceStart, r.PriceStart != nil},
		{feature.ColPriceBid, r.PriceBid != nil},
		{feature.ColDriverRating, r.DriverRating != nil},
	}
	for _, f := range required {
		if !f.present {
			return feature.OrderRecord{}, &feature.MissingFieldError{Field: f.name}
		}
	}
	rec := feature.OrderRecord{
		OrderID:         r.OrderID,
		TenderID:        r.TenderID,
		DriverID:        *r.DriverID,
		UserID:          *r.UserID,
		OrderTime:       feature.ParseTimestamp(*r.OrderTimestamp),
		TenderTime:      feature.ParseTimestamp(*r.TenderTimestamp),
		DriverRegDate:   feature.ParseTimestamp(*r.DriverRegDate),
		Platform:        *r.Platform,
		CarModel:        *r.CarModel,
		CarName:         *r.CarName,
		DurationSeconds: *r.DurationSeconds,
		PickupSeconds:   *r.PickupSeconds,
		DistanceMeters:  *r.DistanceMeters,
		PickupMeters:    *r.PickupMeters,
		PriceStart:      *r.PriceStart,
		PriceBid:        *r.PriceBid,
		DriverRating:    *r.DriverRating,
	}
	if err := rec.Validate(); err != nil {
		return feature.OrderRecord{}, err
	}
	return rec, nil
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeRecordError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, feature.ErrMissingField), errors.Is(err, feature.ErrInvalidRecord):
		writeError(c, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("scoring failed")
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeBiddingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, bidding.ErrInvalidParams):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, bidding.ErrNoFeasibleBid):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, bidding.ErrStoreDisabled):
		writeError(c, http.StatusServiceUnavailable, err.Error())
	default:
		writeRecordError(c, err)
	}
}
