// README: CSV batch IO for order records and prediction output.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"farebid/internal/modules/feature"
	"farebid/internal/modules/predictor"
	"farebid/internal/types"
)

// RowError locates a bad row; line counts the header as line 1.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }
func (e *RowError) Unwrap() error { return e.Err }

// ReadCSV parses a batch with the raw column header. Columns may appear in any order;
// extra columns are ignored and the outcome column is optional.
func ReadCSV(r io.Reader) ([]feature.OrderRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &feature.MissingFieldError{Field: feature.RequiredColumns[0]}
	}
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	if err := feature.CheckColumns(cols); err != nil {
		return nil, err
	}
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		if _, dup := index[c]; !dup {
			index[c] = i
		}
	}

	var out []feature.OrderRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rec, err := parseRow(row, index)
		if err == nil {
			err = rec.Validate()
		}
		if err != nil {
			return nil, &RowError{Line: line, Err: err}
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseRow(row []string, index map[string]int) (feature.OrderRecord, error) {
	get := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	var firstErr error
	num := func(col string) float64 {
		v, err := parseNumber(get(col))
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%w: %s: %v", feature.ErrInvalidRecord, col, err)
		}
		return v
	}

	rec := feature.OrderRecord{
		OrderID:         types.ID(get(feature.ColOrderID)),
		TenderID:        types.ID(get(feature.ColTenderID)),
		DriverID:        types.ID(get(feature.ColDriverID)),
		UserID:          types.ID(get(feature.ColUserID)),
		OrderTime:       feature.ParseTimestamp(get(feature.ColOrderTime)),
		TenderTime:      feature.ParseTimestamp(get(feature.ColTenderTime)),
		DriverRegDate:   feature.ParseTimestamp(get(feature.ColDriverRegDate)),
		Platform:        get(feature.ColPlatform),
		CarModel:        get(feature.ColCarModel),
		CarName:         get(feature.ColCarName),
		DurationSeconds: num(feature.ColDuration),
		PickupSeconds:   num(feature.ColPickupSeconds),
		DistanceMeters:  num(feature.ColDistance),
		PickupMeters:    num(feature.ColPickupMeters),
		PriceStart:      num(feature.ColPriceStart),
		PriceBid:        num(feature.ColPriceBid),
		DriverRating:    num(feature.ColDriverRating),
		Outcome:         normalizeOutcome(get(feature.ColOutcome)),
	}
	return rec, firstErr
}

// parseNumber reads an empty cell as 0.
func parseNumber(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func normalizeOutcome(s string) string {
	switch strings.ToLower(s) {
	case feature.OutcomeDone, "1":
		return feature.OutcomeDone
	case feature.OutcomeCancel, "0":
		return feature.OutcomeCancel
	}
	return ""
}

var predictionHeader = []string{feature.ColOrderID, feature.ColTenderID, feature.ColOutcome, "probability"}

// WritePredictions writes one row per record with the predicted outcome and probability.
func WritePredictions(w io.Writer, recs []feature.OrderRecord, preds []predictor.Prediction) error {
	if len(recs) != len(preds) {
		return fmt.Errorf("%d records, %d predictions", len(recs), len(preds))
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(predictionHeader); err != nil {
		return err
	}
	for i, p := range preds {
		outcome := feature.OutcomeCancel
		if p.Label == 1 {
			outcome = feature.OutcomeDone
		}
		row := []string{
			recs[i].OrderID.String(),
			recs[i].TenderID.String(),
			outcome,
			strconv.FormatFloat(types.Round(p.Probability, 6), 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
