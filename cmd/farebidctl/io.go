package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"farebid/internal/infra"
	"farebid/internal/modules/dataset"
	"farebid/internal/modules/feature"
	"farebid/internal/modules/model"
)

// source selects where order records come from: a CSV file or the orders table.
type source struct {
	csvPath string
	dsn     string
	since   string
	limit   int
}

func (s source) load(ctx context.Context, labelledOnly bool) ([]feature.OrderRecord, error) {
	switch {
	case s.csvPath != "":
		f, err := os.Open(s.csvPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return dataset.ReadCSV(f)
	case s.dsn != "":
		db, err := infra.NewDB(ctx, s.dsn)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		q := dataset.Query{LabelledOnly: labelledOnly, Limit: s.limit}
		if s.since != "" {
			if q.Since = feature.ParseTimestamp(s.since); q.Since.IsZero() {
				return nil, fmt.Errorf("bad --since %q", s.since)
			}
		}
		return dataset.NewPGSource(db).Load(ctx, q)
	default:
		return nil, errors.New("one of --data or --dsn is required")
	}
}

func loadModel(path string) (*model.Model, error) {
	return model.Load(path, model.LoadOptions{
		RemoteURL:     os.Getenv("FAREBID_ESTIMATOR_URL"),
		RemoteTimeout: 10 * time.Second,
	})
}
