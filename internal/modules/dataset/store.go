// README: Order source backed by PostgreSQL for training and evaluation batches.
package dataset

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"farebid/internal/modules/feature"
	"farebid/internal/types"
)

const ordersDDL = `
    CREATE TABLE IF NOT EXISTS orders (
        order_id TEXT NOT NULL,
        tender_id TEXT NOT NULL,
        driver_id TEXT NOT NULL,
        user_id TEXT NOT NULL,
        order_timestamp TIMESTAMP,
        tender_timestamp TIMESTAMP,
        driver_reg_date TIMESTAMP,
        platform TEXT NOT NULL DEFAULT '',
        carmodel TEXT NOT NULL DEFAULT '',
        carname TEXT NOT NULL DEFAULT '',
        duration_in_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
        pickup_in_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
        distance_in_meters DOUBLE PRECISION NOT NULL DEFAULT 0,
        pickup_in_meters DOUBLE PRECISION NOT NULL DEFAULT 0,
        price_start_local DOUBLE PRECISION NOT NULL DEFAULT 0,
        price_bid_local DOUBLE PRECISION NOT NULL DEFAULT 0,
        driver_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
        is_done TEXT,
        PRIMARY KEY (order_id, tender_id)
    )`

var orderColumns = []string{
	feature.ColOrderID, feature.ColTenderID, feature.ColDriverID, feature.ColUserID,
	feature.ColOrderTime, feature.ColTenderTime, feature.ColDriverRegDate,
	feature.ColPlatform, feature.ColCarModel, feature.ColCarName,
	feature.ColDuration, feature.ColPickupSeconds, feature.ColDistance, feature.ColPickupMeters,
	feature.ColPriceStart, feature.ColPriceBid, feature.ColDriverRating, feature.ColOutcome,
}

type Query struct {
	Since time.Time
	// LabelledOnly skips rows without a done/cancel outcome.
	LabelledOnly bool
	Limit        int
}

type PGSource struct {
	db *pgxpool.Pool
}

func NewPGSource(db *pgxpool.Pool) *PGSource {
	return &PGSource{db: db}
}

func (s *PGSource) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, ordersDDL)
	return err
}

// Insert bulk-loads records with COPY. Missing timestamps are stored as NULL.
func (s *PGSource) Insert(ctx context.Context, recs []feature.OrderRecord) (int64, error) {
	return s.db.CopyFrom(ctx, pgx.Identifier{"orders"}, orderColumns,
		pgx.CopyFromSlice(len(recs), func(i int) ([]any, error) {
			r := recs[i]
			return []any{
				string(r.OrderID), string(r.TenderID), string(r.DriverID), string(r.UserID),
				nullTime(r.OrderTime), nullTime(r.TenderTime), nullTime(r.DriverRegDate),
				r.Platform, r.CarModel, r.CarName,
				r.DurationSeconds, r.PickupSeconds, r.DistanceMeters, r.PickupMeters,
				r.PriceStart, r.PriceBid, r.DriverRating, nullString(r.Outcome),
			}, nil
		}),
	)
}

func (s *PGSource) Load(ctx context.Context, q Query) ([]feature.OrderRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 1_000_000
	}
	rows, err := s.db.Query(ctx, `
        SELECT order_id, tender_id, driver_id, user_id,
               order_timestamp, tender_timestamp, driver_reg_date,
               platform, carmodel, carname,
               duration_in_seconds, pickup_in_seconds, distance_in_meters, pickup_in_meters,
               price_start_local, price_bid_local, driver_rating, is_done
        FROM orders
        WHERE ($1::timestamp IS NULL OR order_timestamp >= $1)
          AND (NOT $2 OR is_done IN ('done', 'cancel'))
        ORDER BY order_timestamp NULLS LAST, order_id, tender_id
        LIMIT $3`,
		nullTime(q.Since), q.LabelledOnly, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []feature.OrderRecord
	for rows.Next() {
		var r feature.OrderRecord
		var orderID, tenderID, driverID, userID string
		var orderAt, tenderAt, regAt sql.NullTime
		var outcome sql.NullString
		if err := rows.Scan(
			&orderID, &tenderID, &driverID, &userID,
			&orderAt, &tenderAt, &regAt,
			&r.Platform, &r.CarModel, &r.CarName,
			&r.DurationSeconds, &r.PickupSeconds, &r.DistanceMeters, &r.PickupMeters,
			&r.PriceStart, &r.PriceBid, &r.DriverRating, &outcome,
		); err != nil {
			return nil, err
		}
		r.OrderID, r.TenderID = types.ID(orderID), types.ID(tenderID)
		r.DriverID, r.UserID = types.ID(driverID), types.ID(userID)
		r.OrderTime, r.TenderTime, r.DriverRegDate = orderAt.Time, tenderAt.Time, regAt.Time
		r.Outcome = normalizeOutcome(outcome.String)
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
