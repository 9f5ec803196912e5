// README: Bid decision store backed by PostgreSQL.
package bidding

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"farebid/internal/types"
)

type DecisionStore interface {
	Save(ctx context.Context, d *Decision) error
	ListByOrder(ctx context.Context, orderID types.ID, limit int) ([]Decision, error)
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const decisionsDDL = `
    CREATE TABLE IF NOT EXISTS bid_decisions (
        id UUID PRIMARY KEY,
        order_id TEXT NOT NULL,
        model_version TEXT NOT NULL,
        base_price DOUBLE PRECISION NOT NULL,
        optimal_bid DOUBLE PRECISION NOT NULL,
        probability DOUBLE PRECISION NOT NULL,
        expected_income DOUBLE PRECISION NOT NULL,
        evaluated INT NOT NULL,
        feasible INT NOT NULL,
        params JSONB NOT NULL,
        candidates JSONB,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );
    CREATE INDEX IF NOT EXISTS bid_decisions_order_idx ON bid_decisions (order_id, created_at DESC)`

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, decisionsDDL)
	return err
}

func (s *Store) Save(ctx context.Context, d *Decision) error {
	params, err := json.Marshal(d.Params)
	if err != nil {
		return err
	}
	var candidates []byte
	if len(d.Result.Candidates) > 0 {
		if candidates, err = json.Marshal(d.Result.Candidates); err != nil {
			return err
		}
	}
	_, err = s.db.Exec(ctx, `
        INSERT INTO bid_decisions (
            id, order_id, model_version, base_price, optimal_bid,
            probability, expected_income, evaluated, feasible,
            params, candidates, created_at
        ) VALUES (
            $1, $2, $3, $4, $5,
            $6, $7, $8, $9,
            $10, $11, $12
        )`,
		d.ID,
		string(d.OrderID),
		d.ModelVersion,
		d.Result.BasePrice,
		d.Result.OptimalBid,
		d.Result.Probability,
		d.Result.ExpectedIncome,
		d.Result.Evaluated,
		d.Result.Feasible,
		params,
		candidates,
		d.CreatedAt,
	)
	return err
}

func (s *Store) ListByOrder(ctx context.Context, orderID types.ID, limit int) ([]Decision, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
        SELECT id, order_id, model_version, base_price, optimal_bid,
               probability, expected_income, evaluated, feasible,
               params, candidates, created_at
        FROM bid_decisions
        WHERE order_id = $1
        ORDER BY created_at DESC
        LIMIT $2`, string(orderID), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		var orderIDStr string
		var params, candidates []byte
		if err := rows.Scan(
			&d.ID, &orderIDStr, &d.ModelVersion, &d.Result.BasePrice, &d.Result.OptimalBid,
			&d.Result.Probability, &d.Result.ExpectedIncome, &d.Result.Evaluated, &d.Result.Feasible,
			&params, &candidates, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		d.OrderID = types.ID(orderIDStr)
		if err := json.Unmarshal(params, &d.Params); err != nil {
			return nil, err
		}
		if len(candidates) > 0 {
			if err := json.Unmarshal(candidates, &d.Result.Candidates); err != nil {
				return nil, err
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
