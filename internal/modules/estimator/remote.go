package estimator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
)

var ErrRemoteStatus = errors.New("remote estimator returned non-2xx status")

const defaultChunkSize = 256

// Remote scores rows against an external HTTP scoring service.
type Remote struct {
	url       string
	columns   []string
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker
	chunkSize int
}

type RemoteOptions struct {
	Timeout   time.Duration
	ChunkSize int
}

type remoteRequest struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

type remoteResponse struct {
	Probabilities []float64 `json:"probabilities"`
}

func NewRemote(baseURL string, columns []string, opts RemoteOptions) *Remote {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	st := gobreaker.Settings{
		Name:     "remote-estimator",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("estimator breaker state change")
		},
	}
	return &Remote{
		url:       strings.TrimRight(baseURL, "/") + "/predict_proba",
		columns:   append([]string(nil), columns...),
		client:    &http.Client{Timeout: opts.Timeout},
		breaker:   gobreaker.NewCircuitBreaker(st),
		chunkSize: opts.ChunkSize,
	}
}

// PredictProba splits rows into chunks scored concurrently and reassembled in order.
func (r *Remote) PredictProba(ctx context.Context, rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(rows); start += r.chunkSize {
		end := min(start+r.chunkSize, len(rows))
		chunk := rows[start:end]
		offset := start
		g.Go(func() error {
			probs, err := r.score(gctx, chunk)
			if err != nil {
				return err
			}
			copy(out[offset:], probs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Remote) score(ctx context.Context, rows [][]float64) ([]float64, error) {
	res, err := r.breaker.Execute(func() (any, error) {
		body, err := json.Marshal(remoteRequest{Columns: r.columns, Rows: rows})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil, fmt.Errorf("%w: %d", ErrRemoteStatus, resp.StatusCode)
		}
		var decoded remoteResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 16<<20)).Decode(&decoded); err != nil {
			return nil, fmt.Errorf("decode estimator response: %w", err)
		}
		return decoded.Probabilities, nil
	})
	if err != nil {
		return nil, err
	}
	probs := res.([]float64)
	if len(probs) != len(rows) {
		return nil, fmt.Errorf("%w: sent %d rows, got %d probabilities", ErrLengthMismatch, len(rows), len(probs))
	}
	return probs, nil
}
