// README: Prediction handlers for single orders and batches.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"farebid/internal/metrics"
	"farebid/internal/modules/feature"
	"farebid/internal/modules/predictor"
	"farebid/internal/types"
)

type PredictHandler struct {
	predictor *predictor.Predictor
	metrics   *metrics.Registry
}

func NewPredictHandler(p *predictor.Predictor, m *metrics.Registry) *PredictHandler {
	return &PredictHandler{predictor: p, metrics: m}
}

type predictionResp struct {
	OrderID     types.ID `json:"order_id,omitempty"`
	Probability float64  `json:"probability"`
	Prediction  int      `json:"prediction"`
	Threshold   float64  `json:"threshold"`
}

type batchReq struct {
	Orders []orderRequest `json:"orders"`
}

func (h *PredictHandler) Predict(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	rec, err := req.record()
	if err != nil {
		writeRecordError(c, err)
		return
	}
	p, err := h.predictor.Predict(c.Request.Context(), rec)
	if err != nil {
		writeRecordError(c, err)
		return
	}
	h.metrics.ObservePrediction(p.Label)
	writeJSON(c, http.StatusOK, toResp(rec.OrderID, p))
}

func (h *PredictHandler) PredictBatch(c *gin.Context) {
	var req batchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Orders) == 0 {
		writeError(c, http.StatusBadRequest, "orders is empty")
		return
	}
	if len(req.Orders) > maxBatch {
		writeError(c, http.StatusBadRequest, fmt.Sprintf("at most %d orders per batch", maxBatch))
		return
	}
	recs := make([]feature.OrderRecord, len(req.Orders))
	for i, o := range req.Orders {
		rec, err := o.record()
		if err != nil {
			writeError(c, http.StatusBadRequest, fmt.Sprintf("orders[%d]: %v", i, err))
			return
		}
		recs[i] = rec
	}
	preds, err := h.predictor.PredictBatch(c.Request.Context(), recs)
	if err != nil {
		writeRecordError(c, err)
		return
	}
	out := make([]predictionResp, len(preds))
	for i, p := range preds {
		h.metrics.ObservePrediction(p.Label)
		out[i] = toResp(recs[i].OrderID, p)
	}
	writeJSON(c, http.StatusOK, gin.H{"predictions": out})
}

// Model describes the loaded model.
func (h *PredictHandler) Model(c *gin.Context) {
	m := h.predictor.Model()
	writeJSON(c, http.StatusOK, gin.H{
		"version":    m.Version(),
		"threshold":  m.Threshold(),
		"features":   m.Features(),
		"trained_at": m.TrainedAt(),
	})
}

func toResp(id types.ID, p predictor.Prediction) predictionResp {
	return predictionResp{
		OrderID:     id,
		Probability: types.Round(p.Probability, 4),
		Prediction:  p.Label,
		Threshold:   p.Threshold,
	}
}
