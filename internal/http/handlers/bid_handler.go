// README: Bid optimisation handlers.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"farebid/internal/modules/bidding"
	"farebid/internal/types"
)

type BidHandler struct {
	bidding *bidding.Service
}

func NewBidHandler(svc *bidding.Service) *BidHandler {
	return &BidHandler{bidding: svc}
}

type optimizeReq struct {
	orderRequest
	Floor              float64 `json:"floor"`
	Multiplier         float64 `json:"multiplier"`
	ProbabilityCeiling float64 `json:"probability_ceiling"`
	Steps              int     `json:"steps"`
	Explain            bool    `json:"explain"`
}

func (h *BidHandler) Optimize(c *gin.Context) {
	var req optimizeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	// The bid is what gets searched; fall back to the start price when omitted.
	if req.PriceBid == nil {
		req.PriceBid = req.PriceStart
	}
	rec, err := req.record()
	if err != nil {
		writeRecordError(c, err)
		return
	}
	res, err := h.bidding.Optimize(c.Request.Context(), rec, bidding.Params{
		Floor:              req.Floor,
		Multiplier:         req.Multiplier,
		ProbabilityCeiling: req.ProbabilityCeiling,
		Steps:              req.Steps,
		IncludeCandidates:  req.Explain,
	})
	if err != nil {
		writeBiddingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

type decisionResp struct {
	ID           string         `json:"id"`
	ModelVersion string         `json:"model_version"`
	Params       bidding.Params `json:"params"`
	Result       bidding.Result `json:"result"`
	CreatedAt    string         `json:"created_at"`
}

func (h *BidHandler) History(c *gin.Context) {
	orderID := c.Param("order_id")
	if orderID == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	ds, err := h.bidding.History(c.Request.Context(), types.ID(orderID), limit)
	if err != nil {
		writeBiddingError(c, err)
		return
	}
	out := make([]decisionResp, len(ds))
	for i, d := range ds {
		out[i] = decisionResp{
			ID:           d.ID.String(),
			ModelVersion: d.ModelVersion,
			Params:       d.Params,
			Result:       d.Result,
			CreatedAt:    d.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": orderID, "decisions": out})
}
