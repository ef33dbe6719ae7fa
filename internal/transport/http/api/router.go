package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"updown/internal/agent"
	"updown/internal/decision"
	"updown/internal/gateway/clob"
	"updown/internal/predict"
	"updown/internal/store"
	"updown/internal/types"
)

type PredictionService interface {
	RunPrediction(ctx context.Context, symbol string) (*store.PredictionRecord, error)
	History(ctx context.Context, f store.Filter) ([]store.PredictionRecord, error)
	Prediction(ctx context.Context, id string) (*store.PredictionRecord, error)
	PlaceOrderForRecord(ctx context.Context, id string) (*clob.OrderConfirmation, error)
	AnalyzeAssets(ctx context.Context, symbols []string) (*agent.Analysis, error)
	ListMarkets(ctx context.Context, filter string, limit int) ([]types.MarketSnapshot, error)
}

type Router struct {
	svc PredictionService
}

func NewRouter(svc PredictionService) *Router {
	return &Router{svc: svc}
}

func (r *Router) Register(group *gin.RouterGroup) {
	group.POST("/predict", r.handlePredict)
	group.GET("/predictions", r.handleHistory)
	group.GET("/predictions/chart", r.handleChart)
	group.GET("/predictions/:id", r.handlePrediction)
	group.POST("/predictions/:id/order", r.handleOrder)
	group.POST("/analyze", r.handleAnalyze)
	group.GET("/markets", r.handleMarkets)
}

type predictRequest struct {
	Symbol string `json:"symbol" binding:"required"`
}

func (r *Router) handlePredict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	rec, err := r.svc.RunPrediction(c.Request.Context(), req.Symbol)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (r *Router) handleHistory(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	recs, err := r.svc.History(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": recs, "count": len(recs)})
}

func (r *Router) handlePrediction(c *gin.Context) {
	rec, err := r.svc.Prediction(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (r *Router) handleOrder(c *gin.Context) {
	conf, err := r.svc.PlaceOrderForRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conf)
}

type analyzeRequest struct {
	Symbols []string `json:"symbols" binding:"required,min=1"`
}

func (r *Router) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols is required"})
		return
	}
	res, err := r.svc.AnalyzeAssets(c.Request.Context(), req.Symbols)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Router) handleMarkets(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	markets, err := r.svc.ListMarkets(c.Request.Context(), strings.TrimSpace(c.Query("filter")), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": markets, "count": len(markets)})
}

func parseFilter(c *gin.Context) (store.Filter, error) {
	f := store.Filter{
		Symbol:    c.Query("symbol"),
		Direction: c.Query("direction"),
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, errors.New("limit must be an integer")
		}
		f.Limit = n
	}
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, errors.New("since must be RFC3339")
		}
		f.Since = ts
	}
	return f, nil
}

// statusFor 把领域错误映射为 HTTP 状态码。
func statusFor(err error) int {
	switch {
	case errors.Is(err, predict.ErrMarketNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, agent.ErrOrdersDisabled), errors.Is(err, agent.ErrNothingToOrder), errors.Is(err, clob.ErrMissingCredentials):
		return http.StatusConflict
	}
	switch decision.Classify(err) {
	case decision.OutcomeStructural:
		return http.StatusBadGateway
	case decision.OutcomeTransport:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
