package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"updown/internal/gateway/notifier"
	"updown/internal/logger"
	"updown/internal/market"
	"updown/internal/store"
	"updown/internal/types"
)

const notifyTimeout = 20 * time.Second

func directionIcon(dir string) string {
	switch types.Direction(dir) {
	case types.DirectionUp:
		return "📈"
	case types.DirectionDown:
		return "📉"
	default:
		return "⏸️"
	}
}

func predictionMessage(rec *store.PredictionRecord) notifier.Message {
	price := "n/a"
	if rec.CurrentPrice != nil {
		price = fmt.Sprintf("%.4f", *rec.CurrentPrice)
	}
	return notifier.Message{
		Icon:  directionIcon(rec.Direction),
		Title: fmt.Sprintf("%s %s", rec.Symbol, rec.Direction),
		Sections: []notifier.Section{
			{Title: "Market", Lines: []string{rec.MarketSlug, rec.Question, "price " + price}},
			{Title: "Decision", Lines: []string{
				fmt.Sprintf("size_usd %.2f", rec.SizeUSD),
				fmt.Sprintf("max_loss_usd %.2f", rec.MaxLossUSD),
				fmt.Sprintf("edge_prob %.2f", rec.EdgeProb),
			}},
			{Title: "Reasoning", Lines: []string{rec.Reasoning}},
		},
		Footer:    "id " + rec.ID,
		Timestamp: rec.Timestamp,
	}
}

// notify 推送失败只记日志，不影响本次预测结果。
func (s *Service) notify(ctx context.Context, rec *store.PredictionRecord) {
	if s.deps.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.deps.Notifier.SendText(ctx, predictionMessage(rec).RenderMarkdown()); err != nil {
		logger.Warnf("telegram push failed for %s: %v", rec.ID, err)
	}
}

func encodeBrief(section market.MarketSection) (datatypes.JSON, error) {
	raw, err := json.Marshal(section.Brief())
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
