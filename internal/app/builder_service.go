package app

import (
	"fmt"

	"updown/internal/agent"
	brcfg "updown/internal/config"
	"updown/internal/gateway/clob"
	"updown/internal/gateway/notifier"
	"updown/internal/logger"
	httpapi "updown/internal/transport/http/api"
)

// buildOrderPlacer 返回接口值；未启用时必须是 nil 接口而不是 nil 指针。
func buildOrderPlacer(cfg brcfg.CLOBConfig) agent.OrderPlacer {
	if !cfg.Enabled {
		return nil
	}
	logger.Infof("✓ CLOB 下单已启用: %s auto_order=%v", cfg.Host, cfg.AutoOrder)
	return clob.New(clob.Config{
		Host:       cfg.Host,
		APIKey:     cfg.APIKey,
		APISecret:  cfg.APISecret,
		Passphrase: cfg.Passphrase,
		Address:    cfg.Address,
		Timeout:    cfg.Timeout(),
	})
}

func buildNotifier(cfg brcfg.NotifyConfig) notifier.TextNotifier {
	if !cfg.Telegram.Enabled {
		return nil
	}
	logger.Infof("✓ Telegram 通知已启用 chat=%s", cfg.Telegram.ChatID)
	return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
}

func buildHTTPServer(cfg brcfg.AppConfig, svc httpapi.PredictionService) (*httpapi.Server, error) {
	server, err := httpapi.NewServer(cfg.HTTPAddr, svc)
	if err != nil {
		return nil, fmt.Errorf("初始化 HTTP 接口失败: %w", err)
	}
	return server, nil
}
