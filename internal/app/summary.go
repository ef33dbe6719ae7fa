package app

import (
	"fmt"
	"strings"

	brcfg "updown/internal/config"
	"updown/internal/indicator"
)

type StartupSummary struct {
	Env        string
	HTTPAddr   string
	Indicators IndicatorSummary
	LLM        LLMSummary
	Scheduler  SchedulerSummary
	Orders     string
	Notify     string
	StorePath  string
}

type IndicatorSummary struct {
	Provider string
	Intraday string
	LongTerm string
	Catalog  []string
}

type LLMSummary struct {
	Model         string
	Policy        string
	MaxToolRounds int
}

type SchedulerSummary struct {
	Enabled bool
	Symbols []string
	Offset  int
}

func newStartupSummary(cfg *brcfg.Config, catalog *indicator.Catalog, policy string) *StartupSummary {
	orders := "disabled"
	if cfg.CLOB.Enabled {
		orders = "manual"
		if cfg.CLOB.AutoOrder {
			orders = "auto"
		}
	}
	notify := "-"
	if cfg.Notify.Telegram.Enabled {
		notify = "telegram"
	}
	return &StartupSummary{
		Env:      cfg.App.Env,
		HTTPAddr: cfg.App.HTTPAddr,
		Indicators: IndicatorSummary{
			Provider: cfg.Indicators.Provider,
			Intraday: cfg.Indicators.IntradayTimeframe,
			LongTerm: cfg.Indicators.LongTermTimeframe,
			Catalog:  catalog.IDs(),
		},
		LLM: LLMSummary{
			Model:         cfg.LLM.Model,
			Policy:        policy,
			MaxToolRounds: cfg.LLM.MaxToolRounds,
		},
		Scheduler: SchedulerSummary{
			Enabled: cfg.Scheduler.Enabled,
			Symbols: cfg.Scheduler.Symbols,
			Offset:  cfg.Scheduler.OffsetSeconds,
		},
		Orders:    orders,
		Notify:    notify,
		StorePath: cfg.Store.Path,
	}
}

func (s *StartupSummary) String() string {
	var b strings.Builder
	line := strings.Repeat("=", 80)
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Fprintln(&b, line)

	fmt.Fprintf(&b, "  环境: %s  HTTP: %s\n\n", s.Env, s.HTTPAddr)

	fmt.Fprintln(&b, "[指标 (INDICATORS)]")
	fmt.Fprintf(&b, "  来源: %s\n", s.Indicators.Provider)
	fmt.Fprintf(&b, "  周期: intraday=%s long_term=%s\n", s.Indicators.Intraday, s.Indicators.LongTerm)
	fmt.Fprintf(&b, "  目录: %s\n\n", formatList(s.Indicators.Catalog))

	fmt.Fprintln(&b, "[模型 (LLM)]")
	fmt.Fprintf(&b, "  模型: %s\n", s.LLM.Model)
	fmt.Fprintf(&b, "  策略: %s\n", s.LLM.Policy)
	fmt.Fprintf(&b, "  工具轮次上限: %d\n\n", s.LLM.MaxToolRounds)

	fmt.Fprintln(&b, "[调度 (SCHEDULER)]")
	if !s.Scheduler.Enabled {
		fmt.Fprintln(&b, "  (未启用)")
	} else {
		fmt.Fprintf(&b, "  币种: %s\n", formatList(s.Scheduler.Symbols))
		fmt.Fprintf(&b, "  窗口偏移: %ds\n", s.Scheduler.Offset)
	}
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "[下单] %s  [通知] %s  [存储] %s\n", s.Orders, s.Notify, s.StorePath)
	fmt.Fprint(&b, line)
	return b.String()
}

func (s *StartupSummary) Print() {
	fmt.Println(s.String())
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
