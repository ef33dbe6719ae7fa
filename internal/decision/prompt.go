package decision

import (
	"fmt"
	"strings"

	"updown/internal/pkg/convert"
	"updown/internal/types"
)

// buildSystemPrompt 输出只依赖策略与市场快照，同样输入得到同样文本。
func buildSystemPrompt(p Policy, m types.MarketSnapshot) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.SystemPolicy))
	b.WriteString("\n\n## Market\n")
	fmt.Fprintf(&b, "slug: %s\n", m.MarketSlug)
	if q := strings.TrimSpace(m.Question); q != "" {
		fmt.Fprintf(&b, "question: %s\n", q)
	}
	b.WriteString("outcomes:\n")
	for i, name := range m.Outcomes {
		price := "n/a"
		if i < len(m.OutcomePrices) {
			price = convert.FormatPlain(m.OutcomePrices[i])
		}
		fmt.Fprintf(&b, "  - %s: %s\n", name, price)
	}
	b.WriteString("\n## Output\n")
	b.WriteString("Reply with a JSON object {\"reasoning\": string, \"decision\": {\"market_slug\", \"direction\", \"size_usd\", \"max_loss_usd\", \"edge_prob\"}}.\n")
	fmt.Fprintf(&b, "market_slug must be %q. direction is one of UP, DOWN, NO_BET.", m.MarketSlug)
	return b.String()
}

func buildUserPrompt(contextPayload string) string {
	return "Market data (JSON):\n" + strings.TrimSpace(contextPayload)
}

func buildTradingSystemPrompt(p Policy, assets []string, toolsEnabled bool) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.TradingPolicy))
	b.WriteString("\n\n## Assets\n")
	b.WriteString(strings.Join(assets, ", "))
	b.WriteString("\n\n## Output\n")
	b.WriteString("Reply with a JSON object {\"reasoning\": string, \"trades\": [{\"asset\", \"action\", \"size_usd\", \"confidence\", \"rationale\"}]}.")
	if !toolsEnabled {
		b.WriteString("\nTools are unavailable now; answer with the final JSON.")
	}
	return b.String()
}
