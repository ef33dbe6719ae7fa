package decision

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"updown/internal/logger"
)

// Policy 是提示词中的静态策略文本，可由 llm.policy_path 覆盖。
type Policy struct {
	SystemPolicy          string `mapstructure:"system_policy"`
	TradingPolicy         string `mapstructure:"trading_policy"`
	StrictJSONInstruction string `mapstructure:"strict_json_instruction"`
}

const defaultSystemPolicy = `You are a disciplined short-horizon crypto analyst betting on 15-minute UP/DOWN prediction markets.
Each market resolves UP if the asset price at the end of the window is at or above the price at the start, otherwise DOWN.
Outcome prices are the market's implied probabilities. Only bet when your estimated win probability clearly exceeds the price you would pay.
Prefer NO_BET when signals conflict, data is missing, or the edge is thin. Keep size_usd small and never let max_loss_usd exceed size_usd.
edge_prob is your probability that the chosen side wins, between 0 and 1.`

const defaultTradingPolicy = `You are a crypto trading assistant reviewing several assets at once.
For every asset in the context return exactly one trade with action BUY, SELL or HOLD, a size in USD, a confidence between 0 and 1 and a one-sentence rationale.
If an indicator you need is missing you may call fetch_indicator; otherwise answer directly. HOLD with size_usd 0 when unsure.`

const defaultStrictJSON = "Your previous reply could not be parsed. Return ONLY the JSON object that matches the schema. No prose, no markdown fences."

func DefaultPolicy() Policy {
	return Policy{
		SystemPolicy:          defaultSystemPolicy,
		TradingPolicy:         defaultTradingPolicy,
		StrictJSONInstruction: defaultStrictJSON,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if strings.TrimSpace(p.SystemPolicy) == "" {
		p.SystemPolicy = def.SystemPolicy
	}
	if strings.TrimSpace(p.TradingPolicy) == "" {
		p.TradingPolicy = def.TradingPolicy
	}
	if strings.TrimSpace(p.StrictJSONInstruction) == "" {
		p.StrictJSONInstruction = def.StrictJSONInstruction
	}
	return p
}

type PolicySource interface {
	Current() Policy
}

// StaticPolicy 不监听文件。
type StaticPolicy Policy

func (s StaticPolicy) Current() Policy { return Policy(s).withDefaults() }

// PolicyStore 读取策略文件并在文件变化时热更新；读失败时保留上一版。
type PolicyStore struct {
	path string
	v    *viper.Viper

	mu      sync.RWMutex
	current Policy
}

func LoadPolicy(path string) (*PolicyStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("policy path is empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	s := &PolicyStore{path: path, v: v}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Watch 开启热更新。
func (s *PolicyStore) Watch() {
	s.v.OnConfigChange(func(evt fsnotify.Event) {
		if err := s.reload(); err != nil {
			logger.Errorf("policy reload failed: %v", err)
			return
		}
		logger.Infof("policy reloaded from %s (%s)", s.path, evt.Op)
	})
	s.v.WatchConfig()
}

func (s *PolicyStore) reload() error {
	var p Policy
	if err := s.v.Unmarshal(&p); err != nil {
		return fmt.Errorf("decode policy %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.current = p.withDefaults()
	s.mu.Unlock()
	return nil
}

func (s *PolicyStore) Current() Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}
