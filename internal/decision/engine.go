// Package decision turns aggregated market context into a typed LLM decision.
package decision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"

	"updown/internal/gateway/provider"
	"updown/internal/logger"
	"updown/internal/metrics"
	"updown/internal/pkg/jsonutil"
	"updown/internal/trace"
	"updown/internal/types"
)

const (
	purposeDecide = "decide"
	purposeRepair = "decide_repair"
	purposeTrades = "trades"

	DefaultMaxToolRounds = 3

	toolBudgetExhausted = "Tool budget exhausted. Answer now with the final JSON object."
)

type Config struct {
	Model       string
	Temperature *float64
	// MaxToolRounds 限制多资产模式下工具调用往返次数，<=0 表示不开放工具。
	MaxToolRounds int
	// IndicatorIDs 作为 fetch_indicator 的 enum，空则不限制。
	IndicatorIDs []string
}

type Engine struct {
	client provider.ChatClient
	policy PolicySource
	reader IndicatorReader
	cfg    Config

	decisionSchema *jsonschema.Schema
	tradeSchema    *jsonschema.Schema
}

func NewEngine(client provider.ChatClient, policy PolicySource, reader IndicatorReader, cfg Config) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("decision engine requires a chat client")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("decision engine requires a model")
	}
	if policy == nil {
		policy = StaticPolicy(DefaultPolicy())
	}
	ds, err := compileSchema(decisionSchemaName, decisionSchema())
	if err != nil {
		return nil, fmt.Errorf("compile decision schema: %w", err)
	}
	ts, err := compileSchema(tradeSchemaName, tradeSchema())
	if err != nil {
		return nil, fmt.Errorf("compile trade schema: %w", err)
	}
	return &Engine{
		client:         client,
		policy:         policy,
		reader:         reader,
		cfg:            cfg,
		decisionSchema: ds,
		tradeSchema:    ts,
	}, nil
}

// Decide asks the model for one UP/DOWN/NO_BET decision on market.
// Transport failures come back as *TransportError, contract violations as *StructuralError.
func (e *Engine) Decide(ctx context.Context, market types.MarketSnapshot, contextPayload string) (res Result, err error) {
	ctx, span := trace.Start(ctx, "decide", attribute.String("market_slug", market.MarketSlug))
	defer func() { trace.End(span, err) }()

	p := e.policy.Current()
	msgs := []provider.Message{
		{Role: provider.RoleSystem, Content: buildSystemPrompt(p, market)},
		{Role: provider.RoleUser, Content: buildUserPrompt(contextPayload)},
	}
	format := jsonSchemaFormat(decisionSchemaName, decisionSchema())

	msg, err := e.call(ctx, purposeDecide, msgs, format, nil)
	if err != nil {
		return Result{}, err
	}
	raw, err := e.finalObject(ctx, p, msgs, format, msg)
	if err != nil {
		return Result{}, err
	}
	if verr := validateRaw(e.decisionSchema, raw); verr != nil {
		logger.Warnf("decision for %s violates schema, coercing: %v", market.MarketSlug, verr)
	}
	return coerceResult(raw, market.MarketSlug)
}

type loopState int

const (
	awaitingModel loopState = iota
	executingTool
	awaitingFinal
)

// DecideTrades 多资产变体：模型可以先调用 fetch_indicator，再给最终 JSON。
// 往返次数达到 MaxToolRounds 后撤回工具，要求直接作答。
func (e *Engine) DecideTrades(ctx context.Context, assets []string, contextPayload string) (res TradeResult, err error) {
	ctx, span := trace.Start(ctx, "decide_trades", attribute.StringSlice("assets", assets))
	defer func() { trace.End(span, err) }()

	p := e.policy.Current()
	toolsOn := e.reader != nil && e.cfg.MaxToolRounds > 0
	msgs := []provider.Message{
		{Role: provider.RoleSystem, Content: buildTradingSystemPrompt(p, assets, toolsOn)},
		{Role: provider.RoleUser, Content: buildUserPrompt(contextPayload)},
	}
	format := jsonSchemaFormat(tradeSchemaName, tradeSchema())

	var (
		state  = awaitingModel
		rounds int
		msg    *provider.ResponseMessage
	)
	if !toolsOn {
		state = awaitingFinal
	}
	for {
		switch state {
		case awaitingModel, awaitingFinal:
			var tools []provider.Tool
			if state == awaitingModel {
				tools = []provider.Tool{fetchIndicatorTool(e.cfg.IndicatorIDs)}
			}
			msg, err = e.call(ctx, purposeTrades, msgs, format, tools)
			if err != nil {
				return TradeResult{}, err
			}
			if state == awaitingModel && len(msg.ToolCalls) > 0 {
				state = executingTool
				continue
			}
			raw, err := e.finalObject(ctx, p, msgs, format, msg)
			if err != nil {
				return TradeResult{}, err
			}
			if verr := validateRaw(e.tradeSchema, raw); verr != nil {
				logger.Warnf("trade decisions violate schema, coercing: %v", verr)
			}
			res, err = coerceTrades(raw, assets)
			if err != nil {
				return TradeResult{}, err
			}
			res.ToolRounds = rounds
			return res, nil

		case executingTool:
			content, _ := msg.ContentString()
			msgs = append(msgs, provider.Message{Role: provider.RoleAssistant, Content: content, ToolCalls: msg.ToolCalls})
			for _, call := range msg.ToolCalls {
				msgs = append(msgs, provider.Message{
					Role:       provider.RoleTool,
					ToolCallID: call.ID,
					Content:    e.runTool(ctx, call),
				})
			}
			rounds++
			state = awaitingModel
			if rounds >= e.cfg.MaxToolRounds {
				logger.Infof("tool rounds exhausted (%d), asking for final answer", rounds)
				msgs = append(msgs, provider.Message{Role: provider.RoleUser, Content: toolBudgetExhausted})
				state = awaitingFinal
			}
		}
	}
}

// finalObject 取出最终 JSON 对象；解析不了时带上严格指令再请求一次。
func (e *Engine) finalObject(ctx context.Context, p Policy, msgs []provider.Message, format *provider.ResponseFormat, msg *provider.ResponseMessage) (string, error) {
	raw, ok, err := objectFrom(msg)
	if err != nil || ok {
		return raw, err
	}
	content, _ := msg.ContentString()
	logger.Warnf("llm reply is not JSON, retrying with strict instruction")
	repair := make([]provider.Message, 0, len(msgs)+2)
	repair = append(repair, msgs...)
	repair = append(repair,
		provider.Message{Role: provider.RoleAssistant, Content: content},
		provider.Message{Role: provider.RoleUser, Content: p.StrictJSONInstruction},
	)
	msg, err = e.call(ctx, purposeRepair, repair, format, nil)
	if err != nil {
		return "", err
	}
	raw, ok, err = objectFrom(msg)
	if err != nil {
		return "", err
	}
	if !ok {
		content, _ = msg.ContentString()
		return "", structural(content, "reply is not parseable JSON after repair")
	}
	return raw, nil
}

// objectFrom 优先使用 transport 已解析好的 parsed 字段。
func objectFrom(msg *provider.ResponseMessage) (string, bool, error) {
	if len(msg.Parsed) > 0 && gjson.ValidBytes(msg.Parsed) && gjson.ParseBytes(msg.Parsed).IsObject() {
		return string(msg.Parsed), true, nil
	}
	content, ok := msg.ContentString()
	if !ok {
		return "", false, structural(string(msg.Content), "message content is not a string")
	}
	obj, ok := parseObject(content)
	return obj, ok, nil
}

func (e *Engine) call(ctx context.Context, purpose string, msgs []provider.Message, format *provider.ResponseFormat, tools []provider.Tool) (*provider.ResponseMessage, error) {
	req := provider.ChatRequest{
		Model:          e.cfg.Model,
		Messages:       msgs,
		ResponseFormat: format,
		Tools:          tools,
		Temperature:    e.cfg.Temperature,
	}
	if len(tools) > 0 {
		req.ToolChoice = "auto"
	}
	traceID := trace.RequestID(ctx)
	logger.LogLLMRequest(purpose, e.cfg.Model, traceID, firstContent(msgs, provider.RoleSystem), lastContent(msgs, provider.RoleUser), jsonutil.Compact(req))

	started := time.Now()
	msg, err := e.send(ctx, purpose, traceID, req)
	metrics.ObserveLLM(purpose, string(Classify(err)), started)
	return msg, err
}

func (e *Engine) send(ctx context.Context, purpose, traceID string, req provider.ChatRequest) (*provider.ResponseMessage, error) {
	resp, err := e.client.Chat(ctx, req)
	if err != nil {
		if errors.Is(err, provider.ErrMalformedResponse) {
			return nil, structural("", "%v", err)
		}
		return nil, &TransportError{Purpose: purpose, Err: err}
	}
	logger.LogLLMResponse(purpose, e.cfg.Model, traceID, string(resp.Raw))
	if len(resp.Choices) == 0 {
		return nil, structural(string(resp.Raw), "response has no choices")
	}
	msg := resp.Choices[0].Message
	if msg == nil {
		return nil, structural(string(resp.Raw), "choice has no message")
	}
	return msg, nil
}

func jsonSchemaFormat(name string, schema map[string]any) *provider.ResponseFormat {
	return &provider.ResponseFormat{
		Type: "json_schema",
		JSONSchema: &provider.JSONSchemaFormat{
			Name:   name,
			Schema: schema,
			Strict: true,
		},
	}
}

func firstContent(msgs []provider.Message, role provider.Role) string {
	for _, m := range msgs {
		if m.Role == role {
			return m.Content
		}
	}
	return ""
}

func lastContent(msgs []provider.Message, role provider.Role) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == role {
			return msgs[i].Content
		}
	}
	return ""
}
