package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"updown/internal/gateway/provider"
	"updown/internal/logger"
	"updown/internal/types"
)

type scriptedClient struct {
	replies  []reply
	requests []provider.ChatRequest
}

type reply struct {
	resp *provider.ChatResponse
	err  error
}

func (c *scriptedClient) Chat(_ context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	c.requests = append(c.requests, req)
	if len(c.requests) > len(c.replies) {
		return nil, errors.New("unexpected call")
	}
	r := c.replies[len(c.requests)-1]
	return r.resp, r.err
}

func textReply(content string) reply {
	raw, _ := json.Marshal(content)
	return reply{resp: &provider.ChatResponse{Choices: []provider.Choice{{
		Message: &provider.ResponseMessage{Role: "assistant", Content: raw},
	}}}}
}

func toolReply(calls ...provider.ToolCall) reply {
	return reply{resp: &provider.ChatResponse{Choices: []provider.Choice{{
		Message: &provider.ResponseMessage{Role: "assistant", Content: json.RawMessage("null"), ToolCalls: calls},
	}}}}
}

var btcMarket = types.MarketSnapshot{
	MarketSlug:    "btc-updown-15m-1770690600",
	Question:      "Bitcoin Up or Down?",
	Outcomes:      []string{"Up", "Down"},
	OutcomePrices: []float64{0.52, 0.48},
}

func newTestEngine(t *testing.T, client provider.ChatClient, reader IndicatorReader, rounds int) *Engine {
	t.Helper()
	e, err := NewEngine(client, nil, reader, Config{Model: "test-model", MaxToolRounds: rounds})
	require.NoError(t, err)
	return e
}

func TestDecideCoercesSloppyFields(t *testing.T) {
	client := &scriptedClient{replies: []reply{textReply(
		`{"reasoning":"x","decision":{"market_slug":"btc-updown-15m-1770690600","direction":"UP","size_usd":"10","max_loss_usd":null,"edge_prob":"bad"}}`,
	)}}
	res, err := newTestEngine(t, client, nil, 0).Decide(context.Background(), btcMarket, `{"markets":[]}`)
	require.NoError(t, err)

	assert.Equal(t, "x", res.Reasoning)
	assert.Equal(t, Decision{
		MarketSlug: "btc-updown-15m-1770690600",
		Direction:  types.DirectionUp,
		SizeUSD:    10,
		MaxLossUSD: 0,
		EdgeProb:   0.5,
	}, res.Decision)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, "json_schema", req.ResponseFormat.Type)
	assert.True(t, req.ResponseFormat.JSONSchema.Strict)
	assert.Empty(t, req.Tools)
	assert.Contains(t, req.Messages[0].Content, "btc-updown-15m-1770690600")
	assert.Contains(t, req.Messages[0].Content, "Up: 0.52")
	assert.Contains(t, req.Messages[1].Content, `{"markets":[]}`)
}

func TestDecideMissingDecisionIsStructural(t *testing.T) {
	client := &scriptedClient{replies: []reply{textReply(`{"reasoning":"x"}`)}}
	_, err := newTestEngine(t, client, nil, 0).Decide(context.Background(), btcMarket, "{}")

	var se *StructuralError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, OutcomeStructural, Classify(err))
}

func TestDecideNonObjectDecisionIsStructural(t *testing.T) {
	client := &scriptedClient{replies: []reply{textReply(`{"reasoning":"x","decision":"UP"}`)}}
	_, err := newTestEngine(t, client, nil, 0).Decide(context.Background(), btcMarket, "{}")
	assert.Equal(t, OutcomeStructural, Classify(err))
}

func TestDecideTransportError(t *testing.T) {
	client := &scriptedClient{replies: []reply{{err: &provider.StatusError{Code: 503, Message: "down"}}}}
	_, err := newTestEngine(t, client, nil, 0).Decide(context.Background(), btcMarket, "{}")

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, OutcomeTransport, Classify(err))
	assert.Len(t, client.requests, 1)
}

func TestDecideResponseShapeErrors(t *testing.T) {
	cases := map[string]reply{
		"no choices":  {resp: &provider.ChatResponse{}},
		"nil message": {resp: &provider.ChatResponse{Choices: []provider.Choice{{}}}},
		"non-string content": {resp: &provider.ChatResponse{Choices: []provider.Choice{{
			Message: &provider.ResponseMessage{Content: json.RawMessage(`[1,2]`)},
		}}}},
		"null content": {resp: &provider.ChatResponse{Choices: []provider.Choice{{
			Message: &provider.ResponseMessage{Content: json.RawMessage("null")},
		}}}},
		"malformed envelope": {err: provider.ErrMalformedResponse},
	}
	for name, r := range cases {
		t.Run(name, func(t *testing.T) {
			client := &scriptedClient{replies: []reply{r}}
			_, err := newTestEngine(t, client, nil, 0).Decide(context.Background(), btcMarket, "{}")
			assert.Equal(t, OutcomeStructural, Classify(err))
			assert.Len(t, client.requests, 1)
		})
	}
}

func TestDecideRepairsUnparseableReply(t *testing.T) {
	client := &scriptedClient{replies: []reply{
		textReply("I think it goes up."),
		textReply("```json\n{\"reasoning\":\"r\",\"decision\":{\"direction\":\"down\",\"size_usd\":5,\"max_loss_usd\":9,\"edge_prob\":0.7}}\n```"),
	}}
	res, err := newTestEngine(t, client, nil, 0).Decide(context.Background(), btcMarket, "{}")
	require.NoError(t, err)

	assert.Equal(t, types.DirectionDown, res.Decision.Direction)
	assert.Equal(t, btcMarket.MarketSlug, res.Decision.MarketSlug)
	assert.Equal(t, 5.0, res.Decision.SizeUSD)
	assert.Equal(t, 5.0, res.Decision.MaxLossUSD)
	assert.Equal(t, 0.7, res.Decision.EdgeProb)

	require.Len(t, client.requests, 2)
	repair := client.requests[1].Messages
	assert.Equal(t, provider.RoleAssistant, repair[len(repair)-2].Role)
	assert.Equal(t, DefaultPolicy().StrictJSONInstruction, repair[len(repair)-1].Content)
}

func TestDecideRepairFailsOnce(t *testing.T) {
	client := &scriptedClient{replies: []reply{textReply("nope"), textReply("still nope")}}
	_, err := newTestEngine(t, client, nil, 0).Decide(context.Background(), btcMarket, "{}")
	assert.Equal(t, OutcomeStructural, Classify(err))
	assert.Len(t, client.requests, 2)
}

func TestDecideUsesParsedField(t *testing.T) {
	client := &scriptedClient{replies: []reply{{resp: &provider.ChatResponse{Choices: []provider.Choice{{
		Message: &provider.ResponseMessage{
			Content: json.RawMessage(`"ignored"`),
			Parsed:  json.RawMessage(`{"reasoning":"p","decision":{"market_slug":"eth-updown-15m-1","direction":"UP","size_usd":3,"max_loss_usd":3,"edge_prob":1.4}}`),
		},
	}}}}}}
	res, err := newTestEngine(t, client, nil, 0).Decide(context.Background(), btcMarket, "{}")
	require.NoError(t, err)
	assert.Equal(t, "p", res.Reasoning)
	// mismatched slug falls back to the requested market
	assert.Equal(t, btcMarket.MarketSlug, res.Decision.MarketSlug)
	assert.Equal(t, 1.0, res.Decision.EdgeProb)
}

func TestDecideNoBetZeroesSize(t *testing.T) {
	client := &scriptedClient{replies: []reply{textReply(
		`{"reasoning":"flat","decision":{"market_slug":"btc-updown-15m-1770690600","direction":"sideways","size_usd":20,"max_loss_usd":20,"edge_prob":0.4}}`,
	)}}
	res, err := newTestEngine(t, client, nil, 0).Decide(context.Background(), btcMarket, "{}")
	require.NoError(t, err)
	assert.Equal(t, types.DirectionNoBet, res.Decision.Direction)
	assert.Zero(t, res.Decision.SizeUSD)
	assert.Zero(t, res.Decision.MaxLossUSD)
}

type fakeReader struct {
	calls []string
}

func (f *fakeReader) ReadIndicator(_ context.Context, asset, id, timeframe string) (map[string]any, error) {
	f.calls = append(f.calls, asset+":"+id+":"+timeframe)
	if id == "missing" {
		return nil, errors.New("unknown indicator")
	}
	return map[string]any{"asset": asset, "latest": map[string]float64{id: 55.5}}, nil
}

func fetchCall(id, args string) provider.ToolCall {
	return provider.ToolCall{ID: id, Type: "function", Function: provider.ToolCallFunction{Name: toolFetchIndicator, Arguments: args}}
}

const tradesJSON = `{"reasoning":"r","trades":[{"asset":"btc","action":"BUY","size_usd":25,"confidence":0.8,"rationale":"trend"},{"asset":"DOGE","action":"BUY","size_usd":5,"confidence":0.9,"rationale":"not asked"}]}`

func TestDecideTradesRunsToolThenAnswers(t *testing.T) {
	reader := &fakeReader{}
	client := &scriptedClient{replies: []reply{
		toolReply(fetchCall("c1", `{"asset":"BTC","indicator":"rsi_14","timeframe":"1h"}`), fetchCall("c2", `{"asset":"ETH","indicator":"missing"}`)),
		textReply(tradesJSON),
	}}
	res, err := newTestEngine(t, client, reader, 3).DecideTrades(context.Background(), []string{"BTC", "ETH"}, "{}")
	require.NoError(t, err)

	assert.Equal(t, 1, res.ToolRounds)
	assert.Equal(t, []string{"BTC:rsi_14:1h", "ETH:missing:"}, reader.calls)
	require.Len(t, res.Trades, 2)
	assert.Equal(t, TradeDecision{Asset: "BTC", Action: ActionBuy, SizeUSD: 25, Confidence: 0.8, Rationale: "trend"}, res.Trades[0])
	assert.Equal(t, TradeDecision{Asset: "ETH", Action: ActionHold}, res.Trades[1])

	require.Len(t, client.requests, 2)
	assert.Len(t, client.requests[0].Tools, 1)
	second := client.requests[1].Messages
	require.Len(t, second, 5)
	assert.Equal(t, provider.RoleTool, second[3].Role)
	assert.Equal(t, "c1", second[3].ToolCallID)
	assert.Contains(t, second[3].Content, "55.5")
	assert.Contains(t, second[4].Content, "unknown indicator")
}

func TestToolCallTranscriptIsIndented(t *testing.T) {
	var buf bytes.Buffer
	logger.SetLLMWriter(&buf)
	t.Cleanup(func() { logger.SetLLMWriter(nil) })

	e := newTestEngine(t, &scriptedClient{}, &fakeReader{}, 1)
	result := e.runTool(context.Background(), fetchCall("c1", `{"asset":"BTC","indicator":"rsi_14"}`))

	assert.NotContains(t, result, "\n")
	out := buf.String()
	assert.Contains(t, out, "--- ARGS ---")
	assert.Contains(t, out, "{\n  \"asset\": \"BTC\",")
	assert.Contains(t, out, "\"latest\": {")
}

func TestDecideTradesCapsToolRounds(t *testing.T) {
	reader := &fakeReader{}
	loop := toolReply(fetchCall("c", `{"asset":"BTC","indicator":"rsi_14"}`))
	client := &scriptedClient{replies: []reply{loop, loop, textReply(tradesJSON)}}
	res, err := newTestEngine(t, client, reader, 2).DecideTrades(context.Background(), []string{"BTC"}, "{}")
	require.NoError(t, err)

	assert.Equal(t, 2, res.ToolRounds)
	require.Len(t, client.requests, 3)
	assert.NotEmpty(t, client.requests[1].Tools)
	// after the cap the final request carries no tools
	assert.Empty(t, client.requests[2].Tools)
	msgs := client.requests[2].Messages
	assert.Equal(t, toolBudgetExhausted, msgs[len(msgs)-1].Content)
}

func TestDecideTradesWithoutReader(t *testing.T) {
	client := &scriptedClient{replies: []reply{textReply(`{"reasoning":"r","trades":[]}`)}}
	res, err := newTestEngine(t, client, nil, 3).DecideTrades(context.Background(), []string{"SOL"}, "{}")
	require.NoError(t, err)
	assert.Empty(t, client.requests[0].Tools)
	assert.Equal(t, []TradeDecision{{Asset: "SOL", Action: ActionHold}}, res.Trades)
}

func TestNewEngineRequiresModel(t *testing.T) {
	_, err := NewEngine(&scriptedClient{}, nil, nil, Config{})
	assert.Error(t, err)
}
