package indicator

var (
	macdOutputs = []Output{
		{Name: "macd", Key: "valueMACD"},
		{Name: "signal", Key: "valueMACDSignal"},
		{Name: "hist", Key: "valueMACDHist"},
	}
	bbandsOutputs = []Output{
		{Name: "upper", Key: "valueUpperBand"},
		{Name: "middle", Key: "valueMiddleBand"},
		{Name: "lower", Key: "valueLowerBand"},
	}
)

func builtinDefinitions() []Definition {
	return []Definition{
		{ID: "ema_20", Indicator: "ema", Params: map[string]any{"period": 20}, Shape: ShapeSeries, Key: "value"},
		{ID: "ema_50", Indicator: "ema", Params: map[string]any{"period": 50}, Shape: ShapeSeries, Key: "value"},
		{ID: "sma_20", Indicator: "sma", Params: map[string]any{"period": 20}, Shape: ShapeSeries, Key: "value"},
		{ID: "rsi_7", Indicator: "rsi", Params: map[string]any{"period": 7}, Shape: ShapeSeries, Key: "value"},
		{ID: "rsi_14", Indicator: "rsi", Params: map[string]any{"period": 14}, Shape: ShapeSeries, Key: "value"},
		{ID: "macd", Indicator: "macd", Shape: ShapeMulti, Outputs: macdOutputs},
		{ID: "bbands", Indicator: "bbands", Params: map[string]any{"period": 20, "stddev": 2}, Shape: ShapeMulti, Outputs: bbandsOutputs},
		{ID: "atr_3", Indicator: "atr", Params: map[string]any{"period": 3}, Shape: ShapeSingle, Key: "value"},
		{ID: "atr_14", Indicator: "atr", Params: map[string]any{"period": 14}, Shape: ShapeSingle, Key: "value"},
		{ID: "adx_14", Indicator: "adx", Params: map[string]any{"period": 14}, Shape: ShapeSingle, Key: "value"},
		{ID: "mfi_14", Indicator: "mfi", Params: map[string]any{"period": 14}, Shape: ShapeSingle, Key: "value"},
		{ID: "cci_20", Indicator: "cci", Params: map[string]any{"period": 20}, Shape: ShapeSingle, Key: "value"},
		{ID: "obv", Indicator: "obv", Shape: ShapeSeries, Key: "value"},
		{ID: "stoch", Indicator: "stoch", Shape: ShapeMulti, Outputs: []Output{
			{Name: "k", Key: "valueK"},
			{Name: "d", Key: "valueD"},
		}},
	}
}

func builtinDefaults() map[Horizon][]string {
	return map[Horizon][]string{
		Intraday: {"ema_20", "macd", "rsi_7", "rsi_14", "bbands"},
		LongTerm: {"ema_20", "ema_50", "atr_3", "atr_14", "macd", "rsi_14"},
	}
}
