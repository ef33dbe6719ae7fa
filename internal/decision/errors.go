package decision

import (
	"errors"
	"fmt"
)

// TransportError: LLM 调用本身失败（网络、超时、非 2xx），本周期直接失败，不在引擎层重试。
type TransportError struct {
	Purpose string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("llm transport (%s): %v", e.Purpose, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StructuralError: 回复违反契约，比如没有 choice/message、content 不是字符串、缺少 decision 对象。
type StructuralError struct {
	Reason string
	Raw    string
}

func (e *StructuralError) Error() string {
	return "llm structural: " + e.Reason
}

func structural(raw, format string, args ...any) *StructuralError {
	return &StructuralError{Reason: fmt.Sprintf(format, args...), Raw: raw}
}

// Outcome tags the three-way result of a decision call.
type Outcome string

const (
	OutcomeOk         Outcome = "ok"
	OutcomeStructural Outcome = "structural"
	OutcomeTransport  Outcome = "transport"
	OutcomeOther      Outcome = "error"
)

func Classify(err error) Outcome {
	if err == nil {
		return OutcomeOk
	}
	var se *StructuralError
	if errors.As(err, &se) {
		return OutcomeStructural
	}
	var te *TransportError
	if errors.As(err, &te) {
		return OutcomeTransport
	}
	return OutcomeOther
}
