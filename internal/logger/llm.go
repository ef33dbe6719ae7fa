package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

// LLM transcript log is kept apart from the main log so prompts can be audited per cycle.
var (
	llmMu          sync.Mutex
	llmLog         *log.Logger
	llmDumpPayload bool
)

func SetLLMWriter(w io.Writer) {
	llmMu.Lock()
	defer llmMu.Unlock()
	if w == nil {
		llmLog = nil
		return
	}
	llmLog = log.New(w, "", log.LstdFlags)
}

func EnableLLMPayloadDump(enabled bool) {
	llmMu.Lock()
	llmDumpPayload = enabled
	llmMu.Unlock()
}

type transcriptPart struct {
	title string
	body  string
}

func writeTranscript(tags []string, parts []transcriptPart) {
	llmMu.Lock()
	out := llmLog
	llmMu.Unlock()
	if out == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[LLM]")
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		b.WriteString("[" + tag + "]")
	}
	b.WriteString("\n")
	for _, p := range parts {
		title := strings.TrimSpace(p.title)
		if title == "" {
			title = "CONTENT"
		}
		b.WriteString("--- " + title + " ---\n")
		b.WriteString(p.body)
		if !strings.HasSuffix(p.body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	out.Print(b.String())
}

// LogLLMRequest records the system/user prompts of one model call.
// payload is the raw request body and is only written when payload dump is enabled.
func LogLLMRequest(purpose, model, traceID, systemPrompt, userPrompt, payload string) {
	parts := []transcriptPart{
		{title: "SYSTEM", body: systemPrompt},
		{title: "USER", body: userPrompt},
	}
	llmMu.Lock()
	dump := llmDumpPayload
	llmMu.Unlock()
	if dump && strings.TrimSpace(payload) != "" {
		parts = append(parts, transcriptPart{title: "PAYLOAD", body: payload})
	}
	writeTranscript([]string{"request", model, purpose, traceID}, parts)
}

func LogLLMResponse(purpose, model, traceID, raw string) {
	writeTranscript([]string{"response", model, purpose, traceID}, []transcriptPart{{title: "RAW", body: raw}})
}

// LogLLMToolCall records one tool invocation and what was handed back to the model.
func LogLLMToolCall(model, traceID, name, args, result string) {
	writeTranscript([]string{"tool", model, name, traceID}, []transcriptPart{
		{title: "ARGS", body: args},
		{title: "RESULT", body: result},
	})
}
