// Package intent classifies an inbound user message as conversation or a
// forecast request, extracting products, customers and the period. The
// resolution core consumes only the structured output; it never sees free
// text.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"demand_forecasting/pkg/core/agent"
	"demand_forecasting/pkg/core/combination"
	"demand_forecasting/pkg/core/utils"
)

// MessageType distinguishes the parser outcomes.
type MessageType string

const (
	TypeChat     MessageType = "chat"
	TypeForecast MessageType = "forecast"
	TypeError    MessageType = "error"
)

// Result is the structured parse of one user message.
type Result struct {
	Type MessageType `json:"type"`
	// Data is set when Type is forecast.
	Data *RequestData `json:"data,omitempty"`
	// ChatReply is the direct conversational answer when Type is chat.
	ChatReply string `json:"chat_reply,omitempty"`
	// Error describes a parse failure when Type is error.
	Error string `json:"error,omitempty"`
}

// RequestData is the already-structured forecast request the core consumes.
type RequestData struct {
	Products  []string           `json:"products"`
	Customers []string           `json:"customers"`
	Period    combination.Period `json:"period"`
}

const systemPrompt = `You are an assistant for a demand forecasting system.
Classify the user's message as either:
1. Normal chat (greetings, general questions, conversation)
2. A forecast request (mentions of products, customers and a period)

For FORECAST REQUESTS extract:
- products: list of product codes or names mentioned
- customers: list of customer codes or names mentioned
- period: object with "month" (number 1-12) and "year" (4-digit number)

ALWAYS answer with JSON of this exact shape:
{
    "type": "chat" or "forecast",
    "data": {
        "products": [...],
        "customers": [...],
        "period": {"month": ..., "year": ...}
    },
    "chat_reply": "your answer when type=chat"
}

If type="chat", "data" may be null and you must provide "chat_reply".
If type="forecast" but essential information is missing, set type="chat" and
ask for clarification in "chat_reply".
Answer in the same language as the user's message. Return ONLY JSON.`

// Parser turns free-form messages into Results via the configured LLM.
type Parser struct {
	mgr *agent.Manager
}

func NewParser(mgr *agent.Manager) *Parser {
	return &Parser{mgr: mgr}
}

// llmParse mirrors the JSON shape the prompt mandates. Products and
// customers come back as strings or numbers depending on the model's mood,
// so they are decoded loosely and normalized afterwards.
type llmParse struct {
	Type string `json:"type"`
	Data *struct {
		Products  []any `json:"products"`
		Customers []any `json:"customers"`
		Period    *struct {
			Month int `json:"month"`
			Year  int `json:"year"`
		} `json:"period"`
	} `json:"data"`
	ChatReply string `json:"chat_reply"`
}

// Parse classifies the message. Provider failures yield a Type=error Result
// rather than an error: the caller always gets something presentable.
func (p *Parser) Parse(ctx context.Context, message string) *Result {
	options := map[string]interface{}{
		"temperature":     0.3,
		"response_format": map[string]interface{}{"type": "json_object"},
	}

	raw, err := p.mgr.ExecutePrompt(ctx, "parser", message, systemPrompt, options)
	if err != nil {
		return &Result{
			Type:      TypeError,
			Error:     err.Error(),
			ChatReply: fmt.Sprintf("Sorry, something went wrong while reading your request: %v", err),
		}
	}

	var parsed llmParse
	if err := utils.DecodeLLMJSON(raw, &parsed); err != nil {
		return &Result{
			Type:      TypeError,
			Error:     err.Error(),
			ChatReply: "Sorry, I could not understand that request. Could you rephrase it?",
		}
	}

	if parsed.Type != "forecast" || parsed.Data == nil || parsed.Data.Period == nil {
		reply := parsed.ChatReply
		if reply == "" {
			reply = "How can I help you with your demand forecasts?"
		}
		return &Result{Type: TypeChat, ChatReply: reply}
	}

	return &Result{
		Type: TypeForecast,
		Data: &RequestData{
			Products:  normalizeIdentifiers(parsed.Data.Products),
			Customers: normalizeIdentifiers(parsed.Data.Customers),
			Period: combination.Period{
				Month: parsed.Data.Period.Month,
				Year:  parsed.Data.Period.Year,
			},
		},
	}
}

// normalizeIdentifiers stringifies whatever the model produced: "40000",
// 40000 and 40000.0 all become "40000".
func normalizeIdentifiers(raw []any) []string {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		switch id := v.(type) {
		case string:
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				out = append(out, trimmed)
			}
		case float64:
			if id == float64(int64(id)) {
				out = append(out, strconv.FormatInt(int64(id), 10))
			} else {
				out = append(out, strconv.FormatFloat(id, 'f', -1, 64))
			}
		case json.Number:
			out = append(out, id.String())
		}
	}
	return out
}
