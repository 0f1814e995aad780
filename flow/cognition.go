package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/oswaldoh/agentflow-go/flow/model"
)

// cognitionTemperature pins sampling for format stability.
const cognitionTemperature = 0.3

// cognitionPrimitive invokes an LLM and parses its response as JSON,
// optionally validating against a schema.
//
// The retry budget is two attempts total when a schema is supplied (the
// second attempt carries the first attempt's diagnostic) and one attempt
// otherwise. Beyond the documented cleanup (strip code fences, find the
// first balanced object or array) no almost-JSON rescue is attempted.
type cognitionPrimitive struct {
	base
}

// Execute implements primitive.
func (p *cognitionPrimitive) Execute(ctx context.Context, node *Node) (any, error) {
	data := node.Data.(*CognitionData)
	if p.d.models == nil {
		return nil, newError(ErrCognitionFormat, node.Name, "no model registry configured", nil)
	}
	chat, err := p.d.models.Resolve(data.Model)
	if err != nil {
		return nil, newError(ErrCognitionFormat, node.Name, "resolving model", err)
	}

	systemPrompt := buildCognitionSystemPrompt(data.Schema)
	userPrompt := p.buildUserPrompt(data)

	maxAttempts := 1
	if data.Schema != nil {
		maxAttempts = 2
	}

	var lastErr error
	prompt := userPrompt
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if p.d.metrics != nil {
				p.d.metrics.observeCognitionRetry()
			}
			p.d.emitter.Emit(eventFor(node, "cognition_retry", map[string]any{"attempt": attempt}))
		}
		out, err := chat.Chat(ctx, []model.Message{
			{Role: model.RoleSystem, Content: systemPrompt},
			{Role: model.RoleUser, Content: prompt},
		}, &model.ChatOptions{Temperature: cognitionTemperature})
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, newError(ErrCognitionTimeout, node.Name, "model call exceeded deadline", err)
			}
			if isCancellation(err) {
				return nil, cancelled(node.Name, err)
			}
			return nil, fmt.Errorf("model call: %w", err)
		}

		result, parseErr := parseCognitionResponse(out.Text)
		if parseErr != nil {
			lastErr = newError(ErrCognitionFormat, node.Name, parseErr.Error(), parseErr)
		} else if validateErr := data.Schema.Validate(result); validateErr != nil {
			lastErr = validateErr
		} else {
			if data.Output != "" {
				p.setByPath(data.Output, result)
			}
			return result, nil
		}
		prompt = userPrompt + fmt.Sprintf("\n\nPREVIOUS ATTEMPT FAILED: %s. Please match the schema exactly.", lastErr.Error())
	}
	return nil, lastErr
}

// buildUserPrompt combines the instruction with the resolved input value.
func (p *cognitionPrimitive) buildUserPrompt(data *CognitionData) string {
	prompt := p.resolveString(data.Prompt)
	if data.Input == nil {
		return prompt
	}
	input := p.resolve(data.Input)
	encoded, err := json.Marshal(input)
	if err != nil {
		encoded = []byte(fmt.Sprint(input))
	}
	return prompt + "\n\nInput:\n" + string(encoded)
}

// buildCognitionSystemPrompt instructs the model to return only valid JSON,
// rendering the schema with per-field type clauses and a literal exemplar.
func buildCognitionSystemPrompt(schema *Schema) string {
	var b strings.Builder
	b.WriteString("You are a structured-output engine. Respond with only valid JSON: ")
	b.WriteString("no code fences, no prose, no explanations before or after the JSON value.")
	if schema != nil {
		b.WriteString("\n\nYour response must match this schema:\n")
		b.WriteString(schema.Describe())
		b.WriteString("\n\nExample of a well-formed response:\n")
		b.WriteString(schema.Example())
	}
	return b.String()
}

// parseCognitionResponse strips whitespace and code fences, then parses the
// text as JSON, falling back to the first balanced {...} or [...] substring.
func parseCognitionResponse(text string) (any, error) {
	cleaned := stripFences(strings.TrimSpace(text))
	var result any
	if err := json.Unmarshal([]byte(cleaned), &result); err == nil {
		return result, nil
	}
	candidate := firstBalancedJSON(cleaned)
	if candidate == "" {
		return nil, fmt.Errorf("response contains no JSON value: %s", truncate(cleaned, 200))
	}
	if err := json.Unmarshal([]byte(candidate), &result); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %v", err)
	}
	return result, nil
}

// stripFences removes a surrounding triple-backtick fence, with or without a
// language tag.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	body := s[3:]
	if newline := strings.IndexByte(body, '\n'); newline >= 0 {
		// Drop the language tag line.
		if tag := strings.TrimSpace(body[:newline]); tag == "" || isFenceTag(tag) {
			body = body[newline+1:]
		}
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}

func isFenceTag(tag string) bool {
	for _, r := range tag {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// firstBalancedJSON extracts the first balanced {...} or [...] substring,
// respecting string literals and escapes.
func firstBalancedJSON(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	open := s[start]
	var closeCh byte = '}'
	if open == '[' {
		closeCh = ']'
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
