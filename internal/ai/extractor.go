package ai

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
)

// Extractor turns an utterance into entities by prompting a model for JSON.
// It never fails: on any error it returns an empty bag and counts the failure.
type Extractor struct {
	completer Completer
	logger    *slog.Logger
	failures  atomic.Int64
}

// NewExtractor creates an extractor; a nil completer makes every extraction fail softly
func NewExtractor(completer Completer, logger *slog.Logger) *Extractor {
	return &Extractor{completer: completer, logger: logger}
}

// Extract runs the prompt against text and decodes the JSON object in the response
func (e *Extractor) Extract(ctx context.Context, prompt, text string) Entities {
	if e.completer == nil {
		e.fail("no model configured", nil)
		return Entities{}
	}

	response, err := e.completer.Complete(ctx, prompt, text)
	if err != nil {
		e.fail("model call failed", err)
		return Entities{}
	}

	entities, err := parseEntities(response)
	if err != nil {
		e.fail("response is not a JSON object", err, "response", response)
		return Entities{}
	}
	return entities
}

// Failures returns how many extractions have failed since start
func (e *Extractor) Failures() int64 {
	return e.failures.Load()
}

func (e *Extractor) fail(msg string, err error, args ...any) {
	n := e.failures.Add(1)
	attrs := append([]any{"failures", n}, args...)
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	e.logger.Warn("entity extraction failed: "+msg, attrs...)
}

// parseEntities decodes the first JSON object in a model response,
// tolerating markdown code fences and surrounding prose
func parseEntities(response string) (Entities, error) {
	s := strings.TrimSpace(response)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}

	entities := Entities{}
	if err := json.Unmarshal([]byte(s), &entities); err != nil {
		return nil, err
	}

	// Explicit nulls mean "not mentioned"
	for k, v := range entities {
		if v == nil {
			delete(entities, k)
		}
	}
	return entities, nil
}
