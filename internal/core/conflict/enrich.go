package conflict

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agenthands/ifcsync/internal/core/common"
	"github.com/agenthands/ifcsync/internal/llm"
	"github.com/agenthands/ifcsync/internal/logger"
)

const (
	FallbackSuggestion = "Não foi possível obter uma sugestão da IA."
	EmptySuggestion    = "Nenhuma sugestão disponível."
)

// Enricher asks an LLM for a repair suggestion on records the backend left
// without one. Failures never propagate; the record gets FallbackSuggestion.
type Enricher struct {
	LLM         llm.LLMClient
	Prompt      string
	Timeout     time.Duration
	Concurrency int
	Log         *logger.Logger
}

func NewEnricher(client llm.LLMClient, prompt string, log *logger.Logger) *Enricher {
	if log == nil {
		log = logger.Nop()
	}
	return &Enricher{
		LLM:         client,
		Prompt:      prompt,
		Timeout:     30 * time.Second,
		Concurrency: 4,
		Log:         log.With("component", "enricher"),
	}
}

// Enrich must run before the index is published. It returns how many records
// received a generated suggestion.
func (e *Enricher) Enrich(ctx context.Context, idx *Index) int {
	if e == nil || e.LLM == nil || idx.Len() == 0 {
		return 0
	}

	limit := e.Concurrency
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var filled int32
	for _, id := range idx.IDs() {
		rec := idx.records[id]
		if rec.Suggestion != "" {
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				rec.Suggestion = FallbackSuggestion
				return nil
			}
			text, err := e.suggest(gctx, rec.Message)
			if err != nil {
				e.Log.Warn("suggestion failed", "id", rec.ID, "error", err)
				rec.Suggestion = FallbackSuggestion
				return nil
			}
			rec.Suggestion = text
			atomic.AddInt32(&filled, 1)
			return nil
		})
	}
	_ = g.Wait()

	e.Log.Info("conflicts enriched", "generated", filled, "total", idx.Len())
	return int(filled)
}

func (e *Enricher) suggest(ctx context.Context, message string) (string, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	prompt := e.Prompt
	if strings.Contains(prompt, "%s") {
		prompt = fmt.Sprintf(prompt, message)
	} else {
		prompt = prompt + "\n" + message
	}

	raw, err := e.LLM.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate suggestion: %w", err)
	}

	// Some models answer {"suggestion": "..."} despite the plain-text prompt.
	if parsed, err := common.ParseJSON[struct {
		Suggestion string `json:"suggestion"`
	}](raw); err == nil && parsed.Suggestion != "" {
		return strings.TrimSpace(parsed.Suggestion), nil
	}

	text := common.StripFences(raw)
	if text == "" {
		return EmptySuggestion, nil
	}
	return text, nil
}
