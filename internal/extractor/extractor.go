package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/contextbridge/internal/credential"
	"github.com/MikeSquared-Agency/contextbridge/internal/llm"
)

type Extractor struct {
	llm        llm.Generator
	candidates []string
	logger     *slog.Logger
}

// New returns an Extractor that tries candidates in order until one succeeds.
func New(gen llm.Generator, candidates []string, logger *slog.Logger) *Extractor {
	return &Extractor{
		llm:        gen,
		candidates: append([]string(nil), candidates...),
		logger:     logger,
	}
}

func (e *Extractor) Candidates() []string {
	return append([]string(nil), e.candidates...)
}

// BuildPrompt interpolates text verbatim into the extraction prompt.
func BuildPrompt(text string) string {
	return fmt.Sprintf(extractionPrompt, text)
}

// Extract turns raw conversation text into a Record. It never returns early on
// a single candidate's failure and always produces a terminal Outcome.
func (e *Extractor) Extract(ctx context.Context, text string, cred credential.Credential) Outcome {
	if strings.TrimSpace(text) == "" {
		return Outcome{Err: fmt.Errorf("%w: text is empty", ErrInvalidInput)}
	}
	if cred.Empty() {
		return Outcome{Err: fmt.Errorf("%w: credential is empty", ErrInvalidInput)}
	}

	prompt := BuildPrompt(text)
	e.logger.Info("extracting handover",
		"text_len", len(text),
		"candidates", len(e.candidates),
	)

	var failures []CandidateFailure
	for _, model := range e.candidates {
		start := time.Now()
		rec, err := e.try(ctx, model, prompt, cred)
		if err != nil {
			e.logger.Warn("candidate failed",
				"model", model,
				"error", err,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			failures = append(failures, CandidateFailure{Model: model, Reason: err.Error()})
			continue
		}

		e.logger.Info("extraction complete",
			"model", model,
			"fallbacks", len(failures),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Outcome{Record: rec, ModelUsed: model, Failures: failures}
	}

	return Outcome{Failures: failures, Err: &ExhaustedError{Failures: failures}}
}

func (e *Extractor) try(ctx context.Context, model, prompt string, cred credential.Credential) (Record, error) {
	raw, err := e.llm.Generate(ctx, model, prompt, cred)
	if err != nil {
		return Record{}, fmt.Errorf("generate: %w", err)
	}

	obj, err := decodeReply(raw)
	if err != nil {
		e.logger.Debug("unparseable reply", "model", model, "raw", raw)
		return Record{}, err
	}
	if err := shapeSchema.Validate(obj); err != nil {
		e.logger.Warn("reply shape coerced", "model", model, "detail", err.Error())
	}
	return normalizeObject(obj), nil
}
