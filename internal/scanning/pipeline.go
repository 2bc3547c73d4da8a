package scanning

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Pipeline sequences the two extraction stages: image to raw text, raw text
// to structured receipt. It holds no state across invocations.
type Pipeline struct {
	transcriber Transcriber
	structurer  Structurer
}

// NewPipeline creates a Pipeline over the given stage implementations.
func NewPipeline(transcriber Transcriber, structurer Structurer) *Pipeline {
	return &Pipeline{
		transcriber: transcriber,
		structurer:  structurer,
	}
}

// Scan runs a receipt image through both stages and returns the structured
// result. Stage 2 never starts until stage 1 returned non-empty text, and no
// partial result is returned on failure. Neither stage is retried.
func (p *Pipeline) Scan(ctx context.Context, imageData []byte, contentType string) (*StructuredReceipt, error) {
	if len(imageData) == 0 {
		return nil, ErrNoImage
	}

	prepared, mimeType, err := prepareImage(imageData, contentType)
	if err != nil {
		return nil, &ExtractionError{Stage: StageTranscribe, Err: err}
	}

	rawText, err := p.transcriber.Transcribe(ctx, prepared, mimeType)
	if err != nil {
		return nil, classifyStageError(StageTranscribe, err)
	}
	if strings.TrimSpace(rawText) == "" {
		return nil, &ExtractionError{Stage: StageTranscribe, Err: errors.New("model returned no transcription text")}
	}

	receipt, err := p.structurer.Structure(ctx, rawText)
	if err != nil {
		return nil, classifyStageError(StageStructure, err)
	}

	receipt.TotalsReconciled = reconcileTotals(receipt)
	if !receipt.TotalsReconciled {
		slog.Warn("Receipt line totals do not match stated total",
			"store", receipt.StoreName,
			"total", receipt.Total,
			"items", len(receipt.Items),
		)
	}

	return receipt, nil
}
