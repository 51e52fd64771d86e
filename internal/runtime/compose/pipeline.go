package compose

import (
	"context"

	"github.com/stelliberty/enginectl/internal/runtime/envelope"
	runtimeerrors "github.com/stelliberty/enginectl/internal/runtime/errors"
	"github.com/stelliberty/enginectl/internal/runtime/exchange"
	"github.com/stelliberty/enginectl/internal/runtime/logging"
)

// Exchanger runs one correlated exchange. *exchange.Client satisfies it.
type Exchanger interface {
	Do(ctx context.Context, cmd envelope.Type, payload any, expected envelope.Type, opts ...exchange.Option) ([]byte, error)
}

// OverrideSource resolves a stored override by id. The catalog store
// satisfies it.
type OverrideSource interface {
	ResolveOverride(id string) (envelope.OverridePatch, error)
}

// GlobalOverride is the optional step-one merge input.
type GlobalOverride struct {
	Enabled bool
	Content string
}

// Pipeline composes the document handed to the engine: global override
// first, then the ordered named overrides as one engine-side batch. Its
// contract is degrade-not-fail: whatever goes wrong past base validation,
// the caller gets back a usable document, never "no configuration".
type Pipeline struct {
	client Exchanger
	source OverrideSource
	log    logging.ServiceLogger
}

// NewPipeline builds a composition pipeline.
func NewPipeline(client Exchanger, source OverrideSource, log logging.ServiceLogger) *Pipeline {
	if log == nil {
		log = logging.Nop()
	}
	return &Pipeline{client: client, source: source, log: log}
}

// Compose runs the pipeline. overrideIDs is applied in list order; ids
// whose stored content cannot be read are skipped, and a failed batch
// exchange falls back to the step-one output.
func (p *Pipeline) Compose(ctx context.Context, base string, global GlobalOverride, overrideIDs []string) string {
	doc := base
	if global.Enabled && global.Content != "" {
		merged, err := MergeGlobal(base, global.Content)
		if err != nil {
			p.log.Error("global override merge failed, using raw base", err, nil)
		} else {
			doc = merged
		}
	}

	patches := p.resolve(overrideIDs)
	if len(patches) == 0 {
		return doc
	}

	batch := envelope.OverrideBatch{Base: doc, Overrides: patches}
	payload, err := p.client.Do(ctx, envelope.CmdApplyOverrides, batch, envelope.EvtOverridesResult)
	if err != nil {
		// Transient failures are expected during engine restarts and
		// stay below the caller's noise floor.
		if runtimeerrors.Transient(err) {
			p.log.Debug("override batch exchange failed, using pre-merge document", logging.LogFields{
				"reason": err.Error(),
			})
		} else {
			p.log.Error("override batch exchange failed, using pre-merge document", err, nil)
		}
		return doc
	}

	var result envelope.OverrideBatchResult
	if err := (envelope.Envelope{Payload: payload}).Decode(&result); err != nil {
		p.log.Error("override batch result undecodable, using pre-merge document", err, nil)
		return doc
	}
	if !result.IsSuccessful || result.Config == "" {
		p.log.Error("override batch rejected, using pre-merge document", nil, logging.LogFields{
			"engine_error": result.ErrorMessage,
		})
		return doc
	}

	for _, line := range result.Logs {
		p.log.Debug("override merge log", logging.LogFields{"line": line})
	}
	return result.Config
}

// resolve loads override contents in id order, skipping entries that
// cannot be read.
func (p *Pipeline) resolve(ids []string) []envelope.OverridePatch {
	patches := make([]envelope.OverridePatch, 0, len(ids))
	for _, id := range ids {
		patch, err := p.source.ResolveOverride(id)
		if err != nil {
			p.log.Error("override skipped", err, logging.LogFields{"override_id": id})
			continue
		}
		patches = append(patches, patch)
	}
	return patches
}
