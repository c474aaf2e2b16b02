package dlq

import (
	"fmt"

	"github.com/lexara-six/ingestion/internal/domain"
	"github.com/lexara-six/ingestion/internal/loader"
)

// LoaderRecordProcessor routes a dead-lettered record back through the
// owning loader's parse -> validate -> process chain, the same path a live
// job run takes a record through. It rebuilds the loader from the
// record's source_type alone, since a background reprocess pass runs
// independent of any specific job's original submit-time config.
type LoaderRecordProcessor struct {
	Registry *loader.Registry
}

// NewLoaderRecordProcessor constructs a LoaderRecordProcessor over the
// given registry.
func NewLoaderRecordProcessor(registry *loader.Registry) *LoaderRecordProcessor {
	return &LoaderRecordProcessor{Registry: registry}
}

// ProcessRecord implements RecordProcessor.
func (p *LoaderRecordProcessor) ProcessRecord(ctx domain.Context, rec domain.FailedRecord) (bool, error) {
	l, err := p.Registry.Build(rec.SourceType, map[string]any{
		"source_type": rec.SourceType,
		"source_name": rec.SourceType,
	})
	if err != nil {
		return false, fmt.Errorf("op=dlq.record_processor.build_loader: %w", err)
	}

	raw := make(map[string]string, len(rec.RecordData))
	for k, v := range rec.RecordData {
		raw[k] = fmt.Sprintf("%v", v)
	}

	parsed, err := l.ParseRecord(raw)
	if err != nil {
		return false, fmt.Errorf("op=dlq.record_processor.parse: %w", err)
	}
	if parsed == nil {
		// The row was skippable all along (e.g. a blank line) rather than a
		// real parse failure; treat it as a non-error success so it's
		// flagged reprocessed and stops consuming retry attempts.
		return true, nil
	}

	if errs := l.ValidateRecord(parsed); len(errs) > 0 {
		return false, nil
	}

	results, err := l.ProcessRecord(ctx, parsed)
	if err != nil {
		return false, fmt.Errorf("op=dlq.record_processor.process: %w", err)
	}
	for _, res := range results {
		if !res.Success {
			return false, nil
		}
	}
	return true, nil
}
