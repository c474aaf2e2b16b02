// Package loaders holds the concrete source-specific loader.Loader
// implementations: Iowa business entities, Iowa asbestos licenses, and
// medical facilities. Field mappings live in YAML config rather than the
// hardcoded per-file column lists the reference loaders used.
package loaders

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lexara-six/ingestion/internal/loader"
)

// parseDate parses a YYYY-MM-DD string, the canonical form every concrete
// loader normalizes dates to before building a propose-fact request.
func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	return time.Parse("2006-01-02", value)
}

// SourceConfig is the YAML-decoded configuration every concrete loader
// accepts: identity for the sources table, plus a logical-name -> raw
// column-name mapping so a loader tolerates header renames across dataset
// revisions without a code change.
type SourceConfig struct {
	SourceType string            `yaml:"source_type"`
	SourceName string            `yaml:"source_name"`
	Fields     map[string]string `yaml:"fields"`
}

// DecodeSourceConfig reads a SourceConfig from a job's config map
// (job_queue.config) by round-tripping it through YAML.
func DecodeSourceConfig(raw map[string]any) (SourceConfig, error) {
	body, err := yaml.Marshal(raw)
	if err != nil {
		return SourceConfig{}, fmt.Errorf("op=loaders.decode_source_config.marshal: %w", err)
	}
	var cfg SourceConfig
	if err := yaml.Unmarshal(body, &cfg); err != nil {
		return SourceConfig{}, fmt.Errorf("op=loaders.decode_source_config.unmarshal: %w", err)
	}
	return cfg, nil
}

// column resolves the raw header name for a logical field, falling back to
// fallback when the mapping doesn't override it.
func column(fields map[string]string, logical, fallback string) string {
	if v, ok := fields[logical]; ok && v != "" {
		return v
	}
	return fallback
}

// cleanString trims, strips quote characters, and treats "null" (any case)
// as empty, matching the reference loaders' clean_string helper.
func cleanString(raw map[string]string, key string) string {
	v, ok := raw[key]
	if !ok {
		return ""
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	v = strings.NewReplacer(`"`, "", `'`, "").Replace(v)
	if strings.EqualFold(v, "null") {
		return ""
	}
	return v
}

// csvJSONReader implements loader.BatchReader over either a CSV file (with
// a header row) or a JSON array of objects, selected by file extension.
type csvJSONReader struct {
	f         *os.File
	csvReader *csv.Reader
	header    []string
	jsonRows  []map[string]string
	jsonPos   int
	isJSON    bool
	batchSize int
}

// OpenBatches opens filePath (.csv or .json) and skips startFrom records.
func OpenBatches(filePath string, batchSize, startFrom int) (loader.BatchReader, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("op=loaders.open_batches.open: %w", err)
	}

	r := &csvJSONReader{f: f, batchSize: batchSize}

	switch ext {
	case ".json":
		r.isJSON = true
		var raw []map[string]any
		if err := json.NewDecoder(f).Decode(&raw); err != nil {
			f.Close()
			return nil, fmt.Errorf("op=loaders.open_batches.decode_json: %w", err)
		}
		if startFrom > len(raw) {
			startFrom = len(raw)
		}
		rows := make([]map[string]string, 0, len(raw)-startFrom)
		for _, rec := range raw[startFrom:] {
			row := make(map[string]string, len(rec))
			for k, v := range rec {
				row[k] = fmt.Sprintf("%v", v)
			}
			rows = append(rows, row)
		}
		r.jsonRows = rows
	case ".csv":
		cr := csv.NewReader(f)
		cr.FieldsPerRecord = -1
		header, err := cr.Read()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("op=loaders.open_batches.read_header: %w", err)
		}
		r.header = header
		r.csvReader = cr
		for i := 0; i < startFrom; i++ {
			if _, err := cr.Read(); err != nil {
				if err == io.EOF {
					break
				}
				f.Close()
				return nil, fmt.Errorf("op=loaders.open_batches.skip: %w", err)
			}
		}
	default:
		f.Close()
		return nil, fmt.Errorf("op=loaders.open_batches: unsupported file format %q", ext)
	}

	return r, nil
}

func (r *csvJSONReader) Next() (loader.RawBatch, error) {
	if r.isJSON {
		if r.jsonPos >= len(r.jsonRows) {
			return nil, io.EOF
		}
		end := r.jsonPos + r.batchSize
		if end > len(r.jsonRows) {
			end = len(r.jsonRows)
		}
		batch := loader.RawBatch(r.jsonRows[r.jsonPos:end])
		r.jsonPos = end
		return batch, nil
	}

	var batch loader.RawBatch
	for len(batch) < r.batchSize {
		fields, err := r.csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("op=loaders.csv_reader.next: %w", err)
		}
		row := make(map[string]string, len(r.header))
		for i, h := range r.header {
			if i < len(fields) {
				row[h] = fields[i]
			}
		}
		batch = append(batch, row)
	}
	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

func (r *csvJSONReader) Close() error {
	return r.f.Close()
}
