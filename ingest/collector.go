package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"argus/core"
)

// Supported batch encodings.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// batchSchema rejects anything that is not an array of objects before
// decoding starts. Per-field problems inside the objects are the
// normalizer's business and never abort the batch.
const batchSchema = `{
	"type": "array",
	"items": {"type": "object"}
}`

// Collector is the log source connector: it reads a raw, ordered batch of
// JSON-object-shaped records from a file or reader and holds the API
// credential for this run. It does no normalization.
type Collector struct {
	path   string
	format string
	apiKey string
	schema *gojsonschema.Schema
	logger *zap.SugaredLogger
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Path   string // input file; format inferred from extension unless set
	Format string // json (default) or msgpack
	APIKey string
	Logger *zap.SugaredLogger
}

// NewCollector creates a collector.
func NewCollector(config *CollectorConfig) (*Collector, error) {
	if config == nil {
		config = &CollectorConfig{}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}

	format := config.Format
	if format == "" {
		if strings.HasSuffix(config.Path, ".msgpack") || strings.HasSuffix(config.Path, ".mp") {
			format = FormatMsgpack
		} else {
			format = FormatJSON
		}
	}
	if format != FormatJSON && format != FormatMsgpack {
		return nil, fmt.Errorf("unsupported batch format %q", format)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(batchSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile batch schema: %w", err)
	}

	if config.APIKey != "" {
		config.Logger.Infow("collector credential loaded", "api_key", MaskKey(config.APIKey))
	}

	return &Collector{
		path:   config.Path,
		format: format,
		apiKey: config.APIKey,
		schema: schema,
		logger: config.Logger,
	}, nil
}

// APIKey returns the credential attached to this run's source.
func (c *Collector) APIKey() string {
	return c.apiKey
}

// Collect reads the configured input file and returns the raw batch.
// Any failure to read or parse the batch as a whole is a core.InputError.
func (c *Collector) Collect() ([]map[string]interface{}, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, core.NewInputError(c.path, err)
	}
	defer f.Close()
	return c.CollectReader(f)
}

// CollectReader reads a raw batch from r.
func (c *Collector) CollectReader(r io.Reader) ([]map[string]interface{}, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, core.NewInputError(c.path, err)
	}

	var batch []map[string]interface{}
	switch c.format {
	case FormatMsgpack:
		if err := msgpack.Unmarshal(data, &batch); err != nil {
			return nil, core.NewInputError(c.path, fmt.Errorf("msgpack decode: %w", err))
		}
	default:
		result, err := c.schema.Validate(gojsonschema.NewBytesLoader(data))
		if err != nil {
			return nil, core.NewInputError(c.path, fmt.Errorf("schema validation: %w", err))
		}
		if !result.Valid() {
			details := make([]string, 0, len(result.Errors()))
			for _, e := range result.Errors() {
				details = append(details, e.String())
			}
			return nil, core.NewInputError(c.path, fmt.Errorf("batch shape invalid: %s", strings.Join(details, "; ")))
		}
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, core.NewInputError(c.path, err)
		}
	}

	c.logger.Infow("collected raw batch", "records", len(batch), "format", c.format)
	return batch, nil
}

// MaskKey masks a credential for logging, keeping at most the first and
// last four characters.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
