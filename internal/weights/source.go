package weights

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/rankwise/internal/resilience"
)

// Source fetches the raw weight document. It is read fresh on every run.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	Name() string
}

// FileSource reads a YAML (or JSON) document from disk.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return "file:" + s.Path }

// Fetch reads the file.
func (s FileSource) Fetch(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "weights: read %s", s.Path)
	}
	return data, nil
}

// DocumentStore is the persistence contract behind StoreSource.
type DocumentStore interface {
	LatestWeightDocument(ctx context.Context) ([]byte, error)
}

// StoreSource reads the most recently saved document from the database.
type StoreSource struct {
	Store DocumentStore
}

func (s StoreSource) Name() string { return "store" }

// Fetch returns the latest document.
func (s StoreSource) Fetch(ctx context.Context) ([]byte, error) {
	data, err := s.Store.LatestWeightDocument(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "weights: fetch latest document")
	}
	if len(data) == 0 {
		return nil, eris.New("weights: no weight document saved")
	}
	return data, nil
}

// Parse decodes a document over the legacy defaults. YAML is a superset of
// JSON, so documents saved as JSON parse the same way.
func Parse(data []byte) (*Config, error) {
	cfg := Legacy()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, eris.Wrap(err, "weights: parse document")
	}
	return cfg, nil
}

// Load fetches, parses and validates a document. Any failure is a
// ConfigurationError. Validation warnings are logged and returned.
func Load(ctx context.Context, src Source) (*Config, []string, error) {
	data, err := src.Fetch(ctx)
	if err != nil {
		return nil, nil, resilience.NewConfigurationError(err, "weights: load "+src.Name())
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, nil, resilience.NewConfigurationError(err, "weights: load "+src.Name())
	}
	warnings, err := Validate(cfg)
	if err != nil {
		return nil, warnings, resilience.NewConfigurationError(err, "weights: load "+src.Name())
	}
	for _, w := range warnings {
		zap.L().Warn("weights: validation warning",
			zap.String("source", src.Name()),
			zap.String("warning", w),
		)
	}
	return cfg, warnings, nil
}

// Marshal renders a document as YAML.
func Marshal(c *Config) ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, eris.Wrap(err, "weights: marshal document")
	}
	return data, nil
}
