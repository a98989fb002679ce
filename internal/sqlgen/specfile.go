package sqlgen

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type rawSpec struct {
	Table      string     `yaml:"table"`
	LimitRows  any        `yaml:"limit_rows"`
	BinWidth   any        `yaml:"bin_width"`
	BinCount   any        `yaml:"bin_count"`
	Categories any        `yaml:"categories"`
	ItemNames  any        `yaml:"item_names"`
	Columns    rawColumns `yaml:"columns"`
}

type rawColumns struct {
	Category  string `yaml:"category"`
	Item      string `yaml:"item"`
	Distance  string `yaml:"distance"`
	Detection string `yaml:"detection"`
}

// LoadSpecFile reads a YAML query spec from path.
func LoadSpecFile(path string) (QuerySpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return QuerySpec{}, fmt.Errorf("open spec file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return DecodeSpec(f)
}

// DecodeSpec decodes a YAML query spec. Missing bin settings fall back to
// DefaultBinWidth and DefaultBinCount.
func DecodeSpec(r io.Reader) (QuerySpec, error) {
	var raw rawSpec
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return QuerySpec{}, fmt.Errorf("decode spec: %w", err)
	}

	spec := QuerySpec{
		TableName: raw.Table,
		Columns: Columns{
			Category:  raw.Columns.Category,
			Item:      raw.Columns.Item,
			Distance:  raw.Columns.Distance,
			Detection: raw.Columns.Detection,
		},
	}

	var err error
	if spec.LimitRows, err = intField(raw.LimitRows, "limit_rows", 0); err != nil {
		return QuerySpec{}, err
	}
	if spec.BinWidth, err = intField(raw.BinWidth, "bin_width", DefaultBinWidth); err != nil {
		return QuerySpec{}, err
	}
	if spec.BinCount, err = intField(raw.BinCount, "bin_count", DefaultBinCount); err != nil {
		return QuerySpec{}, err
	}
	if spec.Categories, err = filterField(raw.Categories, "categories"); err != nil {
		return QuerySpec{}, err
	}
	if spec.ItemNames, err = filterField(raw.ItemNames, "item_names"); err != nil {
		return QuerySpec{}, err
	}

	if err := spec.Validate(); err != nil {
		return QuerySpec{}, err
	}
	return spec, nil
}

func intField(value any, name string, fallback int) (int, error) {
	switch typed := value.(type) {
	case nil:
		return fallback, nil
	case int:
		return typed, nil
	default:
		return 0, fmt.Errorf("%w: %q value must be an integer, got %T", ErrInvalidArgument, name, value)
	}
}

func filterField(value any, name string) (*Filter, error) {
	if value == nil {
		return nil, nil
	}
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q expects a list, got %T", ErrInvalidArgument, name, value)
	}
	values, err := stringValues(items)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &Filter{Values: values}, nil
}
