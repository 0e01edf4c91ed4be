package core

import (
	"fmt"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// rawModelConfig is the decode target for config(...) keywords and
// frontmatter. Keys it does not name land in Extra.
type rawModelConfig struct {
	Materialized string         `mapstructure:"materialized"`
	Indexes      []IndexConfig  `mapstructure:"indexes"`
	UniqueKey    []string       `mapstructure:"unique_key"`
	Incremental  string         `mapstructure:"incremental_strategy"`
	Tags         []string       `mapstructure:"tags"`
	Timeout      time.Duration  `mapstructure:"timeout"`
	Extra        map[string]any `mapstructure:",remain"`
}

// DecodeModelConfig converts a loosely typed config map into a
// ModelConfig. Accepted shorthands:
//
//	unique_key: "id"              -> ["id"]
//	indexes: ["a", ["b", "c"]]    -> one index per entry
//	timeout: 30                   -> 30 seconds
func DecodeModelConfig(raw map[string]any) (ModelConfig, error) {
	if len(raw) == 0 {
		return ModelConfig{}, nil
	}

	var r rawModelConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: &r,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			secondsToDurationHook,
			mapstructure.StringToTimeDurationHookFunc(),
			indexShorthandHook,
			stringToSliceHook,
		),
	})
	if err != nil {
		return ModelConfig{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return ModelConfig{}, fmt.Errorf("decode config: %w", err)
	}

	mat, err := ParseMaterialization(r.Materialized)
	if err != nil {
		return ModelConfig{}, err
	}
	var strategy IncrementalStrategy
	if r.Incremental != "" {
		if strategy, err = ParseIncrementalStrategy(r.Incremental); err != nil {
			return ModelConfig{}, err
		}
	}
	for i, idx := range r.Indexes {
		if len(idx.Columns) == 0 {
			return ModelConfig{}, fmt.Errorf("index %d has no columns", i)
		}
	}

	cfg := ModelConfig{
		Materialized: mat,
		Indexes:      r.Indexes,
		UniqueKey:    r.UniqueKey,
		Incremental:  strategy,
		Tags:         r.Tags,
		Timeout:      r.Timeout,
	}
	if len(r.Extra) > 0 {
		cfg.Extra = r.Extra
	}
	return cfg, nil
}

var (
	durationType = reflect.TypeOf(time.Duration(0))
	indexType    = reflect.TypeOf(IndexConfig{})
)

func secondsToDurationHook(from, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	}
	return data, nil
}

func indexShorthandHook(from, to reflect.Type, data any) (any, error) {
	if to != indexType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return map[string]any{"columns": []any{v}}, nil
	case []any:
		return map[string]any{"columns": v}, nil
	case []string:
		return map[string]any{"columns": v}, nil
	}
	return data, nil
}

func stringToSliceHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() == reflect.String && to.Kind() == reflect.Slice && to.Elem().Kind() == reflect.String {
		return []string{reflect.ValueOf(data).String()}, nil
	}
	return data, nil
}
