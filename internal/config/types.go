// Package config は censusml の設定。
// 優先順位は defaults < YAML ファイル < CENSUSML_* 環境変数 < 明示したフラグ。
package config

import (
	"fmt"

	"github.com/YuminosukeSato/censusml/dataframe"
	"github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/YuminosukeSato/censusml/pkg/log"
)

// DefaultConfigFile is looked up in the working directory when --config is not given.
const DefaultConfigFile = "censusml.yaml"

// EnvPrefix is the prefix of environment overrides: CENSUSML_MAX_DEPTH -> max_depth.
const EnvPrefix = "CENSUSML_"

// Config は explore / explain の両方が読む設定
type Config struct {
	DataPath    string            `koanf:"data_path"`
	Columns     []string          `koanf:"columns"`
	Casts       map[string]string `koanf:"casts"`
	Categorical []string          `koanf:"categorical"`

	// AgeColumn を 10 歳刻みにした AgeBucketColumn を足し、AdultAge 以上の行だけ残す
	AgeColumn       string `koanf:"age_column"`
	AgeBucketColumn string `koanf:"age_bucket_column"`
	AdultAge        int    `koanf:"adult_age"`

	// Target > TargetThreshold を陽性ラベルにする
	Target          string  `koanf:"target"`
	TargetThreshold float64 `koanf:"target_threshold"`

	// ValidationFraction は検証用に回す行の割合。残りが学習用
	ValidationFraction float64 `koanf:"validation_fraction"`
	Shuffle            bool    `koanf:"shuffle"`
	Seed               int64   `koanf:"seed"`

	MaxDepth  int    `koanf:"max_depth"`
	Criterion string `koanf:"criterion"`

	ExplainRows      int    `koanf:"explain_rows"`
	BackgroundSize   int    `koanf:"background_size"`
	BackgroundMethod string `koanf:"background_method"`
	KernelSamples    int    `koanf:"kernel_samples"`
	Workers          int    `koanf:"workers"`

	PreviewRows int    `koanf:"preview_rows"`
	OutputDir   string `koanf:"output_dir"`
	LogLevel    string `koanf:"log_level"`
	LogFormat   string `koanf:"log_format"`
}

// Defaults は同梱の国勢調査サンプルをそのまま読める設定
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"data_path":           "testdata/census_sample.csv",
		"columns":             []string{"AGE", "SEX", "MARST", "RACE", "EDUC", "STATEFIP", "HRSWORK", "INCTOT"},
		"casts":               map[string]interface{}{"SEX": "category", "HRSWORK": "float"},
		"categorical":         []string{"SEX", "MARST"},
		"age_column":          "AGE",
		"age_bucket_column":   "AGE_DECADE",
		"adult_age":           18,
		"target":              "INCTOT",
		"target_threshold":    40000.0,
		"validation_fraction": 0.25,
		"shuffle":             true,
		"seed":                42,
		"max_depth":           4,
		"criterion":           "gini",
		"explain_rows":        5,
		"background_size":     10,
		"background_method":   "kmeans",
		"kernel_samples":      0,
		"workers":             0,
		"preview_rows":        5,
		"output_dir":          "out",
		"log_level":           "info",
		"log_format":          "console",
	}
}

// Kinds は Casts を dataframe.Kind に変換する
func (c *Config) Kinds() (map[string]dataframe.Kind, error) {
	out := make(map[string]dataframe.Kind, len(c.Casts))
	for col, name := range c.Casts {
		k, err := dataframe.ParseKind(name)
		if err != nil {
			return nil, errors.Wrapf(err, "casts.%s", col)
		}
		out[col] = k
	}
	return out, nil
}

// Validate は範囲外の値を ValidationError で返す
func (c *Config) Validate() error {
	switch {
	case c.DataPath == "":
		return errors.NewValidationError("data_path", "must not be empty", c.DataPath)
	case c.Target == "":
		return errors.NewValidationError("target", "must not be empty", c.Target)
	case c.ValidationFraction <= 0 || c.ValidationFraction >= 1:
		return errors.NewValidationError("validation_fraction", "must be in (0, 1)", c.ValidationFraction)
	case c.MaxDepth < 1:
		return errors.NewValidationError("max_depth", "must be at least 1", c.MaxDepth)
	case c.Criterion != "gini" && c.Criterion != "entropy":
		return errors.NewValidationError("criterion", "must be gini or entropy", c.Criterion)
	case c.ExplainRows < 1:
		return errors.NewValidationError("explain_rows", "must be at least 1", c.ExplainRows)
	case c.BackgroundSize < 1:
		return errors.NewValidationError("background_size", "must be at least 1", c.BackgroundSize)
	case c.BackgroundMethod != "kmeans" && c.BackgroundMethod != "sample":
		return errors.NewValidationError("background_method", "must be kmeans or sample", c.BackgroundMethod)
	case c.KernelSamples < 0:
		return errors.NewValidationError("kernel_samples", "must not be negative", c.KernelSamples)
	case c.PreviewRows < 0:
		return errors.NewValidationError("preview_rows", "must not be negative", c.PreviewRows)
	case c.OutputDir == "":
		return errors.NewValidationError("output_dir", "must not be empty", c.OutputDir)
	case c.LogFormat != "json" && c.LogFormat != "console":
		return errors.NewValidationError("log_format", "must be json or console", c.LogFormat)
	}
	if c.AgeBucketColumn != "" && c.AgeColumn == "" {
		return errors.NewValidationError("age_column", "required when age_bucket_column is set", c.AgeColumn)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := c.Kinds(); err != nil {
		return err
	}
	for _, col := range c.Categorical {
		if col == c.Target {
			return errors.NewValidationError("categorical", fmt.Sprintf("target %q cannot be one-hot encoded", col), c.Categorical)
		}
	}
	return nil
}
