package config

import (
	"os"
	"strings"

	"github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Loaded は読み込んだ設定と、その出どころ
type Loaded struct {
	*Config
	// File は読み込んだ設定ファイル。なければ空
	File string
}

// findConfigFile は明示されたパス、なければ作業ディレクトリの censusml.yaml / censusml.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{DefaultConfigFile, "censusml.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load は defaults、設定ファイル、環境変数、フラグの順に重ねて検証する。
// flags は明示的に指定されたもの（Changed）だけが効く。
func Load(cfgFile string, flags *pflag.FlagSet) (*Loaded, error) {
	k := koanf.New(".")

	// 1. defaults
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	// 2. YAML; an explicit path that does not exist is an error.
	// casts はキーごとにマージせず、ファイルの表で defaults を置き換える
	used := findConfigFile(cfgFile)
	if used != "" {
		fk := koanf.New(".")
		if err := fk.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "error reading config file %s", used)
		}
		if fk.Exists("casts") {
			k.Delete("casts")
		}
		if err := k.Merge(fk); err != nil {
			return nil, errors.Wrapf(err, "error merging config file %s", used)
		}
	}

	// 3. CENSUSML_MAX_DEPTH -> max_depth
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load env vars")
	}

	// 4. flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			switch key {
			case "config":
				return "", nil
			case "data":
				key = "data_path"
			case "output":
				key = "output_dir"
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, errors.Wrap(err, "failed to load flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Loaded{Config: &cfg, File: used}, nil
}
