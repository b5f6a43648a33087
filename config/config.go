// Package config loads harness defaults from a YAML or TOML file. File
// values sit between built-in option defaults and explicit command line
// flags: a flag given on the command line always wins.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/weiihann/mlbench/bencherr"
	"github.com/weiihann/mlbench/params"
	"gopkg.in/yaml.v3"
)

// DefaultFiles are searched in the working directory when no path is given.
var DefaultFiles = []string{"mlbench.yaml", "mlbench.yml", "mlbench.toml"}

// Config mirrors the harness options that make sense to pin per machine.
type Config struct {
	Seed        *int              `yaml:"seed" toml:"seed"`
	Repetitions *int              `yaml:"repetitions" toml:"repetitions" validate:"omitnil,gte=1"`
	Warmup      *int              `yaml:"warmup" toml:"warmup" validate:"omitnil,gte=0"`
	TimeLimit   *float64          `yaml:"time_limit" toml:"time_limit" validate:"omitnil,gte=0"`
	Reduction   string            `yaml:"reduction" toml:"reduction" validate:"omitempty,oneof=min box"`
	Threads     *int              `yaml:"threads" toml:"threads" validate:"omitnil,gte=0"`
	PinCPUs     []int             `yaml:"pin_cpus" toml:"pin_cpus" validate:"omitempty,dive,gte=0"`
	Env         map[string]string `yaml:"env" toml:"env" validate:"omitempty,dive,keys,required,endkeys"`

	// Options holds driver specific defaults keyed by option name,
	// e.g. {"num-trees": "50"}.
	Options map[string]string `yaml:"options" toml:"options"`

	// Path is the file the config was read from, empty for defaults.
	Path string `yaml:"-" toml:"-"`
}

var validate = validator.New()

// Load reads the config at path. With an empty path the DefaultFiles are
// tried in order and a missing file yields an empty Config.
func Load(path string) (*Config, error) {
	if path == "" {
		for _, name := range DefaultFiles {
			if _, err := os.Stat(name); err == nil {
				path = name

				break
			}
		}

		if path == "" {
			return &Config{}, nil
		}
	}

	cfg := &Config{Path: path}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}

	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}

	default:
		return nil, bencherr.Configuration(path, "unsupported config format %q", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the value ranges of c.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]

		return bencherr.Configuration(c.subject(fe.Namespace()),
			"failed %q check (value %v)", fe.Tag(), fe.Value(),
		)
	}

	return bencherr.Configuration(c.subject("config"), "%v", err)
}

func (c *Config) subject(field string) string {
	if c.Path == "" {
		return field
	}

	return c.Path + ": " + field
}

// Values flattens c into option name -> command line token pairs.
func (c *Config) Values() map[string][]string {
	out := make(map[string][]string)

	for name, value := range c.Options {
		out[name] = []string{value}
	}

	if c.Seed != nil {
		out[params.OptSeed] = []string{strconv.Itoa(*c.Seed)}
	}

	if c.Repetitions != nil {
		out[params.OptRepetitions] = []string{strconv.Itoa(*c.Repetitions)}
	}

	if c.Warmup != nil {
		out[params.OptWarmup] = []string{strconv.Itoa(*c.Warmup)}
	}

	if c.TimeLimit != nil {
		out[params.OptTimeLimit] = []string{strconv.FormatFloat(*c.TimeLimit, 'g', -1, 64)}
	}

	if c.Reduction != "" {
		out[params.OptReduction] = []string{c.Reduction}
	}

	if c.Threads != nil {
		out[params.OptThreads] = []string{strconv.Itoa(*c.Threads)}
	}

	if len(c.PinCPUs) > 0 {
		cpus := make([]string, len(c.PinCPUs))
		for i, cpu := range c.PinCPUs {
			cpus[i] = strconv.Itoa(cpu)
		}

		out[params.OptPinCPUs] = cpus
	}

	if len(c.Env) > 0 {
		keys := make([]string, 0, len(c.Env))
		for k := range c.Env {
			keys = append(keys, k)
		}

		slices.Sort(keys)

		env := make([]string, len(keys))
		for i, k := range keys {
			env[i] = k + "=" + c.Env[k]
		}

		out[params.OptEnv] = env
	}

	return out
}

// Apply sets every config value on fs whose flag was not given on the
// command line. Names unknown to fs are ignored so one file can serve
// several drivers.
func (c *Config) Apply(fs *pflag.FlagSet) error {
	for name, tokens := range c.Values() {
		flag := fs.Lookup(name)
		if flag == nil || flag.Changed {
			continue
		}

		for _, token := range tokens {
			if err := fs.Set(name, token); err != nil {
				return bencherr.Configuration(c.subject(name), "%v", err)
			}
		}
	}

	return nil
}
