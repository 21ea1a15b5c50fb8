package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.yaml.in/yaml/v4"
)

const defaultConfigPath = "/etc/scrapeconfig.yml"

// New parses args, locates the scrape config document, and layers it
// over Defaults: flags (with CONFIG_-prefixed env fallback) set the
// process-level and web knobs, then the YAML document overrides whatever
// fields it defines.
func New(args []string, logWriter io.Writer) (Config, error) {
	conf := Defaults

	flagSet := flag.NewFlagSet(args[0], flag.ContinueOnError)
	flagSet.SetOutput(logWriter)
	conf.flagSet(flagSet)

	if err := flagSet.Parse(args[1:]); err != nil {
		return Config{}, err //nolint:wrapcheck
	}

	if versionFlag := flagSet.Lookup("version"); versionFlag != nil && versionFlag.Value.String() == "true" {
		return Config{}, ErrVersion
	}

	configPath := resolveConfigPath(flagSet)

	if err := loadYAMLFile(configPath, &conf); err != nil && !errors.Is(err, ErrEmptyConfigFile) {
		return Config{}, fmt.Errorf("config: loading %s: %w", configPath, err)
	}

	return conf, nil
}

// resolveConfigPath implements the precedence: an explicitly-passed
// --config flag wins, then the SCRAPECONFIG environment variable, then
// the fixed default path.
func resolveConfigPath(flagSet *flag.FlagSet) string {
	if configFlag := flagSet.Lookup("config"); configFlag != nil {
		if path := configFlag.Value.String(); path != "" {
			return path
		}
	}

	if path := os.Getenv("SCRAPECONFIG"); path != "" {
		return path
	}

	return defaultConfigPath
}

func loadYAMLFile(path string, conf *Config) error {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		if os.IsNotExist(err) && path == defaultConfigPath {
			return ErrEmptyConfigFile
		}

		return fmt.Errorf("reading config file: %w", err)
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return ErrEmptyConfigFile
	}

	if err := yaml.Unmarshal(data, conf); err != nil {
		return fmt.Errorf("parsing config file: %w", err) //nolint:wrapcheck
	}

	return nil
}
