package config

import (
	"flag"
)

//goland:noinspection GoMixedReceiverTypes
func (c *Config) flagSet(flagSet *flag.FlagSet) {
	flagSet.String(
		"config",
		"",
		"path to one .yaml config file (overrides SCRAPECONFIG)",
	)

	flagSet.Bool(
		"version",
		false,
		"show version",
	)

	flagSet.BoolVar(
		&c.VerifyConfig,
		"verify-config",
		c.VerifyConfig,
		"Enable this flag to check the config file loads, then exit",
	)

	flagSet.StringVar(
		&c.Log.Format,
		"log.format",
		lookupEnvOrDefault("log.format", c.Log.Format),
		"Output format of log messages. One of: [console, json]",
	)

	logLevel := c.Log.Level
	if err := logLevel.UnmarshalText([]byte(lookupEnvOrDefault("log.level", c.Log.Level.String()))); err == nil {
		c.Log.Level = logLevel
	}

	flagSet.TextVar(
		&c.Log.Level,
		"log.level",
		c.Log.Level,
		"Only log messages with the given severity or above. One of: [debug, info, warn, error]",
	)

	c.flagSetWeb(flagSet)
}

//goland:noinspection GoMixedReceiverTypes
func (c *Config) flagSetWeb(flagSet *flag.FlagSet) {
	flagSet.StringVar(
		&c.Web.ListenAddress,
		"web.listen-address",
		lookupEnvOrDefault("web.listen-address", c.Web.ListenAddress),
		"Addresses on which to expose metrics. Examples: `:5000` or `[::1]:5000`.",
	)
	flagSet.StringVar(
		&c.Web.ConfigFile,
		"web.config",
		lookupEnvOrDefault("web.config", c.Web.ConfigFile),
		"Path to configuration file that can enable TLS or authentication. See: https://github.com/prometheus/exporter-toolkit/blob/master/docs/web-configuration.md",
	)
}
