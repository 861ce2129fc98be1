package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind          string
	port          int
	prefix        string
	profile       bool
	redisAddress  string
	redisPassword string
	redisDB       int
	tlsCert       string
	tlsKey        string
	tokenSecret   string
	verbose       bool
	version       bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.tokenSecret == "" {
		return errors.New("--token-secret must be provided")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("OPENROUND")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "openround",
		Short:         "A collaborative shared-scorecard server with join codes and live sync.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: OPENROUND_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: OPENROUND_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: OPENROUND_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: OPENROUND_PROFILE)")
	fs.StringVar(&cfg.redisAddress, "redis-address", "localhost:6379", "address of the redis instance backing the round store (env: OPENROUND_REDIS_ADDRESS)")
	fs.StringVar(&cfg.redisPassword, "redis-password", "", "password for the redis instance (env: OPENROUND_REDIS_PASSWORD)")
	fs.IntVar(&cfg.redisDB, "redis-db", 0, "redis database number (env: OPENROUND_REDIS_DB)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: OPENROUND_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: OPENROUND_TLS_KEY)")
	fs.StringVar(&cfg.tokenSecret, "token-secret", "", "shared secret used to verify identity tokens (env: OPENROUND_TOKEN_SECRET)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: OPENROUND_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: OPENROUND_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("openround v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
