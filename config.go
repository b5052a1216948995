/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	logFormat      string
	logLevel       string
	playerTimeout  time.Duration
	port           int
	prefix         string
	profile        bool
	questionCount  int
	questionDelay  time.Duration
	questions      string
	revealAnswers  bool
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.questions == "" {
		return errors.New("--questions must not be empty")
	}
	if c.questionCount < 1 {
		return fmt.Errorf("invalid question count (must be at least 1): %d", c.questionCount)
	}
	if c.questionDelay < 0 {
		return fmt.Errorf("invalid question delay (must not be negative): %s", c.questionDelay)
	}
	if c.sessionTimeout < 0 || (c.sessionTimeout > 0 && c.sessionTimeout < time.Second) {
		return fmt.Errorf("invalid session timeout (must be 0 or at least 1s): %s", c.sessionTimeout)
	}
	if c.playerTimeout < time.Second {
		return fmt.Errorf("invalid player timeout (must be at least 1s): %s", c.playerTimeout)
	}
	switch c.logFormat {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format (must be json or console): %q", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level (must be one of debug, info, warn, error): %q", c.logLevel)
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
	v.SetEnvPrefix("TRIVIADUEL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "triviaduel",
		Short:         "Head-to-head trivia for two players per room, served over websockets.",
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

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: TRIVIADUEL_BIND)")
	fs.StringVar(&cfg.logFormat, "log-format", "console", "log output format, json or console (env: TRIVIADUEL_LOG_FORMAT)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "minimum log level: debug, info, warn, error (env: TRIVIADUEL_LOG_LEVEL)")
	fs.DurationVar(&cfg.playerTimeout, "player-timeout", time.Minute, "time without a pong before a connection is dropped (env: TRIVIADUEL_PLAYER_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: TRIVIADUEL_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: TRIVIADUEL_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: TRIVIADUEL_PROFILE)")
	fs.IntVar(&cfg.questionCount, "question-count", 10, "questions drawn for each game (env: TRIVIADUEL_QUESTION_COUNT)")
	fs.DurationVar(&cfg.questionDelay, "question-delay", 0, "pause between a score update and the next question (env: TRIVIADUEL_QUESTION_DELAY)")
	fs.StringVarP(&cfg.questions, "questions", "q", "questions.json", "question pool file, json or yaml (env: TRIVIADUEL_QUESTIONS)")
	fs.BoolVar(&cfg.revealAnswers, "reveal-answers", false, "include the correct answer in question messages (env: TRIVIADUEL_REVEAL_ANSWERS)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle rooms are ended, 0 to disable, otherwise at least 1s (env: TRIVIADUEL_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: TRIVIADUEL_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: TRIVIADUEL_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "log every request and game event, same as --log-level=debug (env: TRIVIADUEL_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: TRIVIADUEL_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("triviaduel v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
