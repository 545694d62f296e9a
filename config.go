package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "TABOOSTAFF"

type Config struct {
	backendURL  string
	envFile     string
	sessionFile string
	timeout     time.Duration
	verbose     bool

	bind      string
	loginRate int
	port      int
	prefix    string
	profile   bool
	sprite    string
	tlsCert   string
	tlsKey    string
}

func (c *Config) validate() error {
	if c.timeout <= 0 {
		return fmt.Errorf("invalid timeout (must be positive): %s", c.timeout)
	}
	return nil
}

func (c *Config) validateServe() error {
	if err := c.validate(); err != nil {
		return err
	}
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.loginRate < 1 {
		return fmt.Errorf("invalid login rate (must be at least 1/min): %d", c.loginRate)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// loadEnvFile reads a dotenv file into the process environment. A missing
// file is fine; variables already set win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// bindEnv fills every flag the user did not pass from TABOOSTAFF_<NAME>.
func bindEnv(flags *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			if e := flags.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); e != nil && err == nil {
				err = fmt.Errorf("%s_%s: %w", envPrefix, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), e)
			}
		}
	})
	return err
}

func envHint(name string) string {
	return fmt.Sprintf("(env: %s_%s)", envPrefix, strings.ToUpper(strings.ReplaceAll(name, "-", "_")))
}

func newCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "taboostaff",
		Short:         "Staff console and CLI for the Taboo deck library.",
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(cfg.envFile); err != nil {
				return fmt.Errorf("load %s: %w", cfg.envFile, err)
			}
			if err := bindEnv(cmd.Flags()); err != nil {
				return err
			}
			return cfg.validate()
		},
	}

	pfs := cmd.PersistentFlags()

	pfs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	pfs.StringVar(&cfg.backendURL, "backend-url", "", "base URL of the Taboo API "+envHint("backend-url"))
	pfs.StringVar(&cfg.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	pfs.StringVar(&cfg.sessionFile, "session-file", defaultSessionFile(), "where the login session is kept "+envHint("session-file"))
	pfs.DurationVar(&cfg.timeout, "timeout", 20*time.Second, "timeout for each backend request "+envHint("timeout"))
	pfs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output "+envHint("verbose"))

	cmd.AddCommand(
		newLoginCmd(cfg),
		newLogoutCmd(cfg),
		newWhoamiCmd(cfg),
		newDecksCmd(cfg),
		newCategoryCmd(cfg),
		newDeckCmd(cfg),
		newWorkbookCmd(cfg),
		newPasswordCmd(cfg),
		newAdminResetCmd(cfg),
		newPlayCmd(cfg),
		newServeCmd(cfg),
	)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("taboostaff v{{.Version}}\n")

	return cmd
}

func newServeCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the staff web console.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validateServe(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()

	flags.StringVarP(&cfg.bind, "bind", "b", "127.0.0.1", "address to bind to "+envHint("bind"))
	flags.IntVar(&cfg.loginRate, "login-rate", 10, "login attempts allowed per minute per address "+envHint("login-rate"))
	flags.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on "+envHint("port"))
	flags.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy "+envHint("prefix"))
	flags.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers "+envHint("profile"))
	flags.StringVar(&cfg.sprite, "sprite", "", "PNG to use as the base background sprite "+envHint("sprite"))
	flags.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate "+envHint("tls-cert"))
	flags.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile "+envHint("tls-key"))

	return cmd
}
