package commands

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajkula/GoAccessGate/adapter/outbound/logging"
	"github.com/ajkula/GoAccessGate/adapter/outbound/storeclient"
	"github.com/ajkula/GoAccessGate/config"
)

// options shared by every subcommand
type options struct {
	configPath   string
	storeURL     string
	requestsPath string
	token        string
	timeout      time.Duration
	logLevel     string

	cfg    *config.Config
	logger *logging.SlogAdapter
}

// NewRootCmd creates the accessctl command tree
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "accessctl",
		Short:         "Review access requests of GoAccessGate",
		Long:          `accessctl issues development tokens and lists, approves or rejects access requests held by an access request store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				opts.logger.Shutdown()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "GoAccessGate configuration file (store URL and JWT secret defaults)")
	flags.StringVar(&opts.storeURL, "store", "", "Base URL of the access request store")
	flags.StringVar(&opts.requestsPath, "requests-path", "", "Collection path of the access request store")
	flags.StringVar(&opts.token, "token", os.Getenv("ACCESSGATE_TOKEN"), "Bearer token (defaults to $ACCESSGATE_TOKEN)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Timeout of each store call")
	flags.StringVar(&opts.logLevel, "log-level", "", "Override log level (debug|info|warn|error)")

	cmd.AddCommand(
		newTokenCmd(opts),
		newRequestsCmd(opts),
	)

	return cmd
}

func (o *options) load() error {
	cfg := config.DefaultConfig()
	if o.configPath != "" {
		loaded, err := config.LoadConfig(o.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	// the CLI only reports problems unless asked otherwise
	cfg.Logging.Format = "text"
	cfg.Logging.Level = "WARN"
	if o.logLevel != "" {
		cfg.Logging.Level = strings.ToUpper(o.logLevel)
	}

	if o.storeURL == "" {
		o.storeURL = cfg.Store.BaseURL
	}
	if o.requestsPath == "" {
		o.requestsPath = cfg.Store.RequestsPath
	}
	if o.timeout <= 0 {
		o.timeout = cfg.StoreTimeout()
	}

	o.cfg = cfg
	o.logger = logging.NewSlogAdapterWithWriter(cfg, os.Stderr)
	return nil
}

func (o *options) client() *storeclient.Client {
	return storeclient.NewClient(o.storeURL, o.requestsPath, o.timeout, o.logger)
}
