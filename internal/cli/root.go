// Package cli wires the deployment tasks to a cobra command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andrej220/rdeploy/internal/tasks"
	"github.com/andrej220/rdeploy/pkg/config"
	"github.com/andrej220/rdeploy/pkg/config/configstore"
	"github.com/andrej220/rdeploy/pkg/consumer"
	"github.com/andrej220/rdeploy/pkg/lg"
	"github.com/andrej220/rdeploy/pkg/remote"
	"github.com/spf13/cobra"
)

const (
	serviceName = "rdeploy"

	// commands carrying this annotation run without a loaded configuration
	skipConfig = "skip-config"
)

type flags struct {
	configPath      string
	store           string
	mongoURI        string
	mongoDB         string
	mongoCollection string
	configID        string
	env             string
	branch          string
	dryRun          bool
	yes             bool
	debug           bool
	logFormat       string
	reportPath      string
	outputDir       string
}

// App holds the state shared by all commands of one invocation.
type App struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	now    func() time.Time
	dialer remote.Dialer
	logger lg.Logger

	newReader func(consumer.Config) reportReader
	openStore func(config.StoreType, any) (configstore.ConfigStore, error)

	flags flags

	cfg     *config.File
	envName string
	env     *config.Environment
}

type Option func(*App)

// WithIO replaces the process's standard streams.
func WithIO(in io.Reader, out, errOut io.Writer) Option {
	return func(a *App) {
		a.in = in
		a.out = out
		a.errOut = errOut
	}
}

// WithDialer overrides the SSH dialer; --dry-run is ignored when set.
func WithDialer(d remote.Dialer) Option {
	return func(a *App) { a.dialer = d }
}

// WithLogger overrides the logger built from --debug and --log-format.
func WithLogger(l lg.Logger) Option {
	return func(a *App) { a.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

func NewApp(opts ...Option) *App {
	a := &App{
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		now:    time.Now,

		newReader: newKafkaReader,
		openStore: config.NewStore,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewRootCommand builds the command tree: one subcommand per task plus
// "tasks", "env", "watch" and "config".
func (a *App) NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:               serviceName + " <command>",
		Short:             "Run deployment tasks for a Django project over SSH.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.configPath, "config", "c", "deploy.yaml", "configuration file")
	pf.StringVar(&a.flags.store, "store", "file", "configuration store: file or mongo")
	pf.StringVar(&a.flags.mongoURI, "mongo-uri", "mongodb://localhost:27017", "MongoDB URI for --store mongo")
	pf.StringVar(&a.flags.mongoDB, "mongo-db", serviceName, "MongoDB database for --store mongo")
	pf.StringVar(&a.flags.mongoCollection, "mongo-collection", "configs", "MongoDB collection for --store mongo")
	pf.StringVar(&a.flags.configID, "config-id", "default", "configuration document id for --store mongo")
	pf.StringVarP(&a.flags.env, "env", "e", "develop", "target environment")
	pf.StringVarP(&a.flags.branch, "branch", "b", "", "branch to deploy, overrides the environment's branch")
	pf.BoolVar(&a.flags.dryRun, "dry-run", false, "print remote commands instead of running them")
	pf.BoolVarP(&a.flags.yes, "yes", "y", false, "auto-confirm all prompts")
	pf.BoolVar(&a.flags.debug, "debug", false, "enable debug logging")
	pf.StringVar(&a.flags.logFormat, "log-format", "console", "log format: console or json")
	pf.StringVar(&a.flags.reportPath, "report", "", "write the run report as JSON to this file")
	pf.StringVarP(&a.flags.outputDir, "output", "o", ".", "local directory for fetched dumps")

	for _, e := range tasks.Entries() {
		root.AddCommand(a.taskCommand(e))
	}
	root.AddCommand(a.tasksCommand(), a.envCommand(), a.watchCommand(), a.configCommand())
	return root
}

func (a *App) setup(cmd *cobra.Command, _ []string) error {
	if a.logger == nil {
		a.logger = lg.New(&lg.Config{
			ServiceName: serviceName,
			Debug:       a.flags.debug,
			Format:      a.flags.logFormat,
		})
	}
	if cmd.Annotations[skipConfig] != "" || cmd.Name() == "help" {
		return nil
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	env, err := cfg.Environment(a.flags.env)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.envName = a.flags.env
	a.env = env
	a.logger = a.logger.With(lg.String("env", a.envName), lg.String("host", env.Host))
	return nil
}

func (a *App) loadConfig() (*config.File, error) {
	storeType, err := config.ParseStoreType(a.flags.store)
	if err != nil {
		return nil, err
	}
	store, err := a.openStore(storeType, a.storeConfig(storeType))
	if err != nil {
		return nil, fmt.Errorf("failed to open config store: %w", err)
	}
	defer config.CloseStore(store)

	cfg, err := config.Load(store)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	a.logger.Debug("configuration loaded",
		lg.String("store", a.flags.store),
		lg.Bool("dry_run", a.flags.dryRun))
	return cfg, nil
}

// storeConfig is the store settings taken from the flags.
func (a *App) storeConfig(storeType config.StoreType) any {
	if storeType == config.MongoStore {
		return &config.MongoConfig{
			URI:      a.flags.mongoURI,
			DBName:   a.flags.mongoDB,
			CollName: a.flags.mongoCollection,
			ID:       a.flags.configID,
		}
	}
	return &config.FileConfig{Path: a.flags.configPath}
}

// branch is --branch when given, otherwise the environment's branch.
func (a *App) branch() string {
	if a.flags.branch != "" {
		return a.flags.branch
	}
	return a.env.Branch
}

func (a *App) target() (remote.Target, error) {
	keyPath, err := config.ExpandPath(a.env.KeyPath)
	if err != nil {
		return remote.Target{}, err
	}
	knownHosts, err := config.ExpandPath(a.env.KnownHosts)
	if err != nil {
		return remote.Target{}, err
	}
	return remote.Target{
		Host:                  a.env.Host,
		Port:                  a.env.Port,
		User:                  a.env.User,
		KeyPath:               keyPath,
		KnownHosts:            knownHosts,
		InsecureIgnoreHostKey: a.env.InsecureIgnoreHostKey,
		Timeout:               remote.DefaultDialTimeout,
	}, nil
}

func (a *App) remoteDialer() remote.Dialer {
	switch {
	case a.dialer != nil:
		return a.dialer
	case a.flags.dryRun:
		return &remote.DryRunDialer{Out: a.out}
	default:
		return remote.NewSSHDialer()
	}
}

// Execute runs the command line in args and returns the process exit code.
func (a *App) Execute(ctx context.Context, args []string) int {
	root := a.NewRootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if err == nil {
		return 0
	}
	var shown *reportedError
	if !errors.As(err, &shown) {
		fmt.Fprintln(a.errOut, "Error:", err)
	}
	return 1
}

// Execute is the entry point used by cmd/rdeploy.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewApp().Execute(ctx, os.Args[1:])
}
