package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/andrej220/rdeploy/internal/tasks"
	"github.com/andrej220/rdeploy/pkg/config"
	"github.com/andrej220/rdeploy/pkg/lg"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (a *App) tasksCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "tasks",
		Short:       "List the available tasks.",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, e := range tasks.Entries() {
				name := e.Name
				if len(e.Aliases) > 0 {
					name += " (" + strings.Join(e.Aliases, ", ") + ")"
				}
				fmt.Fprintf(w, "%s\t%s\n", name, e.Short)
			}
			return w.Flush()
		},
	}
}

// resolvedEnv is what "env" prints: the environment after defaults, flags
// and path expansion.
type resolvedEnv struct {
	Name       string `yaml:"name"`
	Target     string `yaml:"target"`
	Branch     string `yaml:"branch"`
	KeyPath    string `yaml:"key_path"`
	KnownHosts string `yaml:"known_hosts,omitempty"`
	Insecure   bool   `yaml:"insecure_ignore_host_key,omitempty"`
	AppDir     string `yaml:"app_dir"`
	Venv       string `yaml:"venv"`
	Service    string `yaml:"service"`
}

func (a *App) envCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print the resolved target environment.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := a.target()
			if err != nil {
				return err
			}
			out := resolvedEnv{
				Name:     a.envName,
				Target:   target.String(),
				Branch:   a.branch(),
				KeyPath:  target.KeyPath,
				Insecure: target.InsecureIgnoreHostKey,
				AppDir:   a.cfg.Project.AppDir,
				Venv:     a.cfg.Project.Venv,
				Service:  a.cfg.Project.Service,
			}
			if !target.InsecureIgnoreHostKey {
				out.KnownHosts = target.KnownHosts
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("failed to encode environment: %w", err)
			}
			return enc.Close()
		},
	}
}

func (a *App) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Copy the configuration between the YAML file and MongoDB.",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:         "push",
			Short:       "Validate the YAML file given by --config and store it in MongoDB.",
			Args:        cobra.NoArgs,
			Annotations: map[string]string{skipConfig: "true"},
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.copyConfig(cmd, config.FileStore, config.MongoStore)
			},
		},
		&cobra.Command{
			Use:         "pull",
			Short:       "Fetch the configuration from MongoDB into the YAML file given by --config.",
			Args:        cobra.NoArgs,
			Annotations: map[string]string{skipConfig: "true"},
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.copyConfig(cmd, config.MongoStore, config.FileStore)
			},
		},
	)
	return cmd
}

func (a *App) copyConfig(cmd *cobra.Command, from, to config.StoreType) error {
	src, err := a.openStore(from, a.storeConfig(from))
	if err != nil {
		return fmt.Errorf("failed to open config store: %w", err)
	}
	defer config.CloseStore(src)
	dst, err := a.openStore(to, a.storeConfig(to))
	if err != nil {
		return fmt.Errorf("failed to open config store: %w", err)
	}
	defer config.CloseStore(dst)

	f, err := config.Copy(src, dst)
	if err != nil {
		return err
	}
	a.logger.Info("configuration copied",
		lg.String("project", f.Project.Name),
		lg.String("config", a.flags.configPath),
		lg.String("document", a.flags.configID))
	fmt.Fprintf(cmd.OutOrStdout(), "Copied %s configuration (%s) from %s to %s.\n",
		f.Project.Name, strings.Join(f.EnvironmentNames(), ", "), a.storeName(from), a.storeName(to))
	return nil
}

func (a *App) storeName(t config.StoreType) string {
	if t == config.MongoStore {
		return fmt.Sprintf("mongo:%s/%s#%s", a.flags.mongoDB, a.flags.mongoCollection, a.flags.configID)
	}
	return a.flags.configPath
}
