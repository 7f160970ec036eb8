package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"familytree/infrastructure/di"
	"familytree/internal/config"
)

// app carries what the subcommands share: the loaded configuration and the
// wired container.
type app struct {
	configDir   string
	environment string

	loader    *config.Loader
	container *di.Container
	cleanup   func()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "familytree",
		Short: "Edit and inspect a stored family tree",
		Long: `familytree - Genealogy tree editor core.

Every command loads the stored tree, applies its change through the same
pipeline an editor uses (relationship store, generated connections, undo
history) and saves the result with a rotating backup.

Configuration sources (later ones win):
  1. Defaults
  2. <config>/base.yaml
  3. <config>/<environment>.yaml
  4. <config>/local.yaml (development only)
  5. FAMILYTREE_* environment variables

Examples:
  familytree add --name Maria --gender female
  familytree add --name Ana --gender female --mother p1
  familytree inspect --format yaml
  familytree generations
  familytree backups
  familytree watch --metrics-addr :9090`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVarP(&a.configDir, "config", "c", "config", "Directory holding the configuration files")
	root.PersistentFlags().StringVar(&a.environment, "env", "", "Environment: development, test, production (default $FAMILYTREE_ENV)")

	root.AddCommand(
		a.inspectCmd(),
		a.generationsCmd(),
		a.addCmd(),
		a.updateCmd(),
		a.deleteCmd(),
		a.relateCmd(),
		a.disconnectCmd(),
		a.connectionCmd(),
		a.moveCmd(),
		a.shapeCmd(),
		a.exportCmd(),
		a.importCmd(),
		a.backupsCmd(),
		a.restoreCmd(),
		a.clearCmd(),
		a.watchCmd(),
	)
	return root
}

// setup loads the configuration and wires the container
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	envName := a.environment
	if envName == "" {
		envName = os.Getenv(config.EnvPrefix + "ENV")
	}
	a.loader = config.NewLoader(a.configDir, config.ParseEnvironment(envName))

	cfg, err := a.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	container, cleanup, err := di.InitializeContainer(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	a.container = container
	a.cleanup = cleanup
	return nil
}

// close releases the container, if one was built
func (a *app) close() {
	if a.container != nil {
		a.container.Autosave.Stop()
	}
	if a.cleanup != nil {
		a.cleanup()
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	a := &app{}
	defer a.close()

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	return root.ExecuteContext(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
