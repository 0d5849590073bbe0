package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/arthur-debert/kitman/internal/version"
	"github.com/arthur-debert/kitman/pkg/cobrax/topics"
	"github.com/arthur-debert/kitman/pkg/config"
	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/logging"
	"github.com/arthur-debert/kitman/pkg/metrics"
	"github.com/arthur-debert/kitman/pkg/paths"
	"github.com/arthur-debert/kitman/pkg/ui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// app carries what every command shares once the persistent flags are
// parsed.
type app struct {
	verbosity  int
	configFile string
	output     string

	cfg     *config.Config
	paths   *paths.Paths
	metrics *metrics.Metrics
}

// flagKeys maps persistent flags to configuration keys.
var flagKeys = map[string]string{
	"install-dir":   "install_dir",
	"insecure":      "insecure",
	"manifest":      "manifest",
	"dist-server":   "dist_server",
	"update-root":   "update_root",
	"registry-name": "registry.name",
	"registry-url":  "registry.url",
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	initTemplateFormatting()

	a := &app{}

	rootCmd := &cobra.Command{
		Use:     "kitman [components...]",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Version: version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.SetupLogger(a.verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
			return a.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// The installer binary installs when started without a
			// command; the manager shows help.
			rec, _ := a.installedRecord()
			if a.cfg.ResolveMode(executable(), rec != nil) == config.ModeInstaller {
				return a.runInstall(cmd, args)
			}
			_ = cmd.Help()
			return errors.New(errors.ErrInvalidInput, "no command specified")
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.CountVarP(&a.verbosity, "verbose", "v", MsgFlagVerbose)
	pf.StringVar(&a.configFile, "config", "", MsgFlagConfig)
	pf.StringVarP(&a.output, "output", "o", "auto", MsgFlagOutput)
	pf.String("install-dir", "", MsgFlagInstallDir)
	pf.Bool("no-modify-path", false, MsgFlagNoModifyPath)
	pf.Bool("insecure", false, MsgFlagInsecure)
	pf.String("manifest", "", MsgFlagManifest)
	pf.String("dist-server", "", MsgFlagDistServer)
	pf.String("update-root", "", MsgFlagUpdateRoot)
	pf.String("registry-name", "", MsgFlagRegistryName)
	pf.String("registry-url", "", MsgFlagRegistryURL)

	rootCmd.AddGroup(&cobra.Group{ID: "lifecycle", Title: "LIFECYCLE:"})
	rootCmd.AddGroup(&cobra.Group{ID: "inspect", Title: "INSPECT:"})
	rootCmd.AddGroup(&cobra.Group{ID: "misc", Title: "MISC:"})
	rootCmd.SetUsageTemplate(MsgUsageTemplate)

	rootCmd.AddCommand(newInstallCmd(a))
	rootCmd.AddCommand(newUpdateCmd(a))
	rootCmd.AddCommand(newUninstallCmd(a))
	rootCmd.AddCommand(newSelfUpdateCmd(a))
	rootCmd.AddCommand(newComponentCmd(a))
	rootCmd.AddCommand(newToolkitCmd(a))
	rootCmd.AddCommand(newEnvCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newTryItCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	renderer := topics.NewGlamourRenderer(!ui.IsTerminal(os.Stdout), 0)
	if _, err := topics.InitializeWithOptions(rootCmd, helpTopics(), topics.Options{
		Extensions: []string{".txt", ".md"},
		Renderer:   renderer,
	}); err != nil {
		log.Warn().Err(err).Msg("Help topics unavailable")
	}
	return rootCmd
}

// load resolves paths and merges the configuration sources.
func (a *app) load(cmd *cobra.Command) error {
	p, err := paths.New()
	if err != nil {
		return err
	}
	a.paths = p

	overrides := map[string]interface{}{}
	flags := cmd.Flags()
	flags.Visit(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			if f.Value.Type() == "bool" {
				v, _ := flags.GetBool(f.Name)
				overrides[key] = v
			} else {
				overrides[key] = f.Value.String()
			}
		}
	})
	if noModify, _ := flags.GetBool("no-modify-path"); noModify {
		overrides["add_to_path"] = false
	}

	cfg, err := config.Load(config.LoadOptions{File: a.configFile, Overrides: overrides})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.metrics = metrics.New()
	log.Debug().
		Str("installDir", cfg.InstallDir).
		Str("manifest", cfg.Manifest).
		Bool("addToPath", cfg.AddToPath).
		Msg("Configuration loaded")
	return nil
}

func (a *app) renderer(cmd *cobra.Command) (ui.Renderer, error) {
	format, err := ui.ParseFormat(a.output)
	if err != nil {
		return nil, err
	}
	return ui.NewRenderer(format, cmd.OutOrStdout())
}

func executable() string {
	exe, err := os.Executable()
	if err != nil {
		return os.Args[0]
	}
	return exe
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   MsgVersionShort,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		// Printing the version needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "kitman version %s\n", version.Version)
			fmt.Fprintf(out, "  commit: %s\n", version.Commit)
			fmt.Fprintf(out, "  built:  %s\n", version.Date)
		},
	}
}

// interruptible is cancelled on the first interrupt. Operations stop at
// the next tool boundary.
func interruptible(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt)
}
