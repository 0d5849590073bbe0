package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/arthur-debert/kitman/internal/version"
	"github.com/arthur-debert/kitman/pkg/core"
	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/filesystem"
	"github.com/arthur-debert/kitman/pkg/fingerprint"
	"github.com/arthur-debert/kitman/pkg/logging"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"github.com/arthur-debert/kitman/pkg/progress"
	"github.com/arthur-debert/kitman/pkg/ui"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newInstallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "install [components...]",
		Short:   MsgInstallShort,
		Long:    MsgInstallLong,
		Example: MsgInstallExample,
		GroupID: "lifecycle",
		RunE:    a.runInstall,
	}
}

func (a *app) runInstall(cmd *cobra.Command, args []string) error {
	m, err := a.loadManifest(cmd.Context())
	if err != nil {
		return err
	}
	return a.run(cmd, func(ctx context.Context, e *core.Engine) (*core.Result, error) {
		return e.Install(ctx, m, a.request(args))
	})
}

func newUpdateCmd(a *app) *cobra.Command {
	var latest bool
	cmd := &cobra.Command{
		Use:     "update [components...]",
		Short:   MsgUpdateShort,
		Long:    MsgUpdateLong,
		GroupID: "lifecycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				m   *manifest.Manifest
				err error
			)
			if latest {
				m, err = a.latestManifest(cmd.Context())
			} else {
				m, err = a.loadManifest(cmd.Context())
			}
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, e *core.Engine) (*core.Result, error) {
				return e.Update(ctx, m, a.request(args))
			})
		},
	}
	cmd.Flags().BoolVar(&latest, "latest", false, MsgFlagLatest)
	return cmd
}

// latestManifest finds the newest catalog release of the installed toolkit.
func (a *app) latestManifest(ctx context.Context) (*manifest.Manifest, error) {
	if a.cfg.CatalogServer == "" {
		return nil, errors.New(errors.ErrConfigInvalid, MsgNoCatalogServer)
	}
	rec, err := a.installedRecord()
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.New(errors.ErrNotFound, "no toolkit is installed")
	}
	catalog, err := manifest.FetchCatalog(ctx, a.cfg.CatalogServer, nil)
	if err != nil {
		return nil, err
	}
	pkg, ok := catalog.Latest(rec.Name, rec.Edition)
	if !ok {
		return nil, errors.Newf(errors.ErrNotFound, "%s is not published on %s", rec.Name, a.cfg.CatalogServer).
			WithDetail("edition", rec.Edition)
	}
	log.Info().
		Str("toolkit", pkg.Name).
		Str("installed", rec.Version).
		Str("latest", pkg.Version).
		Msg("Catalog release found")
	return manifest.Load(ctx, pkg.ManifestURL, manifest.LoadOptions{})
}

func newUninstallCmd(a *app) *cobra.Command {
	var keepSelf, yes bool
	cmd := &cobra.Command{
		Use:     "uninstall",
		Short:   MsgUninstallShort,
		Long:    MsgUninstallLong,
		GroupID: "lifecycle",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.installedRecord()
			if err != nil {
				return err
			}
			if rec == nil {
				fmt.Fprintln(cmd.OutOrStdout(), MsgNothingInstalled)
				return nil
			}
			if !yes && ui.IsTerminal(os.Stdin) {
				what := "the toolkit and kitman"
				if keepSelf {
					what = "the toolkit"
				}
				ok, err := pterm.DefaultInteractiveConfirm.
					WithDefaultValue(false).
					Show(fmt.Sprintf(MsgUninstallConfirm, what, rec.InstallDir))
				if err != nil {
					return errors.Wrap(err, errors.ErrInvalidInput, "read confirmation")
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), MsgUninstallAborted)
					return nil
				}
			}
			return a.run(cmd, func(ctx context.Context, e *core.Engine) (*core.Result, error) {
				return e.Uninstall(ctx, keepSelf)
			})
		},
	}
	cmd.Flags().BoolVar(&keepSelf, "keep-self", false, MsgFlagKeepSelf)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, MsgFlagYes)
	return cmd
}

func newSelfUpdateCmd(a *app) *cobra.Command {
	var (
		from     string
		releases string
		channel  string
		force    bool
	)
	cmd := &cobra.Command{
		Use:     "self-update",
		Short:   MsgSelfUpdateShort,
		GroupID: "lifecycle",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := core.SelfUpdateRequest{Location: from, Releases: releases}
			if req.Location == "" {
				req.Location = a.cfg.ManagerUpdateURL
			}
			if req.Location == "" {
				return errors.New(errors.ErrConfigInvalid, MsgNoUpdateLocation)
			}
			if req.Releases == "" {
				req.Releases = a.cfg.ManagerReleases
			}
			if force {
				req.Releases = ""
			}
			if channel == "" {
				channel = a.cfg.UpdateChannel
			}
			ch, err := manifest.ParseChannel(channel)
			if err != nil {
				return err
			}
			req.Channel = ch

			var upToDate bool
			err = a.run(cmd, func(ctx context.Context, e *core.Engine) (*core.Result, error) {
				res, err := e.SelfUpdate(ctx, req)
				upToDate = res != nil && res.UpToDate
				return res, err
			})
			switch {
			case err != nil:
			case upToDate:
				fmt.Fprintln(cmd.ErrOrStderr(), MsgSelfUpToDate)
			default:
				fmt.Fprintln(cmd.ErrOrStderr(), MsgSelfUpdated)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&from, "from", "", MsgFlagFrom)
	cmd.Flags().StringVar(&releases, "releases", "", MsgFlagReleases)
	cmd.Flags().StringVar(&channel, "channel", "", MsgFlagChannel)
	cmd.Flags().BoolVar(&force, "force", false, MsgFlagForce)
	return cmd
}

// installedRecord reads the fingerprint without taking the lock; nil means
// nothing is installed.
func (a *app) installedRecord() (*fingerprint.Record, error) {
	return fingerprint.NewStore(filesystem.NewOS(), a.paths.FingerprintPath()).Load()
}

func (a *app) loadManifest(ctx context.Context) (*manifest.Manifest, error) {
	return manifest.Load(ctx, a.cfg.Manifest, manifest.LoadOptions{})
}

func (a *app) request(args []string) core.Request {
	return core.Request{
		Components: args,
		Config: core.Config{
			InstallDir:   a.cfg.InstallDir,
			AddToPath:    a.cfg.AddToPath,
			Insecure:     a.cfg.Insecure,
			DistServer:   a.cfg.DistServer,
			UpdateRoot:   a.cfg.UpdateRoot,
			RegistryName: a.cfg.Registry.Name,
			RegistryURL:  a.cfg.Registry.URL,
		},
	}
}

func (a *app) engine(reporter progress.Reporter) (*core.Engine, error) {
	return core.New(core.Options{
		Paths:           a.paths,
		Progress:        reporter,
		Metrics:         a.metrics,
		MetricsFile:     a.cfg.Metrics.Textfile,
		Version:         version.Version,
		DownloadTimeout: a.cfg.Download.Timeout,
		DownloadRetries: a.cfg.Download.Retries,
	})
}

// run executes one engine operation. Progress goes to the log and, on a
// terminal, to pterm bars on stderr; the result is rendered once the bars
// are done.
func (a *app) run(cmd *cobra.Command, op func(ctx context.Context, e *core.Engine) (*core.Result, error)) error {
	out, err := a.renderer(cmd)
	if err != nil {
		return err
	}

	reporters := progress.Fanout{progress.LogReporter(logging.GetLogger("progress"))}
	var (
		ch   *progress.Channel
		done chan struct{}
	)
	if ui.IsTerminal(os.Stderr) {
		ch = progress.NewChannel()
		done = make(chan struct{})
		go func() {
			defer close(done)
			progress.RenderTerminal(ch.Events(), cmd.ErrOrStderr())
		}()
		reporters = append(reporters, ch)
	}

	e, err := a.engine(reporters)
	if err != nil {
		return err
	}

	ctx, stop := interruptible(cmd)
	res, err := op(ctx, e)
	stop()

	if ch != nil {
		ch.Close()
		<-done
	}
	if err != nil {
		return err
	}
	if rerr := out.Result(res); rerr != nil {
		return rerr
	}
	return res.Err()
}
