package commands

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/arthur-debert/kitman/pkg/components"
	"github.com/arthur-debert/kitman/pkg/config"
	"github.com/arthur-debert/kitman/pkg/core"
	"github.com/arthur-debert/kitman/pkg/envconf"
	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/filesystem"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"github.com/spf13/cobra"
)

func newComponentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "component",
		Aliases: []string{"components"},
		Short:   MsgComponentShort,
		GroupID: "inspect",
	}

	var installed bool
	list := &cobra.Command{
		Use:   "list",
		Short: MsgComponentList,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loadManifest(cmd.Context())
			if err != nil {
				return err
			}
			rec, err := a.installedRecord()
			if err != nil {
				return err
			}
			all := components.FromManifest(m, rec)
			if installed {
				all = components.Installed(all)
			}
			out, err := a.renderer(cmd)
			if err != nil {
				return err
			}
			return out.Components(all)
		},
	}
	list.Flags().BoolVar(&installed, "installed", false, MsgFlagInstalled)
	cmd.AddCommand(list)
	return cmd
}

func newToolkitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "toolkit",
		Short:   MsgToolkitShort,
		GroupID: "inspect",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: MsgToolkitList,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.CatalogServer == "" {
				return errors.New(errors.ErrConfigInvalid, MsgNoCatalogServer)
			}
			catalog, err := manifest.FetchCatalog(cmd.Context(), a.cfg.CatalogServer, nil)
			if err != nil {
				return err
			}
			out, err := a.renderer(cmd)
			if err != nil {
				return err
			}
			return out.Catalog(catalog.Sorted())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: MsgToolkitInfo,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.installedRecord()
			if err != nil {
				return err
			}
			out, err := a.renderer(cmd)
			if err != nil {
				return err
			}
			return out.Record(rec)
		},
	})
	return cmd
}

func newEnvCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "env",
		Short:   MsgEnvShort,
		GroupID: "inspect",
	}

	var shell string
	show := &cobra.Command{
		Use:   "show",
		Short: MsgEnvShow,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var dialect envconf.Dialect
			switch strings.ToLower(shell) {
			case "", "posix", "sh", "bash", "zsh":
				dialect = envconf.POSIX
			case "fish":
				dialect = envconf.Fish
			default:
				return errors.Newf(errors.ErrInvalidInput, "unknown shell %q", shell).
					WithDetail("valid", "posix, fish")
			}
			m, err := a.loadManifest(cmd.Context())
			if err != nil {
				return err
			}
			env := core.Environment(m, a.request(nil).Config)
			fmt.Fprint(cmd.OutOrStdout(), envconf.Render(env, dialect))
			return nil
		},
	}
	show.Flags().StringVar(&shell, "shell", "posix", MsgFlagShell)
	cmd.AddCommand(show)

	cmd.AddCommand(&cobra.Command{
		Use:   "preview",
		Short: MsgEnvPreview,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loadManifest(cmd.Context())
			if err != nil {
				return err
			}
			return previewProfiles(cmd.OutOrStdout(), core.Environment(m, a.request(nil).Config))
		},
	})
	return cmd
}

// previewProfiles applies env to the shell profiles on a copy-on-write
// filesystem and prints each profile that would change.
func previewProfiles(w io.Writer, env envconf.Environment) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return errors.Wrap(err, errors.ErrFileAccess, "locate home directory")
	}
	disk := filesystem.NewOS()
	preview := filesystem.NewPreviewFS()
	pc := envconf.NewProfileConfigurator(preview, envconf.ProfileOptions{
		Home:    home,
		ZDotDir: os.Getenv("ZDOTDIR"),
		Shell:   os.Getenv("SHELL"),
	})
	if err := pc.Apply(env); err != nil {
		return err
	}

	changed := 0
	for _, p := range pc.Profiles() {
		after, err := preview.ReadFile(p.Path)
		if err != nil {
			continue
		}
		before, _ := disk.ReadFile(p.Path)
		if bytes.Equal(before, after) {
			continue
		}
		changed++
		fmt.Fprintf(w, "==> %s\n%s", p.Path, after)
		if len(after) > 0 && after[len(after)-1] != '\n' {
			fmt.Fprintln(w)
		}
	}
	if changed == 0 {
		fmt.Fprintln(w, MsgProfilesUpToDate)
	}
	return nil
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   MsgConfigShort,
		GroupID: "misc",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: MsgConfigShowShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.Marshal(a.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "save",
		Short: MsgConfigSaveShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configFile
			if path == "" {
				path = a.paths.ConfigFilePath()
			}
			if err := config.Save(filesystem.NewOS(), path, a.cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), MsgConfigSaved, path)
			return nil
		},
	})
	return cmd
}
