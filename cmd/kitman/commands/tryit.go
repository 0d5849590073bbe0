package commands

import (
	"fmt"
	"os"
	"runtime"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/execution"
	"github.com/arthur-debert/kitman/pkg/filesystem"
	"github.com/arthur-debert/kitman/pkg/tryit"
	"github.com/spf13/cobra"
)

func newTryItCmd(a *app) *cobra.Command {
	var (
		dir  string
		open bool
	)
	cmd := &cobra.Command{
		Use:     "try-it",
		Short:   MsgTryItShort,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return errors.Wrap(err, errors.ErrFileAccess, "current directory")
				}
				dir = wd
			}
			project, err := tryit.Export(filesystem.NewOS(), dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), MsgTryItExported, project)
			if !open {
				return nil
			}
			rec, _ := a.installedRecord()
			tryit.Opener{Runner: execution.NewExecRunner(nil), Installed: rec}.Open(cmd.Context(), project)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "path", "", MsgFlagTryItPath)
	// Linux terminals often have no desktop to open into.
	cmd.Flags().BoolVar(&open, "open", runtime.GOOS != "linux", MsgFlagTryItOpen)
	return cmd
}
