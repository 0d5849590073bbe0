package commands

import (
	"context"
	"fmt"

	"github.com/arthur-debert/kitman/pkg/logging"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"github.com/arthur-debert/kitman/pkg/progress"
	"github.com/arthur-debert/kitman/pkg/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   MsgServeShort,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			logger := logging.GetLogger("server")
			hub := server.NewHub(&logger)
			e, err := a.engine(progress.Fanout{hub, progress.LogReporter(logging.GetLogger("progress"))})
			if err != nil {
				return err
			}

			// Info-level log lines reach the front end as progress messages.
			detach := logging.AttachWriter(progress.LogLineWriter{
				T:        progress.NewTracker(hub),
				MinLevel: zerolog.InfoLevel,
			})
			defer detach()

			srv := server.New(server.Options{
				Engine: e,
				Manifest: func() (*manifest.Manifest, error) {
					return a.loadManifest(context.Background())
				},
				Hub:     hub,
				Metrics: a.metrics,
				Logger:  &logger,
			})

			ctx, stop := interruptible(cmd)
			defer stop()
			fmt.Fprintf(cmd.ErrOrStderr(), MsgServing, addr)
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", MsgFlagAddr)
	return cmd
}
