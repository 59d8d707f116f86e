package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hrygo/homesense/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the context API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prof, err := loadProfile()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, prof)
			if err != nil {
				return err
			}
			defer rt.Close()

			s := server.NewServer(prof, rt.service, rt.metrics, rt.pinger)
			if err := s.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			s.Shutdown(context.Background())
			return nil
		},
	}

	cmd.Flags().String("addr", "", "address of server")
	cmd.Flags().Int("port", 8099, "port of server")
	for flag, key := range map[string]string{"addr": "addr", "port": "port"} {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
	return cmd
}
