package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wkalt/teeql/service"
)

var (
	servePort           int
	serveAllowedOrigins []string
	servePprofAddr      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve queries over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		store, err := newStorage()
		if err != nil {
			return err
		}
		opts := []service.Option{
			service.WithPort(servePort),
			service.WithStorage(store),
			service.WithHistoryPath(historyDB),
			service.WithChunkSize(chunkSize),
			service.WithPprofAddr(servePprofAddr),
		}
		if len(serveAllowedOrigins) > 0 {
			opts = append(opts, service.WithAllowedOrigins(serveAllowedOrigins))
		}
		return service.NewService().Start(ctx, opts...)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8089, "Port to listen on")
	serveCmd.Flags().StringSliceVarP(&serveAllowedOrigins, "allowed-origins", "o", nil, "Allowed CORS origins")
	serveCmd.Flags().StringVar(&servePprofAddr, "pprof-addr", "", "Address for the pprof server; empty disables it")
	rootCmd.AddCommand(serveCmd)
}
