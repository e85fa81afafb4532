package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nixxel-company-limited/embosser-controller/server"
)

var serveAddress string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the TCP control console",
	RunE: func(cmd *cobra.Command, args []string) error {
		address := cfg.Server.Address
		if serveAddress != "" {
			address = serveAddress
		}

		a := newApp(cfg)
		defer a.close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		a.logNotifications(ctx)

		svr := server.New(a.ctrl, a.hub, address, logger)
		svr.DefaultPort = cfg.Device.Port
		svr.DefaultBaud = cfg.Device.BaudRate

		if err := svr.StartAsync(); err != nil {
			return err
		}
		logger.Info().Str("gateway", cfg.Gateway.Host).Str("address", address).Msg("console ready")

		<-ctx.Done()
		logger.Info().Msg("shutting down")
		return svr.Stop()
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddress, "address", "a", "", "listen address (default from server.address)")
}
