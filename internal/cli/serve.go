package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcavanagh/sitesentry/internal/api"
	"github.com/rcavanagh/sitesentry/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the connector: API server, update guard and command poller",
	Example: `  # Start with the configured listen address
  sitesentry serve

  # Start on a custom address
  sitesentry serve --addr :9090`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringP("addr", "a", "", "Listen address (default from config or :8089)")
	f.Bool("no-commands", false, "Disable the command queue poller")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	serveCfg, err := requireConfig()
	if err != nil {
		return err
	}

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = serveCfg.ListenAddr
	}
	if addr == "" {
		addr = ":8089"
	}

	st, err := buildStack(serveCfg)
	if err != nil {
		return err
	}
	defer st.close()

	st.sched.Start()
	defer st.sched.Stop()

	noCommands, _ := cmd.Flags().GetBool("no-commands")
	if !noCommands && st.hubClient != nil {
		st.processor.Start()
		defer st.processor.Stop()
	}

	server := api.NewServer(serveCfg, addr, api.Options{
		Site:        st.site,
		Prober:      st.prober,
		Snapshots:   st.snaps,
		EventLog:    st.log,
		Coordinator: st.coordinator,
		Processor:   st.processor,
		HubClient:   st.hubClient,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logging.Infof("Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
