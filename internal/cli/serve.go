package cli

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"codectx/internal/api"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Serve the query engine over HTTP. The endpoint accepts the same
parameters as the query command:

  POST /api/query  {"query": "...", "top_k": 10, "threshold": 0.5, "project": "myapp"}
  GET  /api/status`,
	RunE: func(cmd *cobra.Command, args []string) error {
		host := serveHost
		if host == "" {
			host = application.Cfg.API.Host
		}
		port := servePort
		if port == 0 {
			port = application.Cfg.API.Port
		}

		srv := api.New(application, host, port)
		log.Printf("Serving on http://%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "host to bind (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to bind (default from config)")
	rootCmd.AddCommand(serveCmd)
}
