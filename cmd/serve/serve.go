// Package serve provides the "sheetkit serve" command.
package serve

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/klytics/sheetkit/cmd/cmdutil"
	"github.com/klytics/sheetkit/internal/ai"
	"github.com/klytics/sheetkit/internal/config"
	"github.com/klytics/sheetkit/internal/web"
)

// NewCommand returns the serve command.
func NewCommand() *cobra.Command {
	var (
		addr        string
		maxUploadMB int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the upload, refine and download web service",
		Long: `Starts an HTTP server with a small upload page and a JSON API:

  POST /api/preview   multipart "file"                  table preview
  POST /api/refine    multipart "file" + "instruction"  refined table or raw reply
  POST /api/export    JSON table                        .xlsx download
  GET  /healthz

Each request is independent; nothing is kept on the server between them.
Stops cleanly on Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, cfg, err := cmdutil.NewRefiner(cmd)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if maxUploadMB <= 0 {
				maxUploadMB = cfg.Server.MaxUploadMB
			}
			settings := config.ProviderSettings(cfg, cmdutil.Overrides(cmd))

			srv := web.NewServer(web.Options{
				Provider:    ref.Provider,
				Builder:     ref.Builder,
				MaxUploadMB: maxUploadMB,
				Timeout:     ai.ClampTimeout(settings.Timeout) + 15*time.Second,
			})
			if !cmdutil.JSON(cmd) {
				fmt.Fprintf(cmd.OutOrStdout(), "sheetkit listening on %s (provider %s)\n", addr, ref.Provider.Name())
			}
			return srv.Run(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().IntVar(&maxUploadMB, "max-upload-mb", 0, "Largest accepted upload in MB (default from config, 20)")
	return cmd
}
