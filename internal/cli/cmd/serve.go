package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"tubegrab/internal/api"
	"tubegrab/internal/orchestrator"
)

// version is reported by the health endpoint; overridden at link time.
var version = "dev"

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "serve",
		Short:         "Expose the download orchestrator over a local HTTP API",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return viper.BindPFlag("serve.addr", cmd.Flags().Lookup("addr"))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := mustApp(cmd)
			addr := viper.GetString("serve.addr")
			if addr == "" {
				addr = a.cfg.ServeAddr
			}
			resolver, _, err := a.backend()
			if err != nil {
				return err
			}
			orch := orchestrator.New(resolver, append(a.orchestratorOptions(), orchestrator.WithContext(cmd.Context()))...)
			defer orch.Close()

			h := api.NewHandler(orch, a.cfg.OutDir, a.cfg.Quality, version, a.log)
			a.log.Info("serving", zap.String("addr", addr), zap.String("out_dir", a.cfg.OutDir))
			if err := api.Serve(cmd.Context(), addr, api.NewRouter(h, a.log), a.log); err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "127.0.0.1:8765", "Listen address")
	return cmd
}
