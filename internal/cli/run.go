package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/forPelevin/cutlist/internal/config"
	"github.com/forPelevin/cutlist/internal/logging"
	"github.com/forPelevin/cutlist/internal/pipeline"
	"github.com/forPelevin/cutlist/internal/usecase"
)

type app struct {
	cfg *config.Config
	log *slog.Logger
	uc  usecase.Usecase
}

// setup loads configuration (file, .env, environment, then flags) and wires
// the usecase. m may be nil.
func setup(cmd *cobra.Command, m usecase.Metrics) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadEnv(path)
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Log.Format = v
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())

	pc := pipeline.FromFile(cfg)
	pc.Logger = log
	pc.Metrics = m
	uc, err := pipeline.Build(pc)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, uc: uc}, nil
}
