package commands

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"
)

// BackendsWatchAction runs the health probe loop until interrupted. Down and
// degraded backends are probed on the configured interval and restored when
// they answer again.
func BackendsWatchAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	slog.Info("starting backend health watch",
		"probeSeconds", appCtx.Config.HealthProbeSeconds)

	appCtx.Router.RunProbes(ctx)
	return nil
}
