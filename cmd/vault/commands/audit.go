package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"
)

// AuditPurgeAction deletes audit records whose retention window has passed.
func AuditPurgeAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	purged, err := appCtx.AuditStore.PurgeExpired(ctx, time.Now())
	if err != nil {
		slog.Error("audit purge failed", "error", err)
		return err
	}
	fmt.Printf("Purged %d expired audit records.\n", purged)
	return nil
}
