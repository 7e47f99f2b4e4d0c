package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/urfave/cli/v3"
)

// BackendsStatusAction prints the health of every configured inference
// backend.
func BackendsStatusAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	health := appCtx.Router.Health()
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		fmt.Println("No backends configured.")
	} else {
		fmt.Printf("%-20s %-10s %-10s %s\n", "BACKEND", "STATE", "FAILURES", "LAST CHANGE")
		for _, name := range names {
			h := health[name]
			fmt.Printf("%-20s %-10s %-10d %s\n",
				name, h.State, h.ConsecutiveFailures, h.LastChange.Format("2006-01-02 15:04:05"))
		}
	}

	embeddingState := "unreachable"
	if appCtx.Embedder.Healthy(ctx) {
		embeddingState = "healthy"
	}
	fmt.Printf("\nEmbedding backend (%s): %s\n", appCtx.Config.Embedding.URL, embeddingState)
	return nil
}
