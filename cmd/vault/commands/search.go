package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/wongivan852/legal-financial-ai-vault/internal/core/audit"
)

// SearchAction embeds the query and runs a similarity search over a
// collection.
func SearchAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	query := cmd.String("query")
	collection := cmd.String("collection")
	limit := cmd.Int("limit")
	docID := cmd.String("doc-id")
	actor := cmd.String("actor")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if collection == "" {
		collection = appCtx.Config.VectorStore.DocumentCollection
	}

	start := time.Now()
	vectors, err := appCtx.Embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		slog.Error("failed to embed query", "error", err)
		return err
	}

	var filter map[string]string
	if docID != "" {
		filter = map[string]string{"document_id": docID}
	}

	hits, searchErr := appCtx.Vectors.Search(ctx, collection, vectors[0], limit, filter)

	status := audit.StatusSuccess
	if searchErr != nil {
		status = audit.StatusFailure
	}
	// Audit delivery failures are logged by the recorder and must not fail
	// the search itself.
	_, _ = appCtx.Recorder.Record(ctx, audit.Event{
		ActorID:     actor,
		ActionType:  audit.ActionSearch,
		ResourceRef: collection,
		Prompt:      query,
		Latency:     time.Since(start),
		Status:      status,
		Err:         searchErr,
	})
	if searchErr != nil {
		return searchErr
	}

	if len(hits) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, hit := range hits {
		fmt.Printf("%d. chunk %s (score %.3f)\n", i+1, hit.ChunkID, hit.Score)
		if text := hit.Payload["text"]; text != "" {
			fmt.Printf("   %s\n", excerptLine(text, 200))
		}
	}
	return nil
}

// excerptLine truncates a payload text to a single printable line.
func excerptLine(s string, limit int) string {
	runes := []rune(s)
	if len(runes) > limit {
		s = string(runes[:limit]) + "..."
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			r = ' '
		}
		out = append(out, r)
	}
	return string(out)
}
