package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/wongivan852/legal-financial-ai-vault/internal/core/document"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/ingestion"
)

// DocumentIngestAction normalizes a file, persists it and stores its chunk
// vectors.
func DocumentIngestAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("file")
	formatArg := cmd.String("format")
	docType := cmd.String("type")
	actor := cmd.String("actor")
	envFile := cmd.String("env")

	if formatArg == "" {
		formatArg = filepath.Ext(path)
	}
	format, err := document.ParseFormat(formatArg)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	slog.Info("starting document ingestion", "file", path, "format", format)

	metadata := map[string]string{"source_file": filepath.Base(path)}
	if docType != "" {
		metadata["document_type"] = docType
	}

	result, err := appCtx.Ingestion.Ingest(ctx, ingestion.IngestRequest{
		Raw:      raw,
		Format:   format,
		ActorID:  actor,
		Metadata: metadata,
	})
	if err != nil {
		slog.Error("document ingestion failed", "error", err)
		return err
	}

	fmt.Printf("Document ID:  %s\n", result.Document.ID)
	fmt.Printf("Sections:     %d\n", len(result.Document.Sections))
	fmt.Printf("Chunks:       %d\n", result.Chunks)
	fmt.Printf("Word count:   %d\n", result.Document.WordCount)
	fmt.Printf("Vectorized:   %t\n", result.Vectorized)
	if result.Document.Partial {
		fmt.Println("Warning: the source was partially malformed; recovered text only.")
	}
	return nil
}

// DocumentShowAction prints a stored document with its analyses.
func DocumentShowAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	id, err := uuid.Parse(cmd.String("id"))
	if err != nil {
		return fmt.Errorf("invalid document id: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	doc, err := appCtx.Repository.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	vectorized, err := appCtx.Repository.IsVectorized(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("Document ID:  %s\n", doc.ID)
	fmt.Printf("Format:       %s\n", doc.SourceFormat)
	fmt.Printf("Language:     %s\n", doc.Language)
	fmt.Printf("Word count:   %d\n", doc.WordCount)
	fmt.Printf("Vectorized:   %t\n", vectorized)
	fmt.Printf("Created:      %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	for key, value := range doc.Metadata {
		fmt.Printf("  %s: %s\n", key, value)
	}
	fmt.Println("Sections:")
	for _, s := range doc.Sections {
		fmt.Printf("  [%d] %s (%d chars)\n", s.Ordinal, s.Heading, len(s.Body))
	}

	analyses, err := appCtx.Repository.GetAnalyses(ctx, id)
	if err != nil {
		return err
	}
	if len(analyses) > 0 {
		fmt.Println("Analyses:")
		for _, a := range analyses {
			fmt.Printf("  %s  %-16s  %d tokens  %s\n",
				a.CreatedAt.Format("2006-01-02 15:04"), a.Agent, a.TokensUsed, a.ID)
		}
	}
	return nil
}
