package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/wongivan852/legal-financial-ai-vault/internal/core/analysis"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/inference"
)

// AnalyzeRunAction runs an analysis agent over a stored document.
func AnalyzeRunAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	agent := inference.AgentType(cmd.String("agent"))
	query := cmd.String("query")
	actor := cmd.String("actor")

	if _, ok := analysis.Spec(agent); !ok {
		return fmt.Errorf("unknown agent %q", agent)
	}
	id, err := uuid.Parse(cmd.String("doc-id"))
	if err != nil {
		return fmt.Errorf("invalid document id: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	slog.Info("starting analysis", "documentID", id, "agent", agent)

	result, err := appCtx.Analysis.Analyze(ctx, analysis.AnalyzeRequest{
		DocumentID: id,
		Agent:      agent,
		Query:      query,
		ActorID:    actor,
	})
	if err != nil {
		slog.Error("analysis failed", "error", err)
		return err
	}
	printAnalysis(result)
	return nil
}

// AnalyzeResearchAction answers a legal research question without a document.
func AnalyzeResearchAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	query := cmd.String("query")
	actor := cmd.String("actor")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	result, err := appCtx.Analysis.Research(ctx, query, actor)
	if err != nil {
		slog.Error("research failed", "error", err)
		return err
	}
	printAnalysis(result)
	return nil
}

// AnalyzeCompareAction compares two stored contracts.
func AnalyzeCompareAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	actor := cmd.String("actor")

	firstID, err := uuid.Parse(cmd.String("first"))
	if err != nil {
		return fmt.Errorf("invalid first document id: %w", err)
	}
	secondID, err := uuid.Parse(cmd.String("second"))
	if err != nil {
		return fmt.Errorf("invalid second document id: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	result, err := appCtx.Analysis.Compare(ctx, firstID, secondID, actor)
	if err != nil {
		slog.Error("comparison failed", "error", err)
		return err
	}
	printAnalysis(result)
	return nil
}

// AnalyzeKeyTermsAction extracts the key terms of a stored document.
func AnalyzeKeyTermsAction(ctx context.Context, cmd *cli.Command) error {
	return analyzeDocumentAction(ctx, cmd, func(appCtx *AppContext, id uuid.UUID, actor string) (*analysis.Analysis, error) {
		return appCtx.Analysis.ExtractKeyTerms(ctx, id, actor)
	})
}

// AnalyzeClassifyAction classifies a stored document by legal category.
func AnalyzeClassifyAction(ctx context.Context, cmd *cli.Command) error {
	return analyzeDocumentAction(ctx, cmd, func(appCtx *AppContext, id uuid.UUID, actor string) (*analysis.Analysis, error) {
		return appCtx.Analysis.Classify(ctx, id, actor)
	})
}

func analyzeDocumentAction(ctx context.Context, cmd *cli.Command,
	run func(appCtx *AppContext, id uuid.UUID, actor string) (*analysis.Analysis, error)) error {
	envFile := cmd.String("env")
	actor := cmd.String("actor")

	id, err := uuid.Parse(cmd.String("doc-id"))
	if err != nil {
		return fmt.Errorf("invalid document id: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	result, err := run(appCtx, id, actor)
	if err != nil {
		slog.Error("analysis failed", "error", err)
		return err
	}
	printAnalysis(result)
	return nil
}

func printAnalysis(a *analysis.Analysis) {
	fmt.Printf("Analysis ID:  %s\n", a.ID)
	fmt.Printf("Agent:        %s\n", a.Agent)
	fmt.Printf("Model:        %s\n", a.Model)
	fmt.Printf("Tokens used:  %d\n", a.TokensUsed)
	fmt.Printf("Chunks used:  %d\n", a.ChunksUsed)
	fmt.Println()
	fmt.Println(a.Result)
}
