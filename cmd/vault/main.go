package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/wongivan852/legal-financial-ai-vault/cmd/vault/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.Command{
		Name:  "vault",
		Usage: "Legal document ingestion and analysis over local model backends",
		Commands: []*cli.Command{
			{
				Name:  "document",
				Usage: "Document management commands",
				Commands: []*cli.Command{
					{
						Name:  "ingest",
						Usage: "Normalize, chunk and vectorize a document",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "Path to the environment file",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "file",
								Usage:    "Path to the source file",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "format",
								Usage: "Source format (pdf/docx/txt/xml, default from file extension)",
							},
							&cli.StringFlag{
								Name:  "type",
								Usage: "Document type label (for example contract, regulation)",
							},
							&cli.StringFlag{
								Name:  "actor",
								Usage: "Actor recorded in the audit trail",
							},
						},
						Action: commands.DocumentIngestAction,
					},
					{
						Name:  "show",
						Usage: "Show a stored document and its analyses",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "Path to the environment file",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "id",
								Usage:    "Document ID",
								Required: true,
							},
						},
						Action: commands.DocumentShowAction,
					},
				},
			},
			{
				Name:  "analyze",
				Usage: "Document analysis commands",
				Commands: []*cli.Command{
					{
						Name:  "run",
						Usage: "Run an analysis agent over a document",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "Path to the environment file",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "doc-id",
								Usage:    "Document ID",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "agent",
								Usage: "Agent (contract_review/compliance/router/research)",
								Value: "contract_review",
							},
							&cli.StringFlag{
								Name:     "query",
								Usage:    "Analysis question",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "actor",
								Usage: "Actor recorded in the audit trail",
							},
						},
						Action: commands.AnalyzeRunAction,
					},
					{
						Name:  "research",
						Usage: "Answer a legal research question without a document",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "Path to the environment file",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "query",
								Usage:    "Research question",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "actor",
								Usage: "Actor recorded in the audit trail",
							},
						},
						Action: commands.AnalyzeResearchAction,
					},
					{
						Name:  "compare",
						Usage: "Compare two stored contracts",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "Path to the environment file",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "first",
								Usage:    "First document ID",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "second",
								Usage:    "Second document ID",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "actor",
								Usage: "Actor recorded in the audit trail",
							},
						},
						Action: commands.AnalyzeCompareAction,
					},
					{
						Name:  "key-terms",
						Usage: "Extract the key terms of a stored document",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "Path to the environment file",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "doc-id",
								Usage:    "Document ID",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "actor",
								Usage: "Actor recorded in the audit trail",
							},
						},
						Action: commands.AnalyzeKeyTermsAction,
					},
					{
						Name:  "classify",
						Usage: "Classify a stored document by legal category",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "Path to the environment file",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "doc-id",
								Usage:    "Document ID",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "actor",
								Usage: "Actor recorded in the audit trail",
							},
						},
						Action: commands.AnalyzeClassifyAction,
					},
				},
			},
			{
				Name:  "search",
				Usage: "Similarity search over a vector collection",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "Path to the environment file",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:     "query",
						Usage:    "Search query",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "collection",
						Usage: "Collection name (default from configuration)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 5,
					},
					&cli.StringFlag{
						Name:  "doc-id",
						Usage: "Restrict results to one document",
					},
					&cli.StringFlag{
						Name:  "actor",
						Usage: "Actor recorded in the audit trail",
					},
				},
				Action: commands.SearchAction,
			},
			{
				Name:  "backends",
				Usage: "Inference backend commands",
				Commands: []*cli.Command{
					{
						Name:  "status",
						Usage: "Show the health of every configured backend",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "Path to the environment file",
								Value: ".env",
							},
						},
						Action: commands.BackendsStatusAction,
					},
					{
						Name:  "watch",
						Usage: "Run the health probe loop until interrupted",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "Path to the environment file",
								Value: ".env",
							},
						},
						Action: commands.BackendsWatchAction,
					},
				},
			},
			{
				Name:  "audit",
				Usage: "Audit trail commands",
				Commands: []*cli.Command{
					{
						Name:  "purge",
						Usage: "Delete audit records past their retention window",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "Path to the environment file",
								Value: ".env",
							},
						},
						Action: commands.AuditPurgeAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
