package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/wongivan852/legal-financial-ai-vault/internal/core/audit"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/chunk"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/document"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/embedding"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/inference"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/vectorstore"
)

const (
	// promptReserve absorbs chat template overhead and tokenizer drift when
	// budgeting a backend's context window.
	promptReserve = 128
	// referenceLimit caps how many reference passages are pulled from the
	// agent's collection.
	referenceLimit = 3
	// classifyExcerptChars is how much of a document the router agent sees.
	classifyExcerptChars = 5000
	// compareExcerptChars bounds each side of a contract comparison.
	compareExcerptChars = 15000
	// keyTermsExcerptChars bounds the contract excerpt for term extraction.
	keyTermsExcerptChars = 20000
	// fallbackMaxTokens and fallbackTemperature back agents that do not pin
	// their own sampling parameters.
	fallbackMaxTokens   = 4096
	fallbackTemperature = 0.3
)

// Dispatcher routes one chat request to an agent's backend.
type Dispatcher interface {
	Dispatch(ctx context.Context, agent inference.AgentType, req inference.ChatRequest) (*inference.ChatResponse, error)
	Backend(agent inference.AgentType) (inference.Backend, bool)
}

// DocumentStore loads persisted documents and chunks and stores results.
type DocumentStore interface {
	GetDocument(ctx context.Context, id uuid.UUID) (*document.Document, error)
	GetChunks(ctx context.Context, documentID uuid.UUID) ([]chunk.Chunk, error)
	SaveAnalysis(ctx context.Context, a *Analysis) error
}

// Service is the RAG orchestrator: it selects document chunks within the
// backend's context budget, enriches prompts with reference passages from the
// agent's collection, dispatches sequentially and aggregates the results.
type Service struct {
	store      DocumentStore
	dispatcher Dispatcher
	recorder   *audit.Recorder
	tokens     TokenCounter
	embedder   embedding.Embedder
	vectors    vectorstore.Store
	// docCollection holds the ingested document vectors used for semantic
	// chunk selection.
	docCollection string
	// defaultMaxTokens and defaultTemperature apply to agents whose spec
	// leaves the corresponding field unset.
	defaultMaxTokens   int
	defaultTemperature float64
	logger             *slog.Logger
	now                func() time.Time
}

type ServiceOption func(*Service)

// WithVectorSearch enables semantic chunk selection and reference retrieval.
func WithVectorSearch(embedder embedding.Embedder, store vectorstore.Store, docCollection string) ServiceOption {
	return func(s *Service) {
		s.embedder = embedder
		s.vectors = store
		s.docCollection = docCollection
	}
}

// WithDefaultParams overrides the fallback sampling parameters used by
// agents that do not pin their own.
func WithDefaultParams(maxTokens int, temperature float64) ServiceOption {
	return func(s *Service) {
		if maxTokens > 0 {
			s.defaultMaxTokens = maxTokens
		}
		if temperature > 0 {
			s.defaultTemperature = temperature
		}
	}
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(store DocumentStore, dispatcher Dispatcher, recorder *audit.Recorder, tokens TokenCounter, opts ...ServiceOption) *Service {
	s := &Service{
		store:              store,
		dispatcher:         dispatcher,
		recorder:           recorder,
		tokens:             tokens,
		defaultMaxTokens:   fallbackMaxTokens,
		defaultTemperature: fallbackTemperature,
		logger:             slog.Default(),
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze runs one agent over a stored document. Chunks that do not fit the
// backend's context window in one shot are dispatched sequentially and the
// responses aggregated in document order. Any dispatch failure fails the
// whole analysis; the per-chunk audit trail records how far it got.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*Analysis, error) {
	spec, ok := Spec(req.Agent)
	if !ok {
		return nil, fmt.Errorf("%w: %q", inference.ErrUnknownAgent, req.Agent)
	}
	spec = s.resolveSpec(spec)

	doc, err := s.store.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", req.DocumentID, err)
	}
	chunks, err := s.store.GetChunks(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("load chunks for %s: %w", req.DocumentID, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoChunks, req.DocumentID)
	}

	references := s.referenceContext(ctx, req.Query, spec.Collection)
	system := spec.SystemPrompt
	if references != "" {
		system += "\n\nRelevant reference material:\n" + references
	}

	budget := s.chunkBudget(spec, system, req.Query)
	selected := s.selectChunks(ctx, doc, chunks, req.Query, budget)

	var (
		parts      []string
		tokensUsed int
		model      string
	)
	for i, c := range selected {
		prompt := req.Query
		if len(selected) > 1 {
			prompt = fmt.Sprintf("%s\n\nDocument excerpt (part %d of %d):\n%s", req.Query, i+1, len(selected), c.Text)
		} else {
			prompt = fmt.Sprintf("%s\n\nDocument:\n%s", req.Query, c.Text)
		}

		resp, err := s.dispatcher.Dispatch(ctx, spec.Agent, inference.ChatRequest{
			Messages: []inference.Message{
				{Role: inference.RoleSystem, Content: system},
				{Role: inference.RoleUser, Content: prompt},
			},
			MaxTokens:   spec.MaxTokens,
			Temperature: spec.Temperature,
		})
		s.auditDispatch(ctx, req.ActorID, spec.Agent, chunkRef(req.DocumentID, c), prompt, resp, err)
		if err != nil {
			return nil, fmt.Errorf("dispatch chunk %d: %w", c.Ordinal, err)
		}

		parts = append(parts, resp.Content)
		tokensUsed += resp.TokensUsed
		model = resp.Model
	}

	result := aggregate(parts)
	a := &Analysis{
		ID:         uuid.New(),
		DocumentID: req.DocumentID,
		Agent:      req.Agent,
		Query:      req.Query,
		Result:     result,
		TokensUsed: tokensUsed,
		ChunksUsed: len(selected),
		Model:      model,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.SaveAnalysis(ctx, a); err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}

	s.logger.Info("analysis completed",
		"document_id", req.DocumentID,
		"agent", string(req.Agent),
		"chunks_used", len(selected),
		"tokens_used", tokensUsed,
	)
	return a, nil
}

// Research answers a legal question from reference collections alone, with
// no uploaded document involved.
func (s *Service) Research(ctx context.Context, query, actorID string) (*Analysis, error) {
	spec, _ := Spec(inference.AgentResearch)

	system := spec.SystemPrompt
	if references := s.referenceContext(ctx, query, spec.Collection); references != "" {
		system += "\n\nRelevant reference material:\n" + references
	}
	return s.singleDispatch(ctx, spec, actorID, uuid.Nil, system, query, query)
}

// Compare reviews two contracts side by side with the contract review agent.
func (s *Service) Compare(ctx context.Context, firstID, secondID uuid.UUID, actorID string) (*Analysis, error) {
	spec, _ := Spec(inference.AgentContractReview)

	first, err := s.store.GetDocument(ctx, firstID)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", firstID, err)
	}
	second, err := s.store.GetDocument(ctx, secondID)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", secondID, err)
	}

	prompt := fmt.Sprintf(`Compare these two contracts and identify:
1. Key differences in terms and conditions
2. Differences in obligations or liabilities
3. Which contract is more favorable and why

### Contract A:
%s

### Contract B:
%s

Provide a detailed comparison with specific clause references.`,
		excerpt(first.FullText(), compareExcerptChars),
		excerpt(second.FullText(), compareExcerptChars))

	query := fmt.Sprintf("compare %s with %s", firstID, secondID)
	return s.singleDispatch(ctx, spec, actorID, firstID, spec.SystemPrompt, prompt, query)
}

// ExtractKeyTerms pulls the contract's key commercial and legal terms.
func (s *Service) ExtractKeyTerms(ctx context.Context, documentID uuid.UUID, actorID string) (*Analysis, error) {
	spec, _ := Spec(inference.AgentContractReview)

	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", documentID, err)
	}

	prompt := fmt.Sprintf(`Extract and summarize the following key terms from this contract:
1. Parties involved
2. Contract duration and dates
3. Payment terms
4. Termination clauses
5. Liability limitations
6. Governing law and jurisdiction

Contract:
%s

Provide a structured summary with clear sections.`, excerpt(doc.FullText(), keyTermsExcerptChars))

	return s.singleDispatch(ctx, spec, actorID, documentID, spec.SystemPrompt, prompt, "extract key terms")
}

// Classify routes a document to a category and recommended analysis using a
// leading excerpt, keeping the call cheap.
func (s *Service) Classify(ctx context.Context, documentID uuid.UUID, actorID string) (*Analysis, error) {
	spec, _ := Spec(inference.AgentRouter)

	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", documentID, err)
	}

	prompt := fmt.Sprintf("Classify this document:\n\n%s", excerpt(doc.FullText(), classifyExcerptChars))
	return s.singleDispatch(ctx, spec, actorID, documentID, spec.SystemPrompt, prompt, "classify document")
}

// resolveSpec fills unset sampling parameters from the service defaults.
func (s *Service) resolveSpec(spec AgentSpec) AgentSpec {
	if spec.MaxTokens == 0 {
		spec.MaxTokens = s.defaultMaxTokens
	}
	if spec.Temperature == 0 {
		spec.Temperature = s.defaultTemperature
	}
	return spec
}

func (s *Service) singleDispatch(ctx context.Context, spec AgentSpec, actorID string, documentID uuid.UUID, system, prompt, query string) (*Analysis, error) {
	spec = s.resolveSpec(spec)
	resp, err := s.dispatcher.Dispatch(ctx, spec.Agent, inference.ChatRequest{
		Messages: []inference.Message{
			{Role: inference.RoleSystem, Content: system},
			{Role: inference.RoleUser, Content: prompt},
		},
		MaxTokens:   spec.MaxTokens,
		Temperature: spec.Temperature,
	})
	ref := documentID.String()
	if documentID == uuid.Nil {
		ref = ""
	}
	s.auditDispatch(ctx, actorID, spec.Agent, ref, prompt, resp, err)
	if err != nil {
		return nil, fmt.Errorf("dispatch %s: %w", spec.Agent, err)
	}

	a := &Analysis{
		ID:         uuid.New(),
		DocumentID: documentID,
		Agent:      spec.Agent,
		Query:      query,
		Result:     resp.Content,
		TokensUsed: resp.TokensUsed,
		ChunksUsed: 0,
		Model:      resp.Model,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.SaveAnalysis(ctx, a); err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}
	return a, nil
}

// chunkBudget computes how many prompt tokens remain for document chunks
// after the system prompt, the query, the generation allowance and a fixed
// reserve. A non-positive result still admits one chunk per dispatch.
func (s *Service) chunkBudget(spec AgentSpec, system, query string) int {
	backend, ok := s.dispatcher.Backend(spec.Agent)
	if !ok || backend.MaxContextTokens <= 0 {
		return 0
	}
	return backend.MaxContextTokens - spec.MaxTokens - s.tokens.Count(system) - s.tokens.Count(query) - promptReserve
}

// selectChunks picks the chunks to dispatch. With no budget every chunk is
// sent. Within a budget, selection is semantic (ranked by similarity to the
// query against the document's own vectors) when vector search is wired,
// falling back to sequential order; the result is always re-sorted into
// document order.
func (s *Service) selectChunks(ctx context.Context, doc *document.Document, chunks []chunk.Chunk, query string, budget int) []chunk.Chunk {
	if budget <= 0 {
		return chunks
	}

	ordered := chunks
	if ranked, ok := s.rankBySimilarity(ctx, doc, chunks, query); ok {
		ordered = ranked
	}

	var (
		selected  []chunk.Chunk
		remaining = budget
	)
	for _, c := range ordered {
		cost := s.tokens.Count(c.Text)
		if cost > remaining && len(selected) > 0 {
			continue
		}
		selected = append(selected, c)
		remaining -= cost
	}

	sort.Slice(selected, func(i, j int) bool { return selected[i].Ordinal < selected[j].Ordinal })
	if len(selected) < len(chunks) {
		s.logger.Info("context budget trims chunk set",
			"document_id", doc.ID,
			"selected", len(selected),
			"total", len(chunks),
			"budget_tokens", budget,
		)
	}
	return selected
}

// rankBySimilarity reorders chunks by similarity to the query using the
// document's own stored vectors. It reports false when vector search is not
// wired or fails, leaving selection sequential.
func (s *Service) rankBySimilarity(ctx context.Context, doc *document.Document, chunks []chunk.Chunk, query string) ([]chunk.Chunk, bool) {
	if s.vectors == nil || s.embedder == nil || query == "" {
		return nil, false
	}

	vecs, err := s.embedder.EmbedBatch(ctx, []string{query})
	if err != nil || len(vecs) != 1 {
		s.logger.Warn("query embedding failed, selecting chunks sequentially", "error", err)
		return nil, false
	}
	hits, err := s.vectors.Search(ctx, s.docCollection, vecs[0], len(chunks), map[string]string{
		"document_id": doc.ID.String(),
	})
	if err != nil || len(hits) == 0 {
		if err != nil {
			s.logger.Warn("vector search failed, selecting chunks sequentially", "error", err)
		}
		return nil, false
	}

	rank := make(map[uuid.UUID]int, len(hits))
	for i, h := range hits {
		rank[h.ChunkID] = i
	}
	ranked := append([]chunk.Chunk(nil), chunks...)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, iok := rank[ranked[i].ID]
		rj, jok := rank[ranked[j].ID]
		if iok != jok {
			return iok
		}
		return ri < rj
	})
	return ranked, true
}

// referenceContext pulls supporting passages from the agent's reference
// collection. Failures degrade to an empty context, never to a hard error.
func (s *Service) referenceContext(ctx context.Context, query, collection string) string {
	if s.vectors == nil || s.embedder == nil || query == "" || collection == "" {
		return ""
	}

	vecs, err := s.embedder.EmbedBatch(ctx, []string{query})
	if err != nil || len(vecs) != 1 {
		return ""
	}
	hits, err := s.vectors.Search(ctx, collection, vecs[0], referenceLimit, nil)
	if err != nil {
		s.logger.Warn("reference retrieval failed", "collection", collection, "error", err)
		return ""
	}

	var sb strings.Builder
	n := 0
	for _, h := range hits {
		text := h.Payload["text"]
		if text == "" {
			continue
		}
		n++
		fmt.Fprintf(&sb, "### Reference %d (Score: %.3f):\n%s\n", n, h.Score, text)
	}
	return sb.String()
}

func (s *Service) auditDispatch(ctx context.Context, actorID string, agent inference.AgentType, resourceRef, prompt string, resp *inference.ChatResponse, dispatchErr error) {
	event := audit.Event{
		ActorID:     actorID,
		ActionType:  audit.ActionInferenceDispatch,
		ResourceRef: resourceRef,
		AgentType:   string(agent),
		Prompt:      prompt,
		Status:      audit.StatusSuccess,
	}
	if dispatchErr != nil {
		event.Status = audit.StatusFailure
		event.Err = dispatchErr
	} else {
		event.Response = resp.Content
		event.TokensUsed = resp.TokensUsed
		event.Latency = resp.Latency
	}
	// Audit delivery failures are logged by the recorder and must not fail
	// the dispatch itself.
	_, _ = s.recorder.Record(ctx, event)
}

func chunkRef(documentID uuid.UUID, c chunk.Chunk) string {
	return fmt.Sprintf("%s#chunk-%d", documentID, c.Ordinal)
}

func aggregate(parts []string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	var sb strings.Builder
	for i, p := range parts {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "### Part %d\n\n%s", i+1, p)
	}
	return sb.String()
}

// excerpt truncates s to at most n bytes on a rune boundary.
func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
