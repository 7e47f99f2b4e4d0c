package analysis

import "github.com/wongivan852/legal-financial-ai-vault/internal/core/inference"

// Well-known reference collections in the vector store.
const (
	CollectionLegalContracts = "legal_contracts"
	CollectionCaseLaw        = "case_law"
	CollectionLegalDocuments = "legal_documents"
	CollectionRegulations    = "regulations"
)

// AgentSpec fixes an agent's prompt, sampling parameters and the reference
// collection consulted for supporting context. Zero sampling fields follow
// the service's configured defaults.
type AgentSpec struct {
	Agent        inference.AgentType
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Collection   string
}

var agentSpecs = map[inference.AgentType]AgentSpec{
	inference.AgentContractReview: {
		Agent: inference.AgentContractReview,
		SystemPrompt: `You are an expert legal AI assistant specializing in contract review.
Your role is to analyze contracts and identify:
1. Key obligations and deadlines
2. Potential legal risks or unfavorable terms
3. Missing clauses or ambiguous language
4. Recommended actions or clarifications

Provide clear, structured analysis with specific clause references.
Use professional legal terminology but remain accessible.`,
		Temperature: 0.2,
		MaxTokens:   4096,
		Collection:  CollectionLegalContracts,
	},
	inference.AgentCompliance: {
		Agent: inference.AgentCompliance,
		SystemPrompt: `You are an expert compliance analyst specializing in legal and financial regulations.
Your role is to:
1. Identify regulatory compliance issues
2. Assess risks related to non-compliance
3. Recommend corrective actions
4. Reference relevant regulations and standards

Focus on major regulations like GDPR, SOX, HIPAA, and industry-specific requirements.
Provide clear risk scores and actionable recommendations.`,
		Temperature: 0.2,
		MaxTokens:   4096,
		Collection:  CollectionRegulations,
	},
	inference.AgentRouter: {
		Agent: inference.AgentRouter,
		SystemPrompt: `You are a document classification specialist.
Classify legal documents into categories and recommend the appropriate analysis type.

Document Categories:
- contract: Legal contracts and agreements
- brief: Legal briefs and case documents
- correspondence: Letters and communications
- regulation: Regulatory documents
- financial: Financial statements and reports
- compliance: Compliance and audit documents

Analysis Recommendations:
- contract_review: For contracts and agreements
- compliance_check: For compliance-related documents
- legal_research: For case law and precedents
- general_analysis: For other documents

Provide classification with confidence scores.`,
		Temperature: 0.1,
		MaxTokens:   512,
		Collection:  CollectionLegalDocuments,
	},
	inference.AgentResearch: {
		Agent: inference.AgentResearch,
		SystemPrompt: `You are a legal research specialist with expertise in case law and precedents.
Your role is to:
1. Analyze legal questions and identify relevant case law
2. Provide citations and precedents
3. Explain legal principles and their applications
4. Summarize relevant statutes and regulations

Provide accurate citations and explain the relevance of each precedent.`,
		// Research leaves sampling unset and follows the service defaults.
		Collection: CollectionCaseLaw,
	},
}

// Spec returns the fixed specification for an agent.
func Spec(agent inference.AgentType) (AgentSpec, bool) {
	spec, ok := agentSpecs[agent]
	return spec, ok
}
