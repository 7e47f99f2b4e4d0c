package inference

import "time"

// AgentType names the specialized inference agents. Each agent is pinned to
// one self-hosted backend.
type AgentType string

const (
	AgentContractReview AgentType = "contract_review"
	AgentCompliance     AgentType = "compliance"
	AgentRouter         AgentType = "router"
	AgentResearch       AgentType = "research"
)

// Backend describes one self-hosted model endpoint.
type Backend struct {
	Name             string
	Endpoint         string
	Model            string
	MaxContextTokens int
	APIKey           string
}

// Message is one turn of a chat prompt.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatRequest carries one prompt to a backend.
type ChatRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// ChatResponse is a completed generation.
type ChatResponse struct {
	Content    string
	Model      string
	TokensUsed int
	Latency    time.Duration
}
