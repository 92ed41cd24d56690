package domain

// Agent is the singleton automated responder. At most one row exists; it is
// created lazily on first use.
type Agent struct {
	ID   int64  `json:"id"`
	Role string `json:"role"`
}

// AgentRole is the role recorded for the singleton agent.
const AgentRole = "assistant"
