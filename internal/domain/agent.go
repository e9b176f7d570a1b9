package domain

import "time"

// AgentStatus is an agent's current presence.
type AgentStatus string

const (
	AgentOnline  AgentStatus = "online"
	AgentOffline AgentStatus = "offline"
)

// Agent is the presence view the delivery subsystem reads: just enough
// to decide whether to attempt delivery and how to sign the payload.
type Agent struct {
	ID         string      `json:"id"`
	Status     AgentStatus `json:"status"`
	WebhookURL string      `json:"webhook_url"`
	Secret     string      `json:"secret,omitempty"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
