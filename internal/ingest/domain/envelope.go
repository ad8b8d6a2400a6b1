package domain

// Source identifies where a webhook originated.
type Source string

const (
	SourceGitHub Source = "github"
	SourceMedium Source = "medium"
	SourceCustom Source = "custom"
)

// Action is the operation the sender intends for the delivered items.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// WebhookEnvelope is the authenticated, parsed request body for the generic
// ingestion endpoint. WebhookID is a sender-supplied correlation label, not a
// uniqueness key.
type WebhookEnvelope struct {
	WebhookID string        `json:"webhook_id"`
	Source    Source        `json:"source"`
	Action    Action        `json:"action"`
	Items     []WebhookItem `json:"items"`
}

// WebhookItem is a source-agnostic payload unit. Title must be non-empty;
// ExternalID is unique within one source.
type WebhookItem struct {
	ExternalID  string         `json:"external_id"`
	Kind        string         `json:"kind"` // project, blog
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Content     string         `json:"content,omitempty"`
	Tags        []string       `json:"tags"`
	URL         string         `json:"url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// CandidateRecord is the normalized output of the processor, ready for the
// downstream store to decide create/update/skip. It is produced fresh per
// item and never mutated afterwards; a new candidate supersedes an old one.
type CandidateRecord struct {
	Name        string   `json:"name"` // at most 50 characters
	SourceType  string   `json:"source_type"`
	URL         string   `json:"url,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags"`
}
