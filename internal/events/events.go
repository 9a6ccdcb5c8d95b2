package events

import "context"

// Channel - канал Redis pub/sub для событий идентичности.
const Channel = "events:identity"

// Event types
const (
	EventWalletVerified       = "wallet_verified"
	EventIdentifierCreated    = "identifier_created"
	EventCredentialIssued     = "credential_issued"
	EventPresentationCreated  = "presentation_created"
	EventPresentationVerified = "presentation_verified"
)

type Event struct {
	Type    string         `json:"type"`
	Address string         `json:"address,omitempty"` // кошелёк, которому адресовано событие
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
