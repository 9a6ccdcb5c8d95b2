package models

import "time"

// Well-known aliases
const (
	AliasIssuer = "issuer"
)

type Identifier struct {
	DID             string    `json:"did"`
	Alias           *string   `json:"alias,omitempty"`
	Provider        string    `json:"provider"` // did:ethr:sepolia
	ControllerKeyID string    `json:"controllerKeyId"`
	Keys            []Key     `json:"keys"`
	Services        []Service `json:"services"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Key - публичная часть ключа. Приватная часть хранится отдельно (private_keys).
type Key struct {
	KID          string `json:"kid"`
	KMS          string `json:"kms"`  // local
	Type         string `json:"type"` // Secp256k1
	PublicKeyHex string `json:"publicKeyHex"`
	DID          string `json:"-"`
}

type Service struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// HasAlias reports whether the identifier carries exactly this alias.
func (i *Identifier) HasAlias(alias string) bool {
	return i.Alias != nil && *i.Alias == alias
}
