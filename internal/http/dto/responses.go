package dto

import (
	"time"

	"github.com/pixelgenesis/backend/internal/models"
)

type ErrorResponse struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type NonceResponse struct {
	OK    bool   `json:"ok"`
	Nonce string `json:"nonce"`
}

type VerifyWalletResponse struct {
	OK        bool      `json:"ok"`
	Message   string    `json:"message"`
	Address   string    `json:"address"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type SessionResponse struct {
	OK        bool              `json:"ok"`
	Address   string            `json:"address"`
	ExpiresAt time.Time         `json:"expiresAt"`
	Wallet    *models.Wallet    `json:"wallet,omitempty"`
	Activity  []models.AuditLog `json:"activity"`
}

type IdentifierResponse struct {
	OK      bool               `json:"ok"`
	Message string             `json:"message"`
	DID     *models.Identifier `json:"did"`
}

type IdentifierListResponse struct {
	OK    bool                `json:"ok"`
	Count int                 `json:"count"`
	Items []models.Identifier `json:"items"`
}

type DIDDocumentResponse struct {
	OK          bool `json:"ok"`
	DIDDocument any  `json:"didDocument"`
}

type IssueCredentialResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Issuer  string `json:"issuer"`
	VC      string `json:"vc"`
}

type VerifyCredentialResponse struct {
	OK       bool   `json:"ok"`
	Message  string `json:"message"`
	Verified bool   `json:"verified"`
	Results  any    `json:"results"`
}

type DisclosureResponse struct {
	OK      bool                      `json:"ok"`
	Message string                    `json:"message"`
	SDR     *models.DisclosureRequest `json:"sdr"`
}

type PresentResponse struct {
	OK           bool           `json:"ok"`
	Message      string         `json:"message"`
	VP           string         `json:"vp"`
	SharedClaims map[string]any `json:"sharedClaims"`
}

type VerifyPresentationResponse struct {
	OK       bool           `json:"ok"`
	Message  string         `json:"message"`
	Verified bool           `json:"verified"`
	Claims   map[string]any `json:"claims"`
	Results  any            `json:"results"`
}
