package jwtvc

import (
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"github.com/golang-jwt/jwt/v5"
)

// Presentation - неподписанный конверт VP. CredentialSubject содержит только раскрытые claims.
type Presentation struct {
	ID                   string
	Context              []string
	Type                 []string
	Holder               string
	Verifier             []string
	IssuanceDate         time.Time
	VerifiableCredential []string
	CredentialSubject    map[string]any
}

// PresentationBody - содержимое claim "vp" в JWT.
type PresentationBody struct {
	Context              []string       `json:"@context" mapstructure:"@context"`
	Type                 []string       `json:"type" mapstructure:"type"`
	VerifiableCredential []string       `json:"verifiableCredential" mapstructure:"verifiableCredential"`
	CredentialSubject    map[string]any `json:"credentialSubject,omitempty" mapstructure:"credentialSubject"`
}

type PresentationClaims struct {
	VP PresentationBody `json:"vp"`
	jwt.RegisteredClaims
}

// DecodedPresentation - VP JWT без проверки подписи.
type DecodedPresentation struct {
	Token    string
	ID       string
	Holder   string
	Verifier []string
	Body     PresentationBody
	Payload  jwt.MapClaims
}

// DisclosedClaims returns the presentation-level credentialSubject, never nil.
func (d *DecodedPresentation) DisclosedClaims() map[string]any {
	if d.Body.CredentialSubject == nil {
		return map[string]any{}
	}
	return d.Body.CredentialSubject
}

// SignPresentation кодирует VP в JWT: holder → iss, verifier → aud, issuanceDate → nbf.
func SignPresentation(p Presentation, key *btcec.PrivateKey) (string, error) {
	if p.Holder == "" {
		return "", errors.New("presentation holder is required")
	}

	issued := p.IssuanceDate
	if issued.IsZero() {
		issued = time.Now()
	}

	claims := PresentationClaims{
		VP: PresentationBody{
			Context:              withDefault(p.Context, ContextCredentialsV1),
			Type:                 withDefault(p.Type, TypeVerifiablePresentation),
			VerifiableCredential: p.VerifiableCredential,
			CredentialSubject:    p.CredentialSubject,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.Holder,
			Audience:  p.Verifier,
			NotBefore: jwt.NewNumericDate(issued),
			ID:        p.ID,
		},
	}

	token := jwt.NewWithClaims(SigningMethodRecoverable, claims)
	return token.SignedString(key)
}

// DecodePresentation разбирает JWT VP без проверки подписи.
// Содержимому нельзя доверять, пока токен не прошёл Verifier.VerifyPresentation.
func DecodePresentation(token string) (*DecodedPresentation, error) {
	payload, err := parseUnverified(token)
	if err != nil {
		return nil, err
	}

	raw, ok := payload["vp"]
	if !ok {
		return nil, fmt.Errorf("%w: missing vp claim", ErrMalformed)
	}

	var body PresentationBody
	if err := decodeClaim(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: vp claim: %v", ErrMalformed, err)
	}

	d := &DecodedPresentation{
		Token:   token,
		Body:    body,
		Payload: payload,
	}
	d.Holder, _ = payload.GetIssuer()
	d.Verifier, _ = payload.GetAudience()
	d.ID, _ = payload["jti"].(string)
	return d, nil
}
