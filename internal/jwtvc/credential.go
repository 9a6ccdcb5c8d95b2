package jwtvc

import (
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mitchellh/mapstructure"
)

const (
	ContextCredentialsV1 = "https://www.w3.org/2018/credentials/v1"

	TypeVerifiableCredential   = "VerifiableCredential"
	TypeVerifiablePresentation = "VerifiablePresentation"
)

var ErrMalformed = errors.New("malformed credential token")

// Credential - неподписанный конверт VC. CredentialSubject может содержать "id" субъекта.
type Credential struct {
	ID                string
	Context           []string
	Type              []string
	Issuer            string
	IssuanceDate      time.Time
	CredentialSubject map[string]any
}

// CredentialBody - содержимое claim "vc" в JWT.
type CredentialBody struct {
	Context           []string       `json:"@context" mapstructure:"@context"`
	Type              []string       `json:"type" mapstructure:"type"`
	CredentialSubject map[string]any `json:"credentialSubject" mapstructure:"credentialSubject"`
}

type CredentialClaims struct {
	VC CredentialBody `json:"vc"`
	jwt.RegisteredClaims
}

// DecodedCredential - результат декодирования JWT без проверки подписи.
// Пока VerifyCredential не вернул Verified, содержимому доверять нельзя.
type DecodedCredential struct {
	Token        string
	ID           string
	Issuer       string
	Subject      string
	IssuanceDate time.Time
	Body         CredentialBody
	Payload      jwt.MapClaims
}

// Claims returns the credentialSubject claim set (subject id lives in Subject).
func (d *DecodedCredential) Claims() map[string]any {
	if d.Body.CredentialSubject == nil {
		return map[string]any{}
	}
	return d.Body.CredentialSubject
}

// SignCredential кодирует VC в JWT (формат did-jwt-vc): issuer → iss, credentialSubject.id → sub,
// issuanceDate → nbf, id → jti.
func SignCredential(c Credential, key *btcec.PrivateKey) (string, error) {
	if c.Issuer == "" {
		return "", errors.New("credential issuer is required")
	}

	subject := make(map[string]any, len(c.CredentialSubject))
	var subjectID string
	for k, v := range c.CredentialSubject {
		if k == "id" {
			subjectID, _ = v.(string)
			continue
		}
		subject[k] = v
	}

	claims := CredentialClaims{
		VC: CredentialBody{
			Context:           withDefault(c.Context, ContextCredentialsV1),
			Type:              withDefault(c.Type, TypeVerifiableCredential),
			CredentialSubject: subject,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.Issuer,
			Subject:   subjectID,
			NotBefore: jwt.NewNumericDate(c.IssuanceDate),
			ID:        c.ID,
		},
	}

	token := jwt.NewWithClaims(SigningMethodRecoverable, claims)
	return token.SignedString(key)
}

// DecodeCredential разбирает JWT VC без проверки подписи.
// Содержимому нельзя доверять, пока токен не прошёл Verifier.VerifyCredential.
func DecodeCredential(token string) (*DecodedCredential, error) {
	payload, err := parseUnverified(token)
	if err != nil {
		return nil, err
	}

	raw, ok := payload["vc"]
	if !ok {
		return nil, fmt.Errorf("%w: missing vc claim", ErrMalformed)
	}

	var body CredentialBody
	if err := decodeClaim(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: vc claim: %v", ErrMalformed, err)
	}

	d := &DecodedCredential{
		Token:   token,
		Body:    body,
		Payload: payload,
	}
	d.Issuer, _ = payload.GetIssuer()
	d.Subject, _ = payload.GetSubject()
	d.ID, _ = payload["jti"].(string)
	if nbf, err := payload.GetNotBefore(); err == nil && nbf != nil {
		d.IssuanceDate = nbf.Time
	}
	return d, nil
}

func parseUnverified(token string) (jwt.MapClaims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformed)
	}

	payload := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return payload, nil
}

func decodeClaim(raw any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

func withDefault(values []string, def string) []string {
	if len(values) == 0 {
		return []string{def}
	}
	return values
}
