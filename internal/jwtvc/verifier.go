package jwtvc

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/lo"
)

// Check names reported in verification results.
const (
	CheckFormat              = "format"
	CheckProof               = "proof"
	CheckValidity            = "validity"
	CheckCredentialProof     = "credentialProof"
	CheckHolderBinding       = "credentialHolderBinding"
	CheckSelectiveDisclosure = "selectiveDisclosure"
)

// AddressResolver возвращает адрес контроллера DID (blockchainAccountId), которым
// проверяется ES256K-R подпись.
type AddressResolver interface {
	ResolveAddress(ctx context.Context, did string) (string, error)
}

// CheckResult - проваленная проверка и её причина.
type CheckResult struct {
	Check string `json:"check"`
	Error string `json:"error"`
}

type CredentialResult struct {
	Verified bool               `json:"verified"`
	Issuer   string             `json:"issuer,omitempty"`
	Subject  string             `json:"subject,omitempty"`
	Checks   []CheckResult      `json:"checks,omitempty"`
	Payload  jwt.MapClaims      `json:"payload,omitempty"`
	Decoded  *DecodedCredential `json:"-"`
}

type PresentationResult struct {
	Verified    bool               `json:"verified"`
	Holder      string             `json:"holder,omitempty"`
	Checks      []CheckResult      `json:"checks,omitempty"`
	Credentials []CredentialResult `json:"credentials,omitempty"`
	Payload     jwt.MapClaims      `json:"payload,omitempty"`
}

type Verifier struct {
	resolver AddressResolver
	leeway   time.Duration
}

func NewVerifier(resolver AddressResolver, leeway time.Duration) *Verifier {
	return &Verifier{resolver: resolver, leeway: leeway}
}

// VerifyCredential проверяет подпись и сроки VC. Невалидная подпись - это Verified=false,
// а не ошибка; ошибка возвращается только при отмене ctx.
func (v *Verifier) VerifyCredential(ctx context.Context, token string) (*CredentialResult, error) {
	res := &CredentialResult{}

	decoded, err := DecodeCredential(token)
	if err != nil {
		res.Checks = append(res.Checks, CheckResult{Check: CheckFormat, Error: err.Error()})
		return res, nil
	}
	res.Decoded = decoded
	res.Issuer = decoded.Issuer
	res.Subject = decoded.Subject
	res.Payload = decoded.Payload

	if check := v.verifyJWT(ctx, token); check != nil {
		res.Checks = append(res.Checks, *check)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Verified = len(res.Checks) == 0
	return res, nil
}

// VerifyPresentation проверяет подпись VP, каждую вложенную VC, привязку holder
// и то, что раскрытые claims являются подмножеством claims вложенных VC.
func (v *Verifier) VerifyPresentation(ctx context.Context, token string) (*PresentationResult, error) {
	res := &PresentationResult{}

	decoded, err := DecodePresentation(token)
	if err != nil {
		res.Checks = append(res.Checks, CheckResult{Check: CheckFormat, Error: err.Error()})
		return res, nil
	}
	res.Holder = decoded.Holder
	res.Payload = decoded.Payload

	if check := v.verifyJWT(ctx, token); check != nil {
		res.Checks = append(res.Checks, *check)
	}

	var embedded []*DecodedCredential
	for i, vcToken := range decoded.Body.VerifiableCredential {
		cr, err := v.VerifyCredential(ctx, vcToken)
		if err != nil {
			return nil, err
		}
		res.Credentials = append(res.Credentials, *cr)

		if !cr.Verified {
			res.Checks = append(res.Checks, CheckResult{
				Check: CheckCredentialProof,
				Error: fmt.Sprintf("verifiableCredential[%d]: %s", i, joinChecks(cr.Checks)),
			})
		}
		if cr.Decoded == nil {
			continue
		}
		embedded = append(embedded, cr.Decoded)

		if cr.Decoded.Subject != "" && cr.Decoded.Subject != decoded.Holder {
			res.Checks = append(res.Checks, CheckResult{
				Check: CheckHolderBinding,
				Error: fmt.Sprintf("verifiableCredential[%d] subject %s is not the holder %s", i, cr.Decoded.Subject, decoded.Holder),
			})
		}
	}

	if err := checkDisclosed(decoded.DisclosedClaims(), embedded); err != nil {
		res.Checks = append(res.Checks, CheckResult{Check: CheckSelectiveDisclosure, Error: err.Error()})
	}

	res.Verified = len(res.Checks) == 0
	return res, nil
}

func (v *Verifier) verifyJWT(ctx context.Context, token string) *CheckResult {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{AlgES256KR}),
		jwt.WithLeeway(v.leeway),
	)

	_, err := parser.Parse(token, func(t *jwt.Token) (interface{}, error) {
		iss, err := t.Claims.GetIssuer()
		if err != nil || iss == "" {
			return nil, errors.New("missing iss claim")
		}
		return v.resolver.ResolveAddress(ctx, iss)
	})
	if err == nil {
		return nil
	}

	check := CheckProof
	if errors.Is(err, jwt.ErrTokenExpired) || errors.Is(err, jwt.ErrTokenNotValidYet) {
		check = CheckValidity
	}
	return &CheckResult{Check: check, Error: err.Error()}
}

// checkDisclosed - каждый раскрытый claim должен дословно присутствовать во вложенной VC.
func checkDisclosed(disclosed map[string]any, credentials []*DecodedCredential) error {
	for k, v := range disclosed {
		found := false
		for _, c := range credentials {
			if orig, ok := c.Claims()[k]; ok && reflect.DeepEqual(orig, v) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("claim %q is not backed by an embedded credential", k)
		}
	}
	return nil
}

func joinChecks(checks []CheckResult) string {
	if len(checks) == 0 {
		return "not verified"
	}
	return strings.Join(lo.Map(checks, func(c CheckResult, _ int) string {
		return c.Check + ": " + c.Error
	}), "; ")
}
