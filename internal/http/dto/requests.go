package dto

import (
	"encoding/json"
	"errors"
	"strings"
)

type NonceRequest struct {
	Address string `json:"address"`
}

func (r NonceRequest) Validate() error {
	if strings.TrimSpace(r.Address) == "" {
		return errors.New("address required")
	}
	return nil
}

type VerifyWalletRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

func (r VerifyWalletRequest) Validate() error {
	if strings.TrimSpace(r.Address) == "" || strings.TrimSpace(r.Signature) == "" {
		return errors.New("address and signature required")
	}
	return nil
}

type CreateCitizenRequest struct {
	Alias string `json:"alias,omitempty"`
}

type IssueCredentialRequest struct {
	SubjectDID string         `json:"subjectDid"`
	Claims     map[string]any `json:"claims"`
}

func (r IssueCredentialRequest) Validate() error {
	if strings.TrimSpace(r.SubjectDID) == "" || r.Claims == nil {
		return errors.New("Required fields: subjectDid, claims")
	}
	return nil
}

type VerifyCredentialRequest struct {
	JWT string `json:"jwt"`
}

func (r VerifyCredentialRequest) Validate() error {
	if strings.TrimSpace(r.JWT) == "" {
		return errors.New("Missing field: jwt")
	}
	return nil
}

// DisclosureRequest - requested приходит как RawMessage, чтобы отличать "нет поля" от "не массив".
type DisclosureRequest struct {
	Requested json.RawMessage `json:"requested"`
}

func (r DisclosureRequest) Fields() ([]string, error) {
	fields, ok := parseFieldList(r.Requested)
	if !ok {
		return nil, errors.New("Field 'requested' must be an array")
	}
	return fields, nil
}

type PresentRequest struct {
	JWT       string          `json:"jwt"`
	Requested json.RawMessage `json:"requested"`
}

func (r PresentRequest) Fields() ([]string, error) {
	errRequired := errors.New("Fields 'jwt' and 'requested' required")
	if strings.TrimSpace(r.JWT) == "" || isNull(r.Requested) {
		return nil, errRequired
	}
	fields, ok := parseFieldList(r.Requested)
	if !ok {
		return nil, errors.New("Field 'requested' must be an array")
	}
	return fields, nil
}

type VerifyPresentationRequest struct {
	VP string `json:"vp"`
}

func (r VerifyPresentationRequest) Validate() error {
	if strings.TrimSpace(r.VP) == "" {
		return errors.New("Field 'vp' required")
	}
	return nil
}

// parseFieldList принимает только JSON-массив строк. Пустой массив допустим.
func parseFieldList(raw json.RawMessage) ([]string, bool) {
	if isNull(raw) {
		return nil, false
	}
	var fields []string
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
