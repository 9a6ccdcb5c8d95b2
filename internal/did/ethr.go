package did

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec"

	"github.com/pixelgenesis/backend/internal/eth"
)

const (
	MethodEthr = "ethr"

	ContextDIDv1      = "https://www.w3.org/ns/did/v1"
	ContextSecp256k1R = "https://w3id.org/security/suites/secp256k1recovery-2020/v2"

	VerificationMethodRecovery = "EcdsaSecp256k1RecoveryMethod2020"
)

// chainIDs - сети, известные did:ethr. Пустая сеть означает mainnet.
var chainIDs = map[string]int64{
	"":        1,
	"mainnet": 1,
	"goerli":  5,
	"sepolia": 11155111,
	"polygon": 137,
	"amoy":    80002,
}

var ErrNotEthrDID = errors.New("not a did:ethr identifier")

// EthrDID - разобранный did:ethr:[<network>:]<address|publicKey>.
type EthrDID struct {
	Network   string
	Address   string // EIP-55
	PublicKey string // hex, только для public-key DID
}

func (d EthrDID) String() string {
	id := d.Address
	if d.PublicKey != "" {
		id = d.PublicKey
	}
	if d.Network == "" || d.Network == "mainnet" {
		return "did:ethr:" + id
	}
	return "did:ethr:" + d.Network + ":" + id
}

// ChainID returns the EIP-155 chain id of the DID's network.
func (d EthrDID) ChainID() (int64, error) {
	id, ok := chainIDs[d.Network]
	if !ok {
		return 0, fmt.Errorf("unsupported did:ethr network %q", d.Network)
	}
	return id, nil
}

// ParseEthr разбирает did:ethr. Идентификатор может быть адресом (20 байт)
// или сжатым публичным ключом (33 байта); в обоих случаях вычисляется адрес.
func ParseEthr(did string) (EthrDID, error) {
	parts := strings.Split(did, ":")
	if len(parts) < 3 || parts[0] != "did" || parts[1] != MethodEthr {
		return EthrDID{}, ErrNotEthrDID
	}

	var network, id string
	switch len(parts) {
	case 3:
		id = parts[2]
	case 4:
		network, id = parts[2], parts[3]
	default:
		return EthrDID{}, fmt.Errorf("%w: %s", ErrNotEthrDID, did)
	}

	raw, err := eth.DecodeHex(id)
	if err != nil {
		return EthrDID{}, fmt.Errorf("invalid did:ethr identifier: %w", err)
	}

	out := EthrDID{Network: network}
	switch len(raw) {
	case eth.AddressLength:
		out.Address = eth.ChecksumAddress(raw)
	case btcec.PubKeyBytesLenCompressed:
		pub, err := btcec.ParsePubKey(raw, btcec.S256())
		if err != nil {
			return EthrDID{}, fmt.Errorf("invalid did:ethr public key: %w", err)
		}
		out.Address = eth.PubkeyToAddress(pub)
		out.PublicKey = "0x" + strings.ToLower(strings.TrimPrefix(id, "0x"))
	default:
		return EthrDID{}, fmt.Errorf("invalid did:ethr identifier length: %d", len(raw))
	}
	return out, nil
}

// Document - DID документ did:ethr без on-chain изменений (ключ = адрес контроллера).
type Document struct {
	Context            []string             `json:"@context"`
	ID                 string               `json:"id"`
	VerificationMethod []VerificationMethod `json:"verificationMethod"`
	Authentication     []string             `json:"authentication"`
	AssertionMethod    []string             `json:"assertionMethod"`
}

type VerificationMethod struct {
	ID                  string `json:"id"`
	Type                string `json:"type"`
	Controller          string `json:"controller"`
	BlockchainAccountID string `json:"blockchainAccountId"`
}

// DefaultDocument строит документ для did:ethr, который ещё не менялся в реестре.
func DefaultDocument(did string) (*Document, error) {
	parsed, err := ParseEthr(did)
	if err != nil {
		return nil, err
	}
	chainID, err := parsed.ChainID()
	if err != nil {
		return nil, err
	}

	controller := did + "#controller"
	return &Document{
		Context: []string{ContextDIDv1, ContextSecp256k1R},
		ID:      did,
		VerificationMethod: []VerificationMethod{{
			ID:                  controller,
			Type:                VerificationMethodRecovery,
			Controller:          did,
			BlockchainAccountID: fmt.Sprintf("eip155:%d:%s", chainID, parsed.Address),
		}},
		Authentication:  []string{controller},
		AssertionMethod: []string{controller},
	}, nil
}
