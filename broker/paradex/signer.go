package paradex

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Signer signs payload digests on behalf of one exchange account. The curve is
// up to the implementation.
type Signer interface {
	Account() string
	PublicKey() string
	Sign(digest []byte) (string, error)
}

type Domain struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	ChainID string `json:"chainId"`
}

// TypedData is the domain-separated document whose hash gets signed.
type TypedData struct {
	Domain      Domain `json:"domain"`
	PrimaryType string `json:"primaryType"`
	Message     any    `json:"message"`
}

// Digest is Keccak-256 over the canonical JSON form.
func (td TypedData) Digest() ([]byte, error) {
	b, err := json.Marshal(td)
	if err != nil {
		return nil, fmt.Errorf("encode typed data: %w", err)
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	return h.Sum(nil), nil
}

func domain(chainID string) Domain {
	return Domain{Name: "Paradex", Version: "1", ChainID: chainID}
}

type authMessage struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	Body       string `json:"body"`
	Timestamp  string `json:"timestamp"`
	Expiration string `json:"expiration"`
}

func authTypedData(chainID, method, path, body string, ts, exp int64) TypedData {
	return TypedData{
		Domain:      domain(chainID),
		PrimaryType: "Request",
		Message: authMessage{
			Method:     method,
			Path:       path,
			Body:       body,
			Timestamp:  strconv.FormatInt(ts, 10),
			Expiration: strconv.FormatInt(exp, 10),
		},
	}
}

type onboardingMessage struct {
	Action string `json:"action"`
}

func onboardingTypedData(chainID string) TypedData {
	return TypedData{
		Domain:      domain(chainID),
		PrimaryType: "Constant",
		Message:     onboardingMessage{Action: "Onboarding"},
	}
}

type orderMessage struct {
	Timestamp string `json:"timestamp"`
	Market    string `json:"market"`
	Side      string `json:"side"`
	OrderType string `json:"orderType"`
	Size      string `json:"size"`
	Price     string `json:"price"`
}

func orderTypedData(chainID string, ts int64, o orderPayload) TypedData {
	return TypedData{
		Domain:      domain(chainID),
		PrimaryType: "Order",
		Message: orderMessage{
			Timestamp: strconv.FormatInt(ts, 10),
			Market:    o.Market,
			Side:      o.Side,
			OrderType: o.Type,
			Size:      o.Size,
			Price:     o.Price,
		},
	}
}

func sign(s Signer, td TypedData) (string, error) {
	digest, err := td.Digest()
	if err != nil {
		return "", err
	}
	sig, err := s.Sign(digest)
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", td.PrimaryType, err)
	}
	return sig, nil
}

// KeySigner signs with an ed25519 key. Useful against testnets and fakes;
// production accounts plug their own curve in through Signer.
type KeySigner struct {
	account string
	key     ed25519.PrivateKey
}

// NewKeySigner builds a signer from a 32-byte hex seed ("0x" prefix optional).
func NewKeySigner(account, seedHex string) (*KeySigner, error) {
	if account == "" {
		return nil, errors.New("account address is required")
	}
	seed, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(seedHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &KeySigner{account: account, key: ed25519.NewKeyFromSeed(seed)}, nil
}

func (k *KeySigner) Account() string { return k.account }

func (k *KeySigner) PublicKey() string {
	return "0x" + hex.EncodeToString(k.key.Public().(ed25519.PublicKey))
}

func (k *KeySigner) Sign(digest []byte) (string, error) {
	return "0x" + hex.EncodeToString(ed25519.Sign(k.key, digest)), nil
}
