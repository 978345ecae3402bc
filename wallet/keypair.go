package wallet

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/gagliardetto/solana-go"

	"github.com/layer-3/solgate/core"
)

// Keypair is a wallet backed by a local ed25519 key. It implements every
// optional capability, so adapters always pick the structured sign-in path.
type Keypair struct {
	key       solana.PrivateKey
	connected atomic.Bool
}

// NewKeypair wraps key. The wallet starts disconnected.
func NewKeypair(key solana.PrivateKey) *Keypair {
	return &Keypair{key: key}
}

// GenerateKeypair creates a wallet with a fresh random key
func GenerateKeypair() (*Keypair, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return NewKeypair(key), nil
}

// KeypairFromBase58 loads a wallet from a base58 encoded 64 byte secret key
func KeypairFromBase58(secret string) (*Keypair, error) {
	key, err := solana.PrivateKeyFromBase58(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	return NewKeypair(key), nil
}

// KeypairFromFile loads a wallet from a solana-keygen JSON file
func KeypairFromFile(path string) (*Keypair, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load key file: %w", err)
	}
	return NewKeypair(key), nil
}

func (k *Keypair) Name() string { return "keypair" }

func (k *Keypair) Connected() bool { return k.connected.Load() }

func (k *Keypair) Connect(ctx context.Context) error {
	k.connected.Store(true)
	return nil
}

// Disconnect drops the connection; PublicKey returns nil afterwards
func (k *Keypair) Disconnect() {
	k.connected.Store(false)
}

func (k *Keypair) PublicKey() any {
	if !k.Connected() {
		return nil
	}
	return k.key.PublicKey()
}

// Address returns the base58 account address
func (k *Keypair) Address() string {
	return k.key.PublicKey().String()
}

func (k *Keypair) SignIn(ctx context.Context, challenge core.SignInChallenge) (SignInOutput, error) {
	publicKey := k.key.PublicKey()
	message := []byte(core.BuildMessage(challenge, publicKey.String()))

	signature, err := k.key.Sign(message)
	if err != nil {
		return SignInOutput{}, err
	}

	return SignInOutput{
		Account:       publicKey,
		SignedMessage: message,
		Signature:     signature,
	}, nil
}

func (k *Keypair) SignBytes(ctx context.Context, message []byte) (any, error) {
	return k.key.Sign(message)
}

func (k *Keypair) SignMessage(ctx context.Context, message []byte) (any, error) {
	return k.key.Sign(message)
}

// SignTransaction fills in this key's signature slot, leaving other signers'
// signatures untouched.
func (k *Keypair) SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	signer := k.key.PublicKey()
	required := int(tx.Message.Header.NumRequiredSignatures)
	index := -1
	for i := 0; i < required && i < len(tx.Message.AccountKeys); i++ {
		if tx.Message.AccountKeys[i].Equals(signer) {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("account %s is not a required signer", signer)
	}

	signature, err := k.key.Sign(message)
	if err != nil {
		return nil, err
	}

	signed := *tx
	signed.Signatures = make([]solana.Signature, required)
	copy(signed.Signatures, tx.Signatures)
	signed.Signatures[index] = signature

	return &signed, nil
}
