// Package txwire decodes server-built Solana transactions.
package txwire

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/layer-3/solgate/core"
)

// Encoding names the wire format a transaction was decoded from
type Encoding string

const (
	EncodingLegacy    Encoding = "legacy"
	EncodingVersioned Encoding = "versioned"
)

const (
	signatureLength = 64
	versionPrefix   = 0x80
)

var (
	errVersioned   = errors.New("message carries a version prefix")
	errUnversioned = errors.New("message has no version prefix")
)

// DecodeBase64 decodes a base64 transaction, trying the legacy encoding first
// and falling back to the versioned one.
func DecodeBase64(payload string) (*solana.Transaction, Encoding, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, "", core.ErrEmptyPayload
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", core.ErrMalformedPayload, err)
	}

	return Decode(raw)
}

// Decode decodes raw transaction bytes
func Decode(raw []byte) (*solana.Transaction, Encoding, error) {
	tx, legacyErr := decodeLegacy(raw)
	if legacyErr == nil {
		return tx, EncodingLegacy, nil
	}

	tx, versionedErr := decodeVersioned(raw)
	if versionedErr != nil {
		return nil, "", fmt.Errorf("%w: legacy: %v, versioned: %v", core.ErrMalformedPayload, legacyErr, versionedErr)
	}
	return tx, EncodingVersioned, nil
}

func decodeLegacy(raw []byte) (*solana.Transaction, error) {
	prefix, err := messagePrefix(raw)
	if err != nil {
		return nil, err
	}
	if prefix&versionPrefix != 0 {
		return nil, errVersioned
	}
	return decode(raw)
}

func decodeVersioned(raw []byte) (*solana.Transaction, error) {
	prefix, err := messagePrefix(raw)
	if err != nil {
		return nil, err
	}
	if prefix&versionPrefix == 0 {
		return nil, errUnversioned
	}
	if version := prefix &^ versionPrefix; version != 0 {
		return nil, fmt.Errorf("unsupported message version %d", version)
	}
	return decode(raw)
}

func decode(raw []byte) (*solana.Transaction, error) {
	decoder := bin.NewBinDecoder(raw)
	tx, err := solana.TransactionFromDecoder(decoder)
	if err != nil {
		return nil, err
	}
	if rest := decoder.Remaining(); rest > 0 {
		return nil, fmt.Errorf("%d trailing bytes after transaction", rest)
	}
	if len(tx.Message.AccountKeys) == 0 {
		return nil, errors.New("transaction has no account keys")
	}
	return tx, nil
}

// messagePrefix returns the first message byte, which follows the signature list
func messagePrefix(raw []byte) (byte, error) {
	count, size, err := readCompactU16(raw)
	if err != nil {
		return 0, err
	}
	offset := size + count*signatureLength
	if offset >= len(raw) {
		return 0, errors.New("transaction truncated")
	}
	return raw[offset], nil
}

// readCompactU16 reads the shortvec length prefix used by the Solana wire format
func readCompactU16(raw []byte) (int, int, error) {
	value := 0
	for i := 0; i < 3; i++ {
		if i >= len(raw) {
			return 0, 0, errors.New("transaction truncated")
		}
		b := int(raw[i])
		value |= (b & 0x7f) << (7 * i)
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, errors.New("compact-u16 overflow")
}
