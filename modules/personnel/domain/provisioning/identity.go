package provisioning

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/blake2b"
)

type MaskingMode string

const (
	MaskingLegacy MaskingMode = "legacy"
	MaskingKeyed  MaskingMode = "keyed"
)

var ErrMaskingKeyRequired = errors.New("keyed identity masking requires a key")

// Masker reduces a national identity number to a value that is stored instead of it.
type Masker interface {
	Mask(nin string) string
}

// LegacyMasker drops the two trailing digits of a numeric identity number and re-encodes
// the rest in base 36. Non-numeric input is returned unchanged.
//
// The reduction is an obfuscation, not a one-way function; prefer KeyedMasker where the
// stored keys must not reveal the identity number.
type LegacyMasker struct{}

func (LegacyMasker) Mask(nin string) string {
	nin = strings.TrimSpace(nin)
	n, err := strconv.ParseInt(nin, 10, 64)
	if err != nil {
		return nin
	}
	return strconv.FormatInt(n/100, 36)
}

// KeyedMasker masks with a keyed BLAKE2b-256 digest, truncated to 16 bytes.
type KeyedMasker struct {
	key []byte
}

func NewKeyedMasker(key []byte) (KeyedMasker, error) {
	if len(key) == 0 {
		return KeyedMasker{}, ErrMaskingKeyRequired
	}
	if len(key) > blake2b.Size {
		return KeyedMasker{}, errors.Errorf("identity masking key longer than %d bytes", blake2b.Size)
	}
	return KeyedMasker{key: append([]byte(nil), key...)}, nil
}

func (m KeyedMasker) Mask(nin string) string {
	h, err := blake2b.New256(m.key)
	if err != nil {
		// key length is validated by NewKeyedMasker
		panic(err)
	}
	_, _ = h.Write([]byte(strings.TrimSpace(nin)))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// NewMasker returns the masker for mode; an empty mode selects the legacy scheme.
func NewMasker(mode MaskingMode, key []byte) (Masker, error) {
	switch mode {
	case "", MaskingLegacy:
		return LegacyMasker{}, nil
	case MaskingKeyed:
		return NewKeyedMasker(key)
	default:
		return nil, errors.Errorf("unknown identity masking mode %q", mode)
	}
}

// Identity is the idempotency key of a provisioning record.
func Identity(orgID string, m Masker, nin string) string {
	return orgID + "_" + m.Mask(nin)
}
