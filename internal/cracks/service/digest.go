package service

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// digestSize is the length in bytes of every expected digest.
const digestSize = sha256.Size

// Digest returns the lowercase hex SHA-256 of salt || candidate. Provisioning
// and verification must both go through this function.
func Digest(salt []byte, candidate string) string {
	sum := digestOf(salt, candidate)
	return hex.EncodeToString(sum[:])
}

func digestOf(salt []byte, candidate string) [digestSize]byte {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(candidate))
	var out [digestSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// decodeSecret decodes the hex-encoded salt and expected digest of a challenge.
// Either being empty, malformed, or a digest of the wrong length is a
// provisioning defect.
func decodeSecret(saltHex, digestHex string) (salt, want []byte, err error) {
	if saltHex == "" || digestHex == "" {
		return nil, nil, fmt.Errorf("salt or digest missing")
	}
	salt, err = hex.DecodeString(saltHex)
	if err != nil {
		return nil, nil, fmt.Errorf("decode salt: %w", err)
	}
	want, err = hex.DecodeString(digestHex)
	if err != nil {
		return nil, nil, fmt.Errorf("decode digest: %w", err)
	}
	if len(want) != digestSize {
		return nil, nil, fmt.Errorf("digest is %d bytes, want %d", len(want), digestSize)
	}
	return salt, want, nil
}

// equalDigest reports whether got and want are identical. Only the length
// check may exit early; every byte is visited regardless of content. visit,
// when non-nil, is called once per compared byte.
func equalDigest(got, want []byte, visit func(i int)) bool {
	if len(got) != len(want) {
		return false
	}
	var diff byte
	for i := range want {
		diff |= got[i] ^ want[i]
		if visit != nil {
			visit(i)
		}
	}
	return subtle.ConstantTimeByteEq(diff, 0) == 1
}
