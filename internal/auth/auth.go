// Package auth verifies an operator credential against a stored SHA-256
// digest. It is the only entry point into privileged mode.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/hpungsan/arbiter/internal/errors"
	"github.com/hpungsan/arbiter/internal/mode"
)

// DigestHexLen is the length of a hex-encoded SHA-256 digest.
const DigestHexLen = 64

// ValidateDigest checks that the stored digest is well-formed: exactly 64
// hex characters after case folding. A malformed stored digest is a
// deployment defect; verification fails closed without hashing anything.
func ValidateDigest(expectedDigestHex string) error {
	folded := strings.ToLower(expectedDigestHex)
	if len(folded) != DigestHexLen {
		return errors.NewConfiguration("expected digest must be 64 hex characters")
	}
	if _, err := hex.DecodeString(folded); err != nil {
		return errors.NewConfiguration("expected digest is not valid hex")
	}
	return nil
}

// Elevate verifies the presented credential against the expected digest and
// returns the privileged mode on success.
//
// Rejection paths, in order and with no hashing performed for the first two:
// empty credential or digest, malformed digest, digest mismatch. The
// comparison is constant-time over equal-length byte slices; no partial
// information about how close the match was is ever returned, and the
// caller cannot distinguish a wrong credential from a malformed digest
// beyond both yielding rejection.
func Elevate(presentedCredential, expectedDigestHex string) (mode.Mode, error) {
	if presentedCredential == "" || expectedDigestHex == "" {
		return "", errors.NewAuthRejected()
	}

	if err := ValidateDigest(expectedDigestHex); err != nil {
		return "", errors.NewAuthRejected()
	}

	expected, err := hex.DecodeString(strings.ToLower(expectedDigestHex))
	if err != nil {
		return "", errors.NewAuthRejected()
	}

	sum := sha256.Sum256([]byte(presentedCredential))
	if subtle.ConstantTimeCompare(sum[:], expected) != 1 {
		return "", errors.NewAuthRejected()
	}

	return mode.Privileged, nil
}
