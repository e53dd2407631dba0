package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// OTP codes live for minutes and are attempt-limited, so a cheaper argon2
// profile than the password one is enough.
var otpParams = Argon2Params{
	Time:    1,
	Memory:  16 * 1024,
	Threads: 1,
	KeyLen:  32,
	SaltLen: 16,
}

// GenerateOTP returns a uniformly random numeric code of the given length,
// leading zeros included.
func GenerateOTP(length int) (string, error) {
	if length <= 0 || length > 18 {
		return "", fmt.Errorf("invalid otp length %d", length)
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}

func HashOTP(code string) (string, error) {
	return hashWithParams(code, otpParams)
}

// VerifyOTP compares code against a stored hash in constant time. A malformed
// hash never matches.
func VerifyOTP(code, encodedHash string) bool {
	ok, err := verifyHash(code, encodedHash)
	return err == nil && ok
}
