// Package security hashes and checks the shared front desk passcode.
package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const MinPasscodeLen = 8

var (
	ErrPasscodeTooShort = errors.New("passcode must be at least 8 characters")
	ErrPasscodeMismatch = errors.New("passcode does not match")
)

type PasscodeHasher interface {
	Hash(passcode string) (string, error)
	// Compare returns ErrPasscodeMismatch when passcode does not produce hash.
	Compare(hash, passcode string) error
}

type bcryptHasher struct {
	cost int
}

// NewBcryptHasher falls back to bcrypt.DefaultCost for out of range costs.
func NewBcryptHasher(cost int) PasscodeHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (b *bcryptHasher) Hash(passcode string) (string, error) {
	if len(passcode) < MinPasscodeLen {
		return "", ErrPasscodeTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), b.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (b *bcryptHasher) Compare(hash, passcode string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(passcode))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasscodeMismatch
	}
	return err
}
