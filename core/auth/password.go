package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 210000
	pbkdf2KeyLen     = 32
	saltLen          = 16
)

type PasswordHash struct {
	Hash string
	Salt string
}

func HashPassword(password, pepper string) (PasswordHash, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return PasswordHash{}, err
	}
	key := pbkdf2.Key([]byte(password+pepper), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return PasswordHash{Hash: hex.EncodeToString(key), Salt: hex.EncodeToString(salt)}, nil
}

func MustHashPassword(password, pepper string) PasswordHash {
	ph, err := HashPassword(password, pepper)
	if err != nil {
		panic(err)
	}
	return ph
}

func VerifyPassword(password, pepper, saltHex, wantHex string) bool {
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(wantHex)
	if err != nil {
		return false
	}
	got := pbkdf2.Key([]byte(password+pepper), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}
