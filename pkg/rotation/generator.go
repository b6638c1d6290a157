package rotation

import (
	"crypto/rand"
	"math/big"
)

const (
	upperAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerAlphabet   = "abcdefghijklmnopqrstuvwxyz"
	digitAlphabet   = "0123456789"
	punctAlphabet   = "!@#$%^&*()-_=+[]{}|;:,.<>?"
	alphanumeric    = upperAlphabet + lowerAlphabet + digitAlphabet
	minPasswordLen  = 8
	minUsernameLen  = 8
)

// Generate produces a password of at least minPasswordLen characters using
// a cryptographically secure random source. The result is guaranteed to
// contain at least two uppercase letters, two lowercase letters, two
// digits, and one punctuation character; the remaining positions are drawn
// uniformly from the union of all four alphabets. Positions are then
// shuffled by a cryptographically random permutation.
func Generate(length int) (string, error) {
	if length < minPasswordLen {
		length = minPasswordLen
	}

	chars := make([]byte, 0, length)

	classGuarantees := []string{
		upperAlphabet, upperAlphabet,
		lowerAlphabet, lowerAlphabet,
		digitAlphabet, digitAlphabet,
		punctAlphabet,
	}
	combined := upperAlphabet + lowerAlphabet + digitAlphabet + punctAlphabet

	for _, alphabet := range classGuarantees {
		c, err := randomChar(alphabet)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}

	for len(chars) < length {
		c, err := randomChar(combined)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}

	if err := shuffle(chars); err != nil {
		return "", err
	}

	return string(chars), nil
}

// GenerateUsername returns a string of total length max(8, length) starting
// with prefix (default "u" if empty) followed by uniformly random
// alphanumeric characters. No punctuation ever appears. A prefix longer
// than that total is kept whole and returned with no random suffix.
func GenerateUsername(prefix string, length int) (string, error) {
	if prefix == "" {
		prefix = "u"
	}
	if length < minUsernameLen {
		length = minUsernameLen
	}

	remaining := length - len(prefix)
	if remaining < 0 {
		remaining = 0
	}

	suffix := make([]byte, remaining)
	for i := range suffix {
		c, err := randomChar(alphanumeric)
		if err != nil {
			return "", err
		}
		suffix[i] = c
	}

	return prefix + string(suffix), nil
}

func randomChar(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, err
	}
	return alphabet[n.Int64()], nil
}

// shuffle performs a Fisher-Yates permutation using crypto/rand so the
// class-guaranteed characters inserted by Generate are not predictably
// placed.
func shuffle(chars []byte) error {
	for i := len(chars) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return err
		}
		chars[i], chars[j.Int64()] = chars[j.Int64()], chars[i]
	}
	return nil
}
