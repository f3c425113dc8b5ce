// Package gameid issues game ids: UUIDv7 values rendered as 26-character,
// lowercase Crockford base32 strings that sort by creation time.
package gameid

import (
	"fmt"
	"io"

	"github.com/google/uuid"
)

const (
	alphabet = "0123456789abcdefghjkmnpqrstvwxyz"
	// Length of an encoded id.
	Length = 26
)

// Generator issues ids. A nil reader uses crypto/rand.
type Generator struct {
	reader io.Reader
}

// NewGenerator creates a generator drawing random bits from r.
func NewGenerator(r io.Reader) *Generator {
	return &Generator{reader: r}
}

// Generate creates a new game id using crypto/rand.
func Generate() (string, error) {
	return NewGenerator(nil).Generate()
}

// Generate creates a new game id.
func (g *Generator) Generate() (string, error) {
	var (
		id  uuid.UUID
		err error
	)
	if g.reader != nil {
		id, err = uuid.NewV7FromReader(g.reader)
	} else {
		id, err = uuid.NewV7()
	}
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return Encode(id), nil
}

// Encode renders the 128 bits of id, left-padded with two zero bits to
// 130, as 26 base32 characters.
func Encode(id uuid.UUID) string {
	out := make([]byte, Length)
	for i := range out {
		var v byte
		for b := 0; b < 5; b++ {
			v <<= 1
			pos := i*5 + b - 2
			if pos >= 0 {
				v |= (id[pos/8] >> (7 - pos%8)) & 1
			}
		}
		out[i] = alphabet[v]
	}
	return string(out)
}

// Decode parses an encoded id back into its UUID.
func Decode(s string) (uuid.UUID, error) {
	var id uuid.UUID
	if err := Validate(s); err != nil {
		return id, err
	}
	for i := 0; i < Length; i++ {
		v := indexOf(s[i])
		for b := 0; b < 5; b++ {
			pos := i*5 + b - 2
			if pos < 0 {
				continue
			}
			if (v>>(4-b))&1 == 1 {
				id[pos/8] |= 1 << (7 - pos%8)
			}
		}
	}
	return id, nil
}

// Validate checks if a game ID is valid (26 characters, valid base32)
func Validate(id string) error {
	if len(id) != Length {
		return fmt.Errorf("game ID must be exactly %d characters, got %d", Length, len(id))
	}
	if id[0] > '7' {
		return fmt.Errorf("game ID first character must be 0-7, got %c", id[0])
	}
	for i := 0; i < len(id); i++ {
		if indexOf(id[i]) < 0 {
			return fmt.Errorf("invalid character %c at position %d", id[i], i)
		}
	}
	return nil
}

func indexOf(c byte) int {
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] == c {
			return i
		}
	}
	return -1
}
