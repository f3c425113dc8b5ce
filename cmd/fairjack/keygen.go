package main

import (
	"fmt"
	"os"

	"github.com/lox/fairjack/internal/identity"
)

// KeygenCmd prints a new identity and its private key
type KeygenCmd struct {
	Seed string `kong:"help='Derive the key from a seed instead of randomly (demos only)'"`
}

func (c *KeygenCmd) Run() error {
	key := identity.Generate()
	if c.Seed != "" {
		key = identity.FromSeed([]byte(c.Seed))
	}
	fmt.Fprintf(os.Stdout, "identity: %s\nprivate:  %s\n", key.Identity(), key.PrivateHex())
	return nil
}
