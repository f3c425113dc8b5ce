package main

import (
	"fmt"
	"os"

	"github.com/lox/fairjack/internal/deck"
	"github.com/lox/fairjack/internal/game"
)

// CommitCmd prints the commitment for a sequence
type CommitCmd struct {
	Sequence string `kong:"arg,optional,help='Cards to commit to, e.g. As 9h 7d 6c'"`
	Shuffle  *int64 `kong:"help='Use a full deck shuffled with this seed instead'"`
}

func (c *CommitCmd) Run() error {
	seq, err := c.sequence()
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "sequence:   %s\ncommitment: %s\n", seq.Codes(), game.HashSequence(seq))
	return nil
}

func (c *CommitCmd) sequence() (deck.Sequence, error) {
	switch {
	case c.Shuffle != nil && c.Sequence != "":
		return nil, fmt.Errorf("pass a sequence or --shuffle, not both")
	case c.Shuffle != nil:
		return deck.Shuffled(*c.Shuffle), nil
	case c.Sequence != "":
		seq, err := deck.ParseSequence(c.Sequence)
		if err != nil {
			return nil, err
		}
		return seq, seq.Validate()
	default:
		return nil, fmt.Errorf("a sequence or --shuffle is required")
	}
}
