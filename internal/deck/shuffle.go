package deck

import rand "math/rand/v2"

const goldenRatio64 = 0x9e3779b97f4a7c15

// Standard returns an ordered 52-card deck, suit by suit, ace to king.
func Standard() Sequence {
	seq := make(Sequence, 0, 52)
	for suit := Spades; suit <= Clubs; suit++ {
		for rank := Ace; rank <= King; rank++ {
			seq = append(seq, NewCard(suit, rank))
		}
	}
	return seq
}

// Shuffled returns a standard deck shuffled with a PCG source derived from
// seed. This is dealer-side tooling: the engine itself only ever consumes a
// sequence and its commitment.
func Shuffled(seed int64) Sequence {
	seq := Standard()
	rng := newRand(seed)
	rng.Shuffle(len(seq), func(i, j int) {
		seq[i], seq[j] = seq[j], seq[i]
	})
	return seq
}

func newRand(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(splitmix(u), splitmix(u+goldenRatio64)))
}

func splitmix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
