package identity

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"github.com/brianvoe/gofakeit/v6"
)

// Nicknamer supplies base nicknames for generated user names.
type Nicknamer interface {
	Nickname() string
}

// Rand is the randomness the generator draws on. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Weights are the probabilities of each decoration applied to a base nickname.
type Weights struct {
	SecondName float64 // append a second nickname
	Underscore float64 // join the two nicknames with "_"
	Lowercase  float64 // lower-case the whole name
	Suffix     float64 // append a number in [0, 999]
}

func DefaultWeights() Weights {
	return Weights{SecondName: 0.5, Underscore: 0.3, Lowercase: 0.5, Suffix: 0.3}
}

type NameGenerator struct {
	nick    Nicknamer
	weights Weights

	mu  sync.Mutex
	rnd Rand
}

// NewNameGenerator builds a generator. A nil nick uses fake first names and pet
// names; a nil rnd uses a randomly seeded PCG source.
func NewNameGenerator(nick Nicknamer, weights Weights, rnd Rand) *NameGenerator {
	if nick == nil {
		nick = NewFakeNicknamer()
	}
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &NameGenerator{nick: nick, weights: weights, rnd: rnd}
}

// Generate returns a candidate name. It does not check availability.
func (g *NameGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	name := g.nick.Nickname()
	if g.rnd.Float64() < g.weights.SecondName {
		sep := ""
		if g.rnd.Float64() < g.weights.Underscore {
			sep = "_"
		}
		name = name + sep + g.nick.Nickname()
	}
	if g.rnd.Float64() < g.weights.Lowercase {
		name = strings.ToLower(name)
	}
	if g.rnd.Float64() < g.weights.Suffix {
		name += strconv.Itoa(g.rnd.IntN(1000))
	}
	return name
}

type fakeNicknamer struct {
	mu    sync.Mutex
	faker *gofakeit.Faker
}

func NewFakeNicknamer() Nicknamer {
	return &fakeNicknamer{faker: gofakeit.New(0)}
}

func (n *fakeNicknamer) Nickname() string {
	n.mu.Lock()
	defer n.mu.Unlock()

	nick := n.faker.FirstName()
	if n.faker.Bool() {
		nick = n.faker.PetName()
	}
	return strings.Join(strings.Fields(nick), "")
}
