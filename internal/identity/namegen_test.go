package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type cycleNicknamer struct {
	names []string
	next  int
}

func (c *cycleNicknamer) Nickname() string {
	name := c.names[c.next%len(c.names)]
	c.next++
	return name
}

type scriptedRand struct {
	floats []float64
	ints   []int
}

func (s *scriptedRand) Float64() float64 {
	f := s.floats[0]
	s.floats = s.floats[1:]
	return f
}

func (s *scriptedRand) IntN(n int) int {
	i := s.ints[0]
	s.ints = s.ints[1:]
	return i % n
}

func TestNameGeneratorDecorations(t *testing.T) {
	tests := []struct {
		name   string
		floats []float64
		ints   []int
		want   string
	}{
		{
			name:   "Base only",
			floats: []float64{0.9, 0.9, 0.9},
			want:   "Alpha",
		},
		{
			name:   "Second name with underscore",
			floats: []float64{0.1, 0.1, 0.9, 0.9},
			want:   "Alpha_Beta",
		},
		{
			name:   "Second name without underscore, lowercased, suffixed",
			floats: []float64{0.4, 0.3, 0.2, 0.1},
			ints:   []int{42},
			want:   "alphabeta42",
		},
		{
			name:   "Thresholds are exclusive",
			floats: []float64{0.5, 0.5, 0.3},
			want:   "Alpha",
		},
		{
			name:   "Suffix upper bound",
			floats: []float64{0.9, 0.9, 0.0},
			ints:   []int{999},
			want:   "Alpha999",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rnd := &scriptedRand{floats: tt.floats, ints: tt.ints}
			gen := NewNameGenerator(&cycleNicknamer{names: []string{"Alpha", "Beta"}}, DefaultWeights(), rnd)

			require.Equal(t, tt.want, gen.Generate())
			require.Empty(t, rnd.floats, "all draws consumed")
		})
	}
}

func TestNameGeneratorDefaults(t *testing.T) {
	gen := NewNameGenerator(nil, DefaultWeights(), nil)
	for i := 0; i < 100; i++ {
		require.NotEmpty(t, gen.Generate())
	}
}

func TestFakeNicknamerHasNoSpaces(t *testing.T) {
	nick := NewFakeNicknamer()
	for i := 0; i < 100; i++ {
		n := nick.Nickname()
		require.NotEmpty(t, n)
		require.NotContains(t, n, " ")
	}
}
