package app_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathsprint-service/internal/app"
	"mathsprint-service/internal/domain"
)

func TestGenerateKindsHoldArithmetic(t *testing.T) {
	gen := app.NewProblemGeneratorWithSource(rand.NewSource(1))

	for _, kind := range domain.ProblemKinds {
		t.Run(string(kind), func(t *testing.T) {
			for i := 0; i < 2000; i++ {
				p := gen.GenerateKind(kind)
				require.Equal(t, kind, p.Kind)

				switch kind {
				case domain.Addition:
					assertRange(t, p.Left, 2, 100)
					assertRange(t, p.Right, 2, 100)
					require.Equal(t, p.Left+p.Right, p.Answer)
					require.Equal(t, fmt.Sprintf("%d + %d =", p.Left, p.Right), p.Text)
				case domain.Subtraction:
					assertRange(t, p.Left, 2, 100)
					assertRange(t, p.Right, 2, 100)
					require.GreaterOrEqual(t, p.Left, p.Right, "smaller minus larger must be swapped")
					require.Equal(t, p.Left-p.Right, p.Answer)
					require.GreaterOrEqual(t, p.Answer, 0)
					require.Equal(t, fmt.Sprintf("%d - %d =", p.Left, p.Right), p.Text)
				case domain.Multiplication:
					assertRange(t, p.Left, 2, 12)
					assertRange(t, p.Right, 2, 100)
					require.Equal(t, p.Left*p.Right, p.Answer)
					require.Equal(t, fmt.Sprintf("%d × %d =", p.Left, p.Right), p.Text)
				case domain.Division:
					assertRange(t, p.Right, 2, 12)
					assertRange(t, p.Answer, 2, 100)
					require.Equal(t, p.Right*p.Answer, p.Left)
					require.Zero(t, p.Left%p.Right)
					require.Equal(t, fmt.Sprintf("%d ÷ %d =", p.Left, p.Right), p.Text)
				}
			}
		})
	}
}

func TestGenerateCoversEveryKindAndBound(t *testing.T) {
	gen := app.NewProblemGeneratorWithSource(rand.NewSource(7))
	kinds := map[domain.ProblemKind]int{}
	seenMin, seenMax := false, false

	for i := 0; i < 20000; i++ {
		p := gen.Generate()
		kinds[p.Kind]++
		if p.Kind == domain.Addition {
			if p.Left == 2 {
				seenMin = true
			}
			if p.Left == 100 {
				seenMax = true
			}
		}
	}

	assert.Len(t, kinds, 4)
	for kind, n := range kinds {
		// uniform over 4 kinds: expect ~5000 each
		assert.InDelta(t, 5000, n, 500, "kind %s", kind)
	}
	assert.True(t, seenMin, "lower bound 2 never generated")
	assert.True(t, seenMax, "upper bound 100 never generated")
}

func TestGenerateIsDeterministicForSeed(t *testing.T) {
	a := app.NewProblemGeneratorWithSource(rand.NewSource(42))
	b := app.NewProblemGeneratorWithSource(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Generate(), b.Generate())
	}
}

func assertRange(t *testing.T, v, lo, hi int) {
	t.Helper()
	if v < lo || v > hi {
		t.Fatalf("value %d outside [%d,%d]", v, lo, hi)
	}
}
