package app

import (
	"fmt"
	"math/rand"
	"time"

	"mathsprint-service/internal/domain"
)

const (
	operandMin = 2
	operandMax = 100
	factorMax  = 12
)

// ProblemGenerator produces arithmetic problems. It is not safe for concurrent use;
// each engine owns its own generator.
type ProblemGenerator struct {
	rnd *rand.Rand
}

// NewProblemGenerator returns a generator seeded from the wall clock.
func NewProblemGenerator() *ProblemGenerator {
	return NewProblemGeneratorWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewProblemGeneratorWithSource allows deterministic sequences in tests.
func NewProblemGeneratorWithSource(src rand.Source) *ProblemGenerator {
	return &ProblemGenerator{rnd: rand.New(src)}
}

// Generate returns a new problem of a uniformly chosen kind.
func (g *ProblemGenerator) Generate() domain.Problem {
	kind := domain.ProblemKinds[g.rnd.Intn(len(domain.ProblemKinds))]
	return g.GenerateKind(kind)
}

// GenerateKind returns a problem of the given kind.
func (g *ProblemGenerator) GenerateKind(kind domain.ProblemKind) domain.Problem {
	switch kind {
	case domain.Subtraction:
		a, b := g.between(operandMin, operandMax), g.between(operandMin, operandMax)
		if a < b {
			a, b = b, a
		}
		return newProblem(kind, a, b, a-b, "-")
	case domain.Multiplication:
		a, b := g.between(operandMin, factorMax), g.between(operandMin, operandMax)
		return newProblem(kind, a, b, a*b, "×")
	case domain.Division:
		// dividend is derived from divisor and quotient so the division is always exact
		divisor := g.between(operandMin, factorMax)
		quotient := g.between(operandMin, operandMax)
		return newProblem(kind, divisor*quotient, divisor, quotient, "÷")
	default:
		a, b := g.between(operandMin, operandMax), g.between(operandMin, operandMax)
		return newProblem(domain.Addition, a, b, a+b, "+")
	}
}

func (g *ProblemGenerator) between(lo, hi int) int {
	return g.rnd.Intn(hi-lo+1) + lo
}

func newProblem(kind domain.ProblemKind, left, right, answer int, op string) domain.Problem {
	return domain.Problem{
		Text:   fmt.Sprintf("%d %s %d =", left, op, right),
		Answer: answer,
		Kind:   kind,
		Left:   left,
		Right:  right,
	}
}
