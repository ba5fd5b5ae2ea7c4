package generator

import (
	"math"

	"github.com/turtacn/DrugEx/pkg/errors"
)

const adamEpsilon = 1e-8

// adam updates a fixed list of parameter slices from their gradient slices.
type adam struct {
	lr, beta1, beta2 float64
	t                int
	params, grads    [][]float64
	m, v             [][]float64
}

func newAdam(cfg Config, params, grads [][]float64) *adam {
	a := &adam{lr: cfg.LearningRate, beta1: cfg.Beta1, beta2: cfg.Beta2, params: params, grads: grads}
	for _, p := range params {
		a.m = append(a.m, make([]float64, len(p)))
		a.v = append(a.v, make([]float64, len(p)))
	}
	return a
}

func (a *adam) step() error {
	for _, g := range a.grads {
		for _, x := range g {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return errors.New(errors.ErrCodeOptimizerFailed, "non-finite gradient")
			}
		}
	}
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for k, p := range a.params {
		g, m, v := a.grads[k], a.m[k], a.v[k]
		for i := range p {
			m[i] = a.beta1*m[i] + (1-a.beta1)*g[i]
			v[i] = a.beta2*v[i] + (1-a.beta2)*g[i]*g[i]
			p[i] -= a.lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + adamEpsilon)
		}
	}
	return nil
}

//Personal.AI order the ending
