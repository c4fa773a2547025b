package ezkl

import (
	"math"
	"math/big"

	"github.com/consensys/gnark/frontend"
)

// Fixed-point parameters shared by the native circuit and its witness
// quantization. Inputs are scaled by InputScale before entering the field;
// the estimate carries the combined scale InputScale*WeightScale.
const (
	InputScale  = 1 << 13
	WeightScale = 1 << 13
)

// EstimatorWeight is sqrt(252)/CircuitInputs in WeightScale fixed point: the
// circuit attests to a scaled annualized mean estimate over the fixed window.
var EstimatorWeight = int64(math.Round(math.Sqrt(252) / CircuitInputs * WeightScale))

// SharpeEstimatorCircuit binds a fixed-width window of quantized normalized
// returns to the estimator output. Both inputs and output are public, so the
// proof carries CircuitInputs+1 public instances.
type SharpeEstimatorCircuit struct {
	Inputs   [CircuitInputs]frontend.Variable `gnark:",public"`
	Estimate frontend.Variable                `gnark:",public"`
}

func (c *SharpeEstimatorCircuit) Define(api frontend.API) error {
	acc := frontend.Variable(0)
	for i := 0; i < CircuitInputs; i++ {
		acc = api.Add(acc, api.Mul(c.Inputs[i], EstimatorWeight))
	}
	api.AssertIsEqual(c.Estimate, acc)
	return nil
}

// QuantizeInput maps a normalized return into circuit fixed point.
func QuantizeInput(v float64) *big.Int {
	return big.NewInt(int64(math.Round(v * InputScale)))
}

// Assign builds the full assignment for one window of normalized returns.
// The input must already be normalized to exactly CircuitInputs values.
func Assign(normalized []float64) *SharpeEstimatorCircuit {
	var c SharpeEstimatorCircuit
	estimate := new(big.Int)
	for i := 0; i < CircuitInputs; i++ {
		q := QuantizeInput(normalized[i])
		c.Inputs[i] = q
		estimate.Add(estimate, new(big.Int).Mul(q, big.NewInt(EstimatorWeight)))
	}
	c.Estimate = estimate
	return &c
}
