package executor

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/sib-network/prover-service/x/ezkl"
	"github.com/sib-network/prover-service/x/proofjob"
	"github.com/sib-network/prover-service/x/sharpe"
)

// Simulated proof dimensions: the payload byte count matches the size class
// of a real proof, and the instance count mirrors the circuit's public
// values (inputs plus output).
const (
	simProofSeedRepeat = 96 // 32-byte seed * 96 = 3072 bytes
	simInstanceCount   = ezkl.CircuitInputs + 1
)

var simStages = []struct {
	progress int
	message  string
}{
	{25, "Compiling zkML circuit..."},
	{50, "Computing witness from daily returns..."},
	{75, "Generating KZG proof..."},
	{90, "Verifying proof locally..."},
}

// seedPayload is the canonical encoding hashed into the simulated proof
// seed. Field order is fixed by the struct.
type seedPayload struct {
	Returns []float64 `json:"returns"`
	Sharpe  float64   `json:"sharpe"`
	Ts      float64   `json:"ts"`
}

// runSimulated manufactures a proof-shaped payload with field-valid public
// instances. It touches no file artifacts and always reports verified.
func (e *Executor) runSimulated(ctx context.Context, req proofjob.Request) (*proofjob.Result, error) {
	start := time.Now()

	for i, stage := range simStages {
		var delay time.Duration
		if i < len(e.cfg.StepDelays) {
			delay = e.cfg.StepDelays[i]
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}
		if err := e.report(ctx, req.JobID, stage.progress, stage.message); err != nil {
			return nil, err
		}
	}

	sharpeVal := sharpe.Round4(sharpe.Ratio(req.Returns))
	ts := float64(time.Now().UnixMicro()) / 1e6

	head := req.Returns
	if len(head) > 10 {
		head = head[:10]
	}
	payload, err := json.Marshal(seedPayload{Returns: head, Sharpe: sharpeVal, Ts: ts})
	if err != nil {
		return nil, fmt.Errorf("marshal seed payload: %w", err)
	}
	seed := sha256.Sum256(payload)

	proofBytes := make([]byte, 0, len(seed)*simProofSeedRepeat)
	for i := 0; i < simProofSeedRepeat; i++ {
		proofBytes = append(proofBytes, seed[:]...)
	}

	// Each instance is reduced into the BN254 scalar field; an unreduced
	// hash could exceed the modulus and fail any verifier's range check.
	modulus := fr.Modulus()
	instances := make([]string, simInstanceCount)
	buf := make([]byte, fr.Bytes)
	for i := range instances {
		h := sha256.Sum256(fmt.Appendf(nil, "inst_%d_%v_%v", i, sharpeVal, ts))
		v := new(big.Int).SetBytes(h[:])
		v.Mod(v, modulus)
		v.FillBytes(buf)
		instances[i] = hexutil.Encode(buf)
	}

	return &proofjob.Result{
		SharpeRatio: sharpeVal,
		ProofHex:    hexutil.Encode(proofBytes),
		Instances:   instances,
		Verified:    true,
		ProvingTime: round2(time.Since(start).Seconds()),
		Mode:        proofjob.ModeSimulated,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
