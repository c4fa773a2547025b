package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sib-network/prover-service/x/ezkl"
	"github.com/sib-network/prover-service/x/proofjob"
	"github.com/sib-network/prover-service/x/sharpe"
)

// runReal drives the staged proving pipeline against the on-disk artifacts.
// A MissingArtifactsError is raised before any side effect; every other
// failure aborts the job.
func (e *Executor) runReal(ctx context.Context, req proofjob.Request) (*proofjob.Result, error) {
	start := time.Now()

	art := e.art
	if err := art.CheckMissing(); err != nil {
		return nil, err
	}

	norm, err := art.LoadNormParams()
	if err != nil {
		return nil, err
	}
	normalized := norm.Normalize(req.Returns)

	tmpDir, err := os.MkdirTemp("", "sib_proof_")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	inputPath := filepath.Join(tmpDir, "input.json")
	witnessPath := filepath.Join(tmpDir, "witness.json")
	proofPath := filepath.Join(tmpDir, "proof.json")

	if err := ezkl.WriteInputFile(inputPath, normalized); err != nil {
		return nil, err
	}

	if err := e.report(ctx, req.JobID, 30, "Generating witness from returns data..."); err != nil {
		return nil, err
	}
	if err := e.runner.GenWitness(ctx, inputPath, art.Circuit(), witnessPath); err != nil {
		return nil, fmt.Errorf("generate witness: %w", err)
	}

	if err := e.report(ctx, req.JobID, 60, "Generating KZG proof..."); err != nil {
		return nil, err
	}
	if err := e.runner.Prove(ctx, witnessPath, art.Circuit(), art.ProvingKey(), proofPath, art.SRS()); err != nil {
		return nil, fmt.Errorf("generate proof: %w", err)
	}

	if err := e.report(ctx, req.JobID, 85, "Verifying proof locally..."); err != nil {
		return nil, err
	}
	verified, err := e.runner.Verify(ctx, proofPath, art.Settings(), art.VerifyingKey(), art.SRS())
	if err != nil {
		return nil, fmt.Errorf("verify proof: %w", err)
	}

	pf, err := ezkl.ReadProofFile(proofPath)
	if err != nil {
		return nil, err
	}

	// The reported statistic always derives from the raw submitted returns,
	// never the quantized circuit input.
	return &proofjob.Result{
		SharpeRatio: sharpe.Round4(sharpe.Ratio(req.Returns)),
		ProofHex:    pf.ProofHex(),
		Instances:   pf.BigEndianInstances(),
		Verified:    verified,
		ProvingTime: round2(time.Since(start).Seconds()),
		Mode:        proofjob.ModeReal,
	}, nil
}
