// Small helper to generate the proving artifacts consumed in real mode:
// compiled circuit, PLONK proving/verification keys, KZG reference string,
// circuit settings and identity normalization parameters. Writes into the
// model directory given as the first argument (default "zkml").
//
// The reference string comes from an unsafe in-process trusted setup and is
// for development only.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/scs"
	"github.com/consensys/gnark/test/unsafekzg"

	"github.com/sib-network/prover-service/x/ezkl"
)

func main() {
	dir := "zkml"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}
	if err := run(dir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	art := ezkl.NewArtifacts(dir)

	fmt.Println("compiling circuit...")
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), scs.NewBuilder, &ezkl.SharpeEstimatorCircuit{})
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	if err := writeTo(art.Circuit(), ccs); err != nil {
		return err
	}

	fmt.Println("generating reference string (unsafe, dev only)...")
	canonical, lagrange, err := unsafekzg.NewSRS(ccs)
	if err != nil {
		return fmt.Errorf("srs: %w", err)
	}
	if err := writeTo(art.SRS(), canonical); err != nil {
		return err
	}

	fmt.Println("running plonk setup...")
	pk, vk, err := plonk.Setup(ccs, canonical, lagrange)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	if err := writeTo(art.ProvingKey(), pk); err != nil {
		return err
	}
	if err := writeTo(art.VerifyingKey(), vk); err != nil {
		return err
	}

	settings := map[string]any{
		"num_inputs":   ezkl.CircuitInputs,
		"input_scale":  ezkl.InputScale,
		"weight_scale": ezkl.WeightScale,
		"backend":      "gnark-plonk-bn254",
	}
	if err := writeJSON(art.Settings(), settings); err != nil {
		return err
	}

	norm := ezkl.NormParamsFile{
		XMean: make([]float64, ezkl.CircuitInputs),
		XStd:  make([]float64, ezkl.CircuitInputs),
	}
	for i := range norm.XStd {
		norm.XStd[i] = 1.0
	}
	if err := writeJSON(art.NormParams(), norm); err != nil {
		return err
	}

	// Placeholder model file so artifact presence checks pass; the native
	// backend proves from the compiled circuit, not the model.
	if err := os.WriteFile(art.Model(), []byte{}, 0o644); err != nil {
		return err
	}

	fmt.Printf("artifacts written to %s\n", filepath.Clean(dir))
	return nil
}

func writeTo(path string, w io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := w.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
