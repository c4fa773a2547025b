package ezkl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/frontend"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
)

// Native proves in-process with gnark PLONK over BN254, reading the same
// on-disk artifact layout the CLI backend uses. It lets real mode run
// without an external toolchain installed.
type Native struct {
	art Artifacts
	log zerolog.Logger
}

func NewNative(art Artifacts, log zerolog.Logger) *Native {
	return &Native{art: art, log: log}
}

func (n *Native) Version() string { return "native gnark/plonk-bn254" }

func (n *Native) GenWitness(ctx context.Context, inputPath, circuitPath, witnessPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(circuitPath); err != nil {
		return fmt.Errorf("compiled circuit: %w", err)
	}

	payload, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	var input InputFile
	if err := json.Unmarshal(payload, &input); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}
	if len(input.InputData) != 1 || len(input.InputData[0]) != CircuitInputs {
		return fmt.Errorf("input must be one row of %d values", CircuitInputs)
	}

	assignment := Assign(input.InputData[0])
	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return fmt.Errorf("build witness: %w", err)
	}

	f, err := os.Create(witnessPath)
	if err != nil {
		return fmt.Errorf("create witness file: %w", err)
	}
	defer f.Close()
	if _, err := w.WriteTo(f); err != nil {
		return fmt.Errorf("write witness: %w", err)
	}
	return nil
}

func (n *Native) Prove(ctx context.Context, witnessPath, circuitPath, pkPath, proofPath, srsPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(srsPath); err != nil {
		return fmt.Errorf("reference string: %w", err)
	}

	ccs := plonk.NewCS(ecc.BN254)
	if err := readInto(circuitPath, ccs); err != nil {
		return fmt.Errorf("read circuit: %w", err)
	}

	pk := plonk.NewProvingKey(ecc.BN254)
	pkFile, err := os.Open(pkPath)
	if err != nil {
		return fmt.Errorf("open proving key: %w", err)
	}
	defer pkFile.Close()
	if _, err := pk.UnsafeReadFrom(pkFile); err != nil {
		return fmt.Errorf("read proving key: %w", err)
	}

	w, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return fmt.Errorf("new witness: %w", err)
	}
	if err := readInto(witnessPath, w); err != nil {
		return fmt.Errorf("read witness: %w", err)
	}

	proof, err := plonk.Prove(ccs, pk, w)
	if err != nil {
		return fmt.Errorf("prove: %w", err)
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return fmt.Errorf("serialize proof: %w", err)
	}

	pub, err := w.Public()
	if err != nil {
		return fmt.Errorf("extract public witness: %w", err)
	}
	vec, ok := pub.Vector().(fr.Vector)
	if !ok {
		return fmt.Errorf("unexpected public witness vector type %T", pub.Vector())
	}
	pretty := make([]string, len(vec))
	for i := range vec {
		b := vec[i].Bytes()
		pretty[i] = hexutil.Encode(b[:])
	}

	pf := &ProofFile{
		HexProof:           hexutil.Encode(buf.Bytes()),
		PrettyPublicInputs: PrettyPublicInputs{Inputs: [][]string{pretty}},
	}
	return pf.WriteTo(proofPath)
}

func (n *Native) Verify(ctx context.Context, proofPath, settingsPath, vkPath, srsPath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := os.Stat(settingsPath); err != nil {
		return false, fmt.Errorf("settings: %w", err)
	}
	if _, err := os.Stat(srsPath); err != nil {
		return false, fmt.Errorf("reference string: %w", err)
	}

	pf, err := ReadProofFile(proofPath)
	if err != nil {
		return false, err
	}
	proofBytes, err := hexutil.Decode(pf.ProofHex())
	if err != nil {
		return false, fmt.Errorf("decode proof hex: %w", err)
	}
	proof := plonk.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return false, fmt.Errorf("parse proof: %w", err)
	}

	vk := plonk.NewVerifyingKey(ecc.BN254)
	vkFile, err := os.Open(vkPath)
	if err != nil {
		return false, fmt.Errorf("open verifying key: %w", err)
	}
	defer vkFile.Close()
	if _, err := vk.UnsafeReadFrom(vkFile); err != nil {
		return false, fmt.Errorf("read verifying key: %w", err)
	}

	pub, err := publicWitnessFromInstances(pf.BigEndianInstances())
	if err != nil {
		return false, err
	}

	if err := plonk.Verify(proof, vk, pub); err != nil {
		n.log.Warn().Err(err).Msg("proof verification failed")
		return false, nil
	}
	return true, nil
}

// publicWitnessFromInstances rebuilds the public witness from the canonical
// big-endian instance encoding.
func publicWitnessFromInstances(instances []string) (witness.Witness, error) {
	w, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("new witness: %w", err)
	}

	values := make(chan any, len(instances))
	for _, inst := range instances {
		raw, err := hexutil.Decode(inst)
		if err != nil {
			close(values)
			return nil, fmt.Errorf("decode instance %q: %w", inst, err)
		}
		values <- new(big.Int).SetBytes(raw)
	}
	close(values)

	if err := w.Fill(len(instances), 0, values); err != nil {
		return nil, fmt.Errorf("fill public witness: %w", err)
	}
	return w, nil
}

// readInto reads a binary artifact into any gnark object with ReadFrom.
func readInto(path string, target io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = target.ReadFrom(f)
	return err
}
