package ezkl

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// InputFile is the normalized circuit input, one row per inference.
type InputFile struct {
	InputData [][]float64 `json:"input_data"`
}

// WriteInputFile writes the circuit input for a single inference.
func WriteInputFile(path string, normalized []float64) error {
	payload, err := json.Marshal(InputFile{InputData: [][]float64{normalized}})
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write input: %w", err)
	}
	return nil
}

// ProofFile mirrors the proof artifact produced by the proving toolchain.
// The raw instances are little-endian; only the pretty representation is
// big-endian canonical form suitable for field range checks downstream.
type ProofFile struct {
	HexProof           string             `json:"hex_proof,omitempty"`
	Proof              []int              `json:"proof,omitempty"`
	Instances          [][]string         `json:"instances,omitempty"`
	PrettyPublicInputs PrettyPublicInputs `json:"pretty_public_inputs"`
}

// PrettyPublicInputs carries the decoded big-endian public values.
type PrettyPublicInputs struct {
	Inputs  [][]string `json:"inputs"`
	Outputs [][]string `json:"outputs,omitempty"`
}

// ReadProofFile parses a proof artifact from disk.
func ReadProofFile(path string) (*ProofFile, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read proof: %w", err)
	}
	var pf ProofFile
	if err := json.Unmarshal(payload, &pf); err != nil {
		return nil, fmt.Errorf("parse proof: %w", err)
	}
	return &pf, nil
}

// WriteTo serializes the proof artifact.
func (p *ProofFile) WriteTo(path string) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal proof: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write proof: %w", err)
	}
	return nil
}

// ProofHex returns the 0x-prefixed hex proof, preferring the toolchain's
// ready-made encoding and falling back to encoding the raw proof bytes.
func (p *ProofFile) ProofHex() string {
	if p.HexProof != "" {
		return p.HexProof
	}
	raw := make([]byte, len(p.Proof))
	for i, b := range p.Proof {
		raw[i] = byte(b)
	}
	return hexutil.Encode(raw)
}

// BigEndianInstances returns the public instances in canonical big-endian
// form. The raw little-endian instance encoding is never used here: downstream
// field-arithmetic verification assumes big-endian values.
func (p *ProofFile) BigEndianInstances() []string {
	if len(p.PrettyPublicInputs.Inputs) == 0 {
		return nil
	}
	return p.PrettyPublicInputs.Inputs[0]
}
