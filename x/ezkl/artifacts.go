package ezkl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CircuitInputs is the fixed input width the circuit was compiled for.
// Shorter return series are zero-padded, longer ones truncated.
const CircuitInputs = 30

// Artifacts locates the pre-generated proving artifacts under one model
// directory.
type Artifacts struct {
	Dir string
}

func NewArtifacts(dir string) Artifacts {
	return Artifacts{Dir: dir}
}

func (a Artifacts) Model() string        { return filepath.Join(a.Dir, "sharpe_model.onnx") }
func (a Artifacts) Settings() string     { return filepath.Join(a.Dir, "settings.json") }
func (a Artifacts) Circuit() string      { return filepath.Join(a.Dir, "circuit.ezkl") }
func (a Artifacts) ProvingKey() string   { return filepath.Join(a.Dir, "pk.key") }
func (a Artifacts) VerifyingKey() string { return filepath.Join(a.Dir, "vk.key") }
func (a Artifacts) SRS() string          { return filepath.Join(a.Dir, "kzg.srs") }
func (a Artifacts) NormParams() string   { return filepath.Join(a.Dir, "norm_params.json") }

// MissingArtifactsError aggregates every absent required artifact. The
// executor recovers from this condition by falling back to simulated
// proving; it is never raised after partial pipeline execution.
type MissingArtifactsError struct {
	Dir     string
	Missing []string
}

func (e *MissingArtifactsError) Error() string {
	return fmt.Sprintf("missing proving artifacts: %s (model dir %s)",
		strings.Join(e.Missing, ", "), e.Dir)
}

// CheckMissing verifies the six required artifacts exist, reporting all
// absent ones at once. The normalization parameters file is optional.
func (a Artifacts) CheckMissing() error {
	required := []struct {
		name string
		path string
	}{
		{"model", a.Model()},
		{"settings", a.Settings()},
		{"circuit", a.Circuit()},
		{"pk", a.ProvingKey()},
		{"vk", a.VerifyingKey()},
		{"srs", a.SRS()},
	}

	var missing []string
	for _, req := range required {
		if _, err := os.Stat(req.path); err != nil {
			missing = append(missing, req.name)
		}
	}
	if len(missing) > 0 {
		return &MissingArtifactsError{Dir: a.Dir, Missing: missing}
	}
	return nil
}

// NormParamsFile holds per-feature affine normalization parameters.
type NormParamsFile struct {
	XMean []float64 `json:"x_mean"`
	XStd  []float64 `json:"x_std"`
}

// LoadNormParams reads the optional normalization file. When absent, identity
// parameters (mean 0, std 1) are returned.
func (a Artifacts) LoadNormParams() (NormParamsFile, error) {
	payload, err := os.ReadFile(a.NormParams())
	if os.IsNotExist(err) {
		return identityNormParams(), nil
	}
	if err != nil {
		return NormParamsFile{}, fmt.Errorf("read norm params: %w", err)
	}

	var np NormParamsFile
	if err := json.Unmarshal(payload, &np); err != nil {
		return NormParamsFile{}, fmt.Errorf("parse norm params: %w", err)
	}
	if len(np.XMean) != CircuitInputs || len(np.XStd) != CircuitInputs {
		return NormParamsFile{}, fmt.Errorf("norm params must have %d entries, got %d/%d",
			CircuitInputs, len(np.XMean), len(np.XStd))
	}
	return np, nil
}

func identityNormParams() NormParamsFile {
	np := NormParamsFile{
		XMean: make([]float64, CircuitInputs),
		XStd:  make([]float64, CircuitInputs),
	}
	for i := range np.XStd {
		np.XStd[i] = 1.0
	}
	return np
}

// Normalize pads or truncates returns to the circuit width and applies the
// affine normalization.
func (np NormParamsFile) Normalize(returns []float64) []float64 {
	fixed := make([]float64, CircuitInputs)
	copy(fixed, returns)

	out := make([]float64, CircuitInputs)
	for i := range fixed {
		out[i] = (fixed[i] - np.XMean[i]) / np.XStd[i]
	}
	return out
}
