// Package ezkl is the boundary to the zero-knowledge proving toolchain. It
// exposes the staged pipeline (witness, prove, verify) as blocking operations
// over file-path arguments, with the backend resolved once at startup.
package ezkl

import (
	"context"

	"github.com/rs/zerolog"
)

// Runner runs one proving operation and blocks until it completes. Every
// pipeline step goes through this interface; implementations hide whether
// the underlying toolchain is in-process or an external binary.
type Runner interface {
	// GenWitness produces a witness file from a normalized input file and a
	// compiled circuit.
	GenWitness(ctx context.Context, inputPath, circuitPath, witnessPath string) error
	// Prove produces a proof file from a witness, the compiled circuit, the
	// proving key and the structured reference string.
	Prove(ctx context.Context, witnessPath, circuitPath, pkPath, proofPath, srsPath string) error
	// Verify checks a proof against the verification key and reference
	// string, returning whether it holds.
	Verify(ctx context.Context, proofPath, settingsPath, vkPath, srsPath string) (bool, error)
	// Version identifies the backend toolchain.
	Version() string
}

// Config selects the proving backend.
type Config struct {
	// Backend is one of cli (external ezkl binary) or native (in-process
	// gnark PLONK/KZG over BN254).
	Backend string `mapstructure:"backend" yaml:"backend"`
	// ModelDir holds the pre-generated proving artifacts.
	ModelDir string `mapstructure:"model_dir" yaml:"model_dir"`
}

func DefaultConfig() Config {
	return Config{
		Backend:  "native",
		ModelDir: "zkml",
	}
}

// Probe resolves the configured backend once at process start. A false
// second return means no proving backend is loadable; callers must then run
// simulated regardless of the configured execution mode.
func Probe(cfg Config, log zerolog.Logger) (Runner, bool) {
	logger := log.With().Str("component", "ezkl").Logger()

	switch cfg.Backend {
	case "cli":
		r, err := NewCLI(logger)
		if err != nil {
			logger.Warn().Err(err).Msg("ezkl binary not found, proving backend unavailable")
			return nil, false
		}
		logger.Info().Str("version", r.Version()).Msg("ezkl CLI backend available")
		return r, true
	case "native", "":
		r := NewNative(NewArtifacts(cfg.ModelDir), logger)
		logger.Info().Str("version", r.Version()).Msg("native proving backend available")
		return r, true
	default:
		logger.Warn().Str("backend", cfg.Backend).Msg("unknown proving backend")
		return nil, false
	}
}

// EffectiveMode resolves the mode reported by health checks: real only when
// both configured for real proving and a backend is loadable.
func EffectiveMode(configured string, available bool) string {
	if configured == "real" && available {
		return "real"
	}
	return "simulated"
}
