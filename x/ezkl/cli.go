package ezkl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// CLI drives the external ezkl binary. Each operation is one subprocess
// invocation; the binary blocks until the stage completes.
type CLI struct {
	bin     string
	version string
	log     zerolog.Logger
}

// NewCLI locates the ezkl binary on PATH and probes its version.
func NewCLI(log zerolog.Logger) (*CLI, error) {
	bin, err := exec.LookPath("ezkl")
	if err != nil {
		return nil, fmt.Errorf("ezkl binary not on PATH: %w", err)
	}

	out, err := exec.Command(bin, "--version").CombinedOutput()
	version := "unknown"
	if err == nil {
		version = strings.TrimSpace(string(out))
	}

	return &CLI{bin: bin, version: version, log: log}, nil
}

func (c *CLI) Version() string { return c.version }

func (c *CLI) GenWitness(ctx context.Context, inputPath, circuitPath, witnessPath string) error {
	return c.run(ctx, "gen-witness",
		"--data", inputPath,
		"--compiled-circuit", circuitPath,
		"--output", witnessPath,
	)
}

func (c *CLI) Prove(ctx context.Context, witnessPath, circuitPath, pkPath, proofPath, srsPath string) error {
	return c.run(ctx, "prove",
		"--witness", witnessPath,
		"--compiled-circuit", circuitPath,
		"--pk-path", pkPath,
		"--proof-path", proofPath,
		"--srs-path", srsPath,
	)
}

func (c *CLI) Verify(ctx context.Context, proofPath, settingsPath, vkPath, srsPath string) (bool, error) {
	err := c.run(ctx, "verify",
		"--proof-path", proofPath,
		"--settings-path", settingsPath,
		"--vk-path", vkPath,
		"--srs-path", srsPath,
	)
	if err == nil {
		return true, nil
	}
	// A nonzero exit from verify means the proof did not hold; that is a
	// recorded outcome, not a pipeline error.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		c.log.Warn().Err(err).Msg("proof verification failed")
		return false, nil
	}
	return false, err
}

func (c *CLI) run(ctx context.Context, subcommand string, args ...string) error {
	cmd := exec.CommandContext(ctx, c.bin, append([]string{subcommand}, args...)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("ezkl %s: %w: %s", subcommand, err, strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("ezkl %s: %w", subcommand, err)
	}
	return nil
}
