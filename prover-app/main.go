package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/sib-network/prover-service/log"
	"github.com/sib-network/prover-service/prover-app/config"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "sib-prover",
		Short: "SIB Prover",
		Long:  banner + "\n\nAn asynchronous zkML proof service for agent performance statistics.",
		RunE:  runApp,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run:   runVersion,
	}
)

const banner = `
███████╗██╗██████╗     ██████╗ ██████╗  ██████╗ ██╗   ██╗███████╗██████╗
██╔════╝██║██╔══██╗    ██╔══██╗██╔══██╗██╔═══██╗██║   ██║██╔════╝██╔══██╗
███████╗██║██████╔╝    ██████╔╝██████╔╝██║   ██║██║   ██║█████╗  ██████╔╝
╚════██║██║██╔══██╗    ██╔═══╝ ██╔══██╗██║   ██║╚██╗ ██╔╝██╔══╝  ██╔══██╗
███████║██║██████╔╝    ██║     ██║  ██║╚██████╔╝ ╚████╔╝ ███████╗██║  ██║
╚══════╝╚═╝╚═════╝     ╚═╝     ╚═╝  ╚═╝ ╚═════╝   ╚═══╝  ╚══════╝╚═╝  ╚═╝`

func main() {
	if err := execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func execute() error {
	initCommands()
	return rootCmd.Execute()
}

func initCommands() {
	// Add subcommands
	rootCmd.AddCommand(versionCmd)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "enable pretty logging")

	// Role selection
	rootCmd.PersistentFlags().String("role", "", "process role (gateway, worker, all)")

	// API flags
	rootCmd.PersistentFlags().String("listen-addr", "", "HTTP API listen address")

	// Metrics flags
	rootCmd.PersistentFlags().Bool("metrics", false, "enable metrics")

	// Proving flags
	rootCmd.PersistentFlags().String("ezkl-mode", "", "proof execution mode (real, simulated)")
	rootCmd.PersistentFlags().String("model-dir", "", "directory holding proving artifacts")

	// Worker flags
	rootCmd.PersistentFlags().Int("concurrency", 0, "number of concurrent proof jobs")
}

func runApp(cmd *cobra.Command, _ []string) error {
	fmt.Println(banner)
	fmt.Println()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	applyFlags(cmd, cfg)

	log := log.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Str("go_version", runtime.Version()).
		Msg("Build information")

	log.Info().
		Str("config_file", cfgFile).
		Str("role", cfg.Role).
		Str("listen_addr", cfg.API.ListenAddr).
		Str("queue_backend", cfg.Queue.Backend).
		Str("store_backend", cfg.Store.Backend).
		Str("ezkl_mode", cfg.Executor.Mode).
		Str("model_dir", cfg.Ezkl.ModelDir).
		Bool("metrics_enabled", cfg.Metrics.Enabled).
		Str("log_level", cfg.Log.Level).
		Msg("Configuration loaded")

	application, err := NewApp(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	return application.Run(cmd.Context())
}

func runVersion(*cobra.Command, []string) {
	fmt.Println(banner)
	fmt.Println()
	fmt.Printf("SIB Prover\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Printf("Go Version: %s\n", runtime.Version())
	fmt.Printf("OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flag("log-level").Changed {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flag("log-pretty").Changed {
		cfg.Log.Pretty, _ = cmd.Flags().GetBool("log-pretty")
	}

	if cmd.Flag("role").Changed {
		cfg.Role, _ = cmd.Flags().GetString("role")
	}
	if cmd.Flag("listen-addr").Changed {
		cfg.API.ListenAddr, _ = cmd.Flags().GetString("listen-addr")
	}
	if cmd.Flag("metrics").Changed {
		cfg.Metrics.Enabled, _ = cmd.Flags().GetBool("metrics")
	}

	if cmd.Flag("ezkl-mode").Changed {
		cfg.Executor.Mode, _ = cmd.Flags().GetString("ezkl-mode")
	}
	if cmd.Flag("model-dir").Changed {
		cfg.Ezkl.ModelDir, _ = cmd.Flags().GetString("model-dir")
	}

	if cmd.Flag("concurrency").Changed {
		cfg.Worker.Concurrency, _ = cmd.Flags().GetInt("concurrency")
	}
}
