package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dpc/rostra/pkg/config"
	"github.com/dpc/rostra/pkg/dht"
	"github.com/dpc/rostra/pkg/log"
	"github.com/dpc/rostra/pkg/metrics"
	"github.com/dpc/rostra/pkg/node"
	"github.com/dpc/rostra/pkg/rostra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rostra-node",
	Short: "Rostra - a peer-to-peer social network substrate",
	Long: `Rostra runs one identity's event DAG, QUIC replication, and DHT
publication as a single long-running process with no central server.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"rostra-node version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(idCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(rendezvousCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a Rostra node",
	Long: `Start opens the identity's storage engine, binds the QUIC
listener, and runs every replication and publication worker until
interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		listenAddr, _ := cmd.Flags().GetString("listen-addr")
		configPath, _ := cmd.Flags().GetString("config")
		dhtURL, _ := cmd.Flags().GetString("dht-url")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		// Logging flags given on the command line win over the config
		// file's log_level/log_json (including dev_mode's overrides).
		logLevel, _ := cmd.Flags().GetString("log-level")
		if !cmd.Flags().Changed("log-level") {
			logLevel = cfg.LogLevel
		}
		logJSON, _ := cmd.Flags().GetBool("log-json")
		if !cmd.Flags().Changed("log-json") {
			logJSON = cfg.LogJSON
		}
		log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
		if listenAddr != "" {
			cfg.ListenAddr = listenAddr
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		if cfg.DataDir == "" {
			return fmt.Errorf("--data-dir is required (or set data_dir in --config)")
		}

		secret, err := loadOrCreateSecret(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("loading identity: %w", err)
		}

		n, err := node.New(node.Deps{
			DataDir:      cfg.DataDir,
			ListenAddr:   cfg.ListenAddr,
			Secret:       secret,
			DHTTransport: dht.NewHTTPTransport(dhtURL),
			Config:       cfg,
		})
		if err != nil {
			return fmt.Errorf("starting node: %w", err)
		}
		defer n.Close() //nolint:errcheck

		fmt.Printf("Rostra identity: %s\n", n.RostraId())
		fmt.Printf("Listening on:    %s\n", n.ListenAddr())

		metrics.SetVersion(Version)
		metrics.RegisterComponent("storage", true, "open")
		metrics.RegisterComponent("p2p", true, "listening")

		collector := metrics.NewCollector(n.DB, n.RostraId())
		collector.Start()
		defer collector.Stop()

		go func() {
			http.Handle("/metrics", metrics.Handler())
			http.Handle("/health", metrics.HealthHandler())
			http.Handle("/ready", metrics.ReadyHandler())
			http.Handle("/live", metrics.LivenessHandler())
			if err := http.ListenAndServe(metricsAddr, nil); err != nil { //nolint:gosec
				fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
			}
		}()
		fmt.Printf("Metrics endpoint: http://%s/metrics\n", metricsAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		errCh := make(chan error, 1)
		go func() { errCh <- n.Run(ctx) }()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
			cancel()
			<-errCh
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("node run: %w", err)
			}
		}
		return nil
	},
}

var idCmd = &cobra.Command{
	Use:   "id",
	Short: "Print the identity stored under --data-dir",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		secret, err := readSecret(dataDir)
		if err != nil {
			return err
		}
		fmt.Println(secret.RostraId())
		return nil
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new identity under --data-dir",
	Long: `Keygen creates a fresh Ed25519 identity and writes its BIP39
mnemonic under --data-dir, printing the identity and mnemonic once. The
mnemonic is the only backup of the identity; rostra-node never displays
it again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		force, _ := cmd.Flags().GetBool("force")

		path := secretPath(dataDir)
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("identity already exists at %s (use --force to overwrite)", path)
		}

		secret, mnemonic, err := rostra.NewMnemonicSecret()
		if err != nil {
			return fmt.Errorf("generating identity: %w", err)
		}

		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
		}
		if err := os.WriteFile(path, []byte(mnemonic+"\n"), 0o600); err != nil {
			return fmt.Errorf("writing identity: %w", err)
		}

		fmt.Printf("Identity: %s\n", secret.RostraId())
		fmt.Printf("Mnemonic: %s\n", mnemonic)
		fmt.Printf("Saved to: %s\n", path)
		return nil
	},
}

var rendezvousCmd = &cobra.Command{
	Use:   "rendezvous",
	Short: "Run a standalone DHT rendezvous server",
	Long: `Rendezvous runs the HTTP put/get store HTTPTransport talks to.
It is a practical stand-in for the real pkarr/mainline DHT network; point
multiple rostra-node start invocations' --dht-url at one rendezvous
instance to let them resolve each other.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("listen-addr")
		fmt.Printf("DHT rendezvous listening on %s\n", addr)
		return http.ListenAndServe(addr, dht.NewRendezvousServer()) //nolint:gosec
	},
}

func init() {
	startCmd.Flags().String("data-dir", "", "Data directory for this identity's storage engine")
	startCmd.Flags().String("listen-addr", "", "QUIC listen address (overrides config)")
	startCmd.Flags().String("config", "", "Path to a YAML config file (see pkg/config)")
	startCmd.Flags().String("dht-url", "http://127.0.0.1:8787", "Base URL of the DHT rendezvous server")
	startCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the metrics/health HTTP server")

	idCmd.Flags().String("data-dir", "", "Data directory for this identity")
	idCmd.MarkFlagRequired("data-dir") //nolint:errcheck

	keygenCmd.Flags().String("data-dir", "", "Data directory to store the new identity under")
	keygenCmd.Flags().Bool("force", false, "Overwrite an existing identity file")
	keygenCmd.MarkFlagRequired("data-dir") //nolint:errcheck

	rendezvousCmd.Flags().String("listen-addr", "127.0.0.1:8787", "Address for the rendezvous HTTP server")
}

func secretPath(dataDir string) string {
	return filepath.Join(dataDir, "identity.mnemonic")
}

func readSecret(dataDir string) (rostra.RostraIdSecret, error) {
	data, err := os.ReadFile(secretPath(dataDir))
	if err != nil {
		return rostra.RostraIdSecret{}, fmt.Errorf("reading identity (run 'rostra-node keygen' first): %w", err)
	}
	return rostra.RostraIdSecretFromMnemonic(trimNewline(string(data)))
}

// loadOrCreateSecret reads the identity stored under dataDir, generating
// and persisting a fresh one on first run so `start` works without a
// separate keygen step.
func loadOrCreateSecret(dataDir string) (rostra.RostraIdSecret, error) {
	path := secretPath(dataDir)
	data, err := os.ReadFile(path)
	if err == nil {
		return rostra.RostraIdSecretFromMnemonic(trimNewline(string(data)))
	}
	if !os.IsNotExist(err) {
		return rostra.RostraIdSecret{}, fmt.Errorf("reading identity: %w", err)
	}

	secret, mnemonic, err := rostra.NewMnemonicSecret()
	if err != nil {
		return rostra.RostraIdSecret{}, fmt.Errorf("generating identity: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return rostra.RostraIdSecret{}, fmt.Errorf("creating data dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(mnemonic+"\n"), 0o600); err != nil {
		return rostra.RostraIdSecret{}, fmt.Errorf("writing identity: %w", err)
	}
	fmt.Printf("Generated new identity: %s\n", secret.RostraId())
	return secret, nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
