// Snekcloud peer-to-peer node daemon.
//
// Usage:
//
//	snekcloudd                       Run the node
//	snekcloudd generate-key <file>   Write a fresh armored private key
//	snekcloudd write-info-file <f>   Write this node's own NodeDescriptor
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Trivernis/snekcloud-go/config"
	"github.com/Trivernis/snekcloud-go/internal/directory"
	"github.com/Trivernis/snekcloud-go/internal/keys"
	"github.com/Trivernis/snekcloud-go/internal/log"
	"github.com/Trivernis/snekcloud-go/internal/server"
)

func main() {
	root := &cobra.Command{
		Use:          "snekcloudd",
		Short:        "snekcloud peer-to-peer node daemon",
		SilenceUsage: true,
		RunE:         runServer,
	}
	root.AddCommand(generateKeyCmd(), writeInfoFileCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(_ *cobra.Command, _ []string) error {
	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := log.Init("info", settings.LogFolder); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	srv, err := server.New(settings)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Node.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		cancel()
	}()

	srv.Run(ctx)
	log.Node.Info().Msg("goodbye")
	return nil
}

func generateKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-key <file>",
		Short: "generates a new private key",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			key, err := keys.GeneratePrivateKey()
			if err != nil {
				return fmt.Errorf("generate private key: %w", err)
			}
			return os.WriteFile(args[0], []byte(keys.ArmorPrivateKey(key)), 0o600)
		},
	}
}

func writeInfoFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write-info-file <file>",
		Short: "writes this node's own descriptor, derived from config and its private key",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			data, err := os.ReadFile(settings.PrivateKey)
			if err != nil {
				return fmt.Errorf("read private key %s: %w", settings.PrivateKey, err)
			}
			priv, err := keys.UnarmorPrivateKey(string(data))
			if err != nil {
				return fmt.Errorf("unarmor private key: %w", err)
			}
			pub, err := priv.PublicKey()
			if err != nil {
				return fmt.Errorf("derive public key: %w", err)
			}

			desc := directory.NodeDescriptor{
				ID:        settings.NodeID,
				Addresses: settings.ListenAddresses,
				PublicKey: keys.ArmorPublicKey(pub),
			}
			out, err := desc.Marshal()
			if err != nil {
				return fmt.Errorf("marshal descriptor: %w", err)
			}
			return os.WriteFile(args[0], out, 0o644)
		},
	}
}
