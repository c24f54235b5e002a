package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"rsa-key-service/config"
	"rsa-key-service/internal/infra"
	"rsa-key-service/internal/keygen"
	"rsa-key-service/pkg/keyenc"
)

// generateCmd はサーバーを介さずにローカルで鍵ペアを生成するコマンド。
func generateCmd() *cobra.Command {
	cfg := config.LoadKeyGen()
	var outDir, name string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an RSA key pair locally and write it as PEM",
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, err := infra.NewKeyGenerator(cfg, nil)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if cfg.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
				defer cancel()
			}

			key, err := gen.GenerateKey(ctx, cfg.Bits, cfg.PublicExponent)
			if err != nil {
				return fmt.Errorf("generating key: %w", err)
			}
			if err := keygen.Verify(key); err != nil {
				return err
			}

			privatePEM, err := keyenc.PrivateKeyPEM(key)
			if err != nil {
				return err
			}
			publicPEM, err := keyenc.PublicKeyPEM(key)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outDir == "" {
				fmt.Fprint(out, string(privatePEM))
				fmt.Fprint(out, publicPEM)
				return nil
			}

			privPath, pubPath, err := writeKeyFiles(outDir, name, privatePEM, []byte(publicPEM))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Generated %d-bit key (e=%d)\n  private: %s\n  public:  %s\n", key.Bits(), key.PublicExponent, privPath, pubPath)
			return nil
		},
	}
	cmd.Flags().IntVar(&cfg.Bits, "bits", cfg.Bits, "Modulus size in bits (multiple of 16)")
	cmd.Flags().IntVar(&cfg.PublicExponent, "exponent", cfg.PublicExponent, "Public exponent (odd, at least 3)")
	cmd.Flags().IntVar(&cfg.Workers, "workers", cfg.Workers, "Number of concurrent prime searches")
	cmd.Flags().IntVar(&cfg.MinBits, "min-bits", cfg.MinBits, "Smallest accepted modulus size")
	cmd.Flags().IntVar(&cfg.MillerRabinRounds, "rounds", cfg.MillerRabinRounds, "Miller-Rabin rounds per candidate")
	cmd.Flags().DurationVar(&cfg.Timeout, "gen-timeout", cfg.Timeout, "Give up after this duration (0 for no limit)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory to write PEM files to (stdout if empty)")
	cmd.Flags().StringVar(&name, "name", "rsa", "Base file name of the PEM files")
	return cmd
}

// writeKeyFiles は秘密鍵を0600、公開鍵を0644で書き出す。
func writeKeyFiles(dir, name string, privatePEM, publicPEM []byte) (string, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating output directory: %w", err)
	}
	privPath := filepath.Join(dir, name+".key")
	pubPath := filepath.Join(dir, name+".pub")
	if err := os.WriteFile(privPath, privatePEM, 0o600); err != nil {
		return "", "", fmt.Errorf("writing private key: %w", err)
	}
	if err := os.WriteFile(pubPath, publicPEM, 0o644); err != nil {
		return "", "", fmt.Errorf("writing public key: %w", err)
	}
	return privPath, pubPath, nil
}
