package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

type generateRequest struct {
	Bits           int `json:"bits,omitempty"`
	PublicExponent int `json:"public_exponent,omitempty"`
}

type keyMetadata struct {
	Generation     uint   `json:"generation"`
	Bits           int    `json:"bits"`
	PublicExponent int    `json:"public_exponent"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
}

// createCmd は鍵ペアの生成コマンド。
func createCmd() *cobra.Command {
	var tenantID string
	var req generateRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the first RSA key pair for a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := callAPI(http.MethodPost, fmt.Sprintf("/v1/tenants/%s/keys", tenantID), req, http.StatusCreated)
			if err != nil {
				return err
			}

			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}
			var result keyMetadata
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d-bit key for tenant %q (generation: %d)\n", result.Bits, tenantID, result.Generation)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID (required)")
	cmd.Flags().IntVar(&req.Bits, "bits", 0, "Modulus size in bits (server default if omitted)")
	cmd.Flags().IntVar(&req.PublicExponent, "exponent", 0, "Public exponent (server default if omitted)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

// getCmd は鍵ペアの取得コマンド。
func getCmd() *cobra.Command {
	var tenantID string
	var generation uint
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Get a key pair for a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/v1/tenants/%s/keys/current", tenantID)
			if generation > 0 {
				path = fmt.Sprintf("/v1/tenants/%s/keys/%d", tenantID, generation)
			}

			body, err := callAPI(http.MethodGet, path, nil, http.StatusOK)
			if err != nil {
				return err
			}

			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}
			var result struct {
				PrivateKey string `json:"private_key"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), result.PrivateKey)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID (required)")
	cmd.Flags().UintVar(&generation, "generation", 0, "Key generation (optional, defaults to current)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

// publicCmd は公開鍵の取得コマンド。
func publicCmd() *cobra.Command {
	var tenantID, format string
	var generation uint
	cmd := &cobra.Command{
		Use:   "public",
		Short: "Get the public key of a key generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if generation == 0 {
				return fmt.Errorf("--generation is required")
			}
			path := fmt.Sprintf("/v1/tenants/%s/keys/%d/public", tenantID, generation)
			if format == "ssh" {
				body, err := callAPI(http.MethodGet, path+"?format=ssh", nil, http.StatusOK)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), string(body))
				return nil
			}

			body, err := callAPI(http.MethodGet, path, nil, http.StatusOK)
			if err != nil {
				return err
			}

			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}
			var result struct {
				PublicKey string `json:"public_key"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), result.PublicKey)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID (required)")
	cmd.Flags().UintVar(&generation, "generation", 0, "Key generation (required)")
	cmd.Flags().StringVar(&format, "format", "pem", "Public key format: pem, ssh")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("generation")
	return cmd
}

// rotateCmd は鍵のローテーションコマンド。
func rotateCmd() *cobra.Command {
	var tenantID string
	var req generateRequest
	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Rotate the key pair of a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := callAPI(http.MethodPost, fmt.Sprintf("/v1/tenants/%s/keys/rotate", tenantID), req, http.StatusCreated)
			if err != nil {
				return err
			}

			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}
			var result keyMetadata
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rotated key for tenant %q (new generation: %d)\n", tenantID, result.Generation)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID (required)")
	cmd.Flags().IntVar(&req.Bits, "bits", 0, "Modulus size in bits (inherits the latest generation if omitted)")
	cmd.Flags().IntVar(&req.PublicExponent, "exponent", 0, "Public exponent (inherits the latest generation if omitted)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

// listCmd は鍵一覧の取得コマンド。
func listCmd() *cobra.Command {
	var tenantID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all key generations for a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := callAPI(http.MethodGet, fmt.Sprintf("/v1/tenants/%s/keys", tenantID), nil, http.StatusOK)
			if err != nil {
				return err
			}

			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}
			var result struct {
				Keys []keyMetadata `json:"keys"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-12s %-6s %-10s %-10s %s\n", "GENERATION", "BITS", "EXPONENT", "STATUS", "CREATED_AT")
			for _, k := range result.Keys {
				fmt.Fprintf(out, "%-12d %-6d %-10d %-10s %s\n", k.Generation, k.Bits, k.PublicExponent, k.Status, k.CreatedAt)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID (required)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

// disableCmd は鍵の無効化コマンド。
func disableCmd() *cobra.Command {
	var tenantID string
	var generation uint
	cmd := &cobra.Command{
		Use:   "disable",
		Short: "Disable a key generation for a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if generation == 0 {
				return fmt.Errorf("--generation is required")
			}
			if _, err := callAPI(http.MethodDelete, fmt.Sprintf("/v1/tenants/%s/keys/%d", tenantID, generation), nil, http.StatusAccepted); err != nil {
				return err
			}

			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), "{}")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Disabled key for tenant %q (generation: %d)\n", tenantID, generation)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID (required)")
	cmd.Flags().UintVar(&generation, "generation", 0, "Key generation (required)")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("generation")
	return cmd
}
