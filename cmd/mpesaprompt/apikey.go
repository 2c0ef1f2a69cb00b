package main

import (
	"context"
	"fmt"
	"time"

	apikeydomain "github.com/WordpressDesigne/mpesaprompt/internal/apikey/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/spf13/cobra"
)

func apikeyCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage business API keys",
	}
	cmd.AddCommand(apikeyCreateCmd(configPath))
	cmd.AddCommand(apikeyRevokeCmd(configPath))
	return cmd
}

func apikeyCreateCmd(configPath *string) *cobra.Command {
	var (
		businessID string
		name       string
		ttl        time.Duration
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue an API key. The key is printed once.",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := snowflake.ParseString(businessID)
			if err != nil {
				return fmt.Errorf("invalid --business-id: %w", err)
			}
			req := apikeydomain.IssueRequest{BusinessID: id, Name: name}
			if ttl > 0 {
				expires := time.Now().UTC().Add(ttl)
				req.ExpiresAt = &expires
			}

			var svc apikeydomain.Service
			return runAdmin(cmd.Context(), *configPath, func(ctx context.Context) error {
				issued, err := svc.Issue(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), issued)
			}, &svc)
		},
	}
	cmd.Flags().StringVar(&businessID, "business-id", "", "Business id")
	cmd.Flags().StringVar(&name, "name", "default", "Key label")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Key lifetime (0 means no expiry)")
	_ = cmd.MarkFlagRequired("business-id")
	return cmd
}

func apikeyRevokeCmd(configPath *string) *cobra.Command {
	var businessID, keyID string
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Deactivate an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := snowflake.ParseString(businessID)
			if err != nil {
				return fmt.Errorf("invalid --business-id: %w", err)
			}
			var svc apikeydomain.Service
			return runAdmin(cmd.Context(), *configPath, func(ctx context.Context) error {
				if err := svc.Revoke(ctx, id, keyID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", keyID)
				return nil
			}, &svc)
		},
	}
	cmd.Flags().StringVar(&businessID, "business-id", "", "Business id")
	cmd.Flags().StringVar(&keyID, "key-id", "", "Key id (key_...)")
	_ = cmd.MarkFlagRequired("business-id")
	_ = cmd.MarkFlagRequired("key-id")
	return cmd
}
