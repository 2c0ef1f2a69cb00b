package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	auditdomain "github.com/WordpressDesigne/mpesaprompt/internal/audit/domain"
	businessdomain "github.com/WordpressDesigne/mpesaprompt/internal/business/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/spf13/cobra"
)

func businessCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "business",
		Short: "Manage tenant businesses",
	}
	cmd.AddCommand(businessCreateCmd(configPath))
	cmd.AddCommand(businessCredentialsCmd(configPath))
	cmd.AddCommand(businessSetActiveCmd(configPath, "suspend", false))
	cmd.AddCommand(businessSetActiveCmd(configPath, "activate", true))
	cmd.AddCommand(businessListCmd(configPath))
	cmd.AddCommand(businessAuditCmd(configPath))
	return cmd
}

func businessCreateCmd(configPath *string) *cobra.Command {
	var req businessdomain.CreateRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a business and its wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc businessdomain.Service
			return runAdmin(cmd.Context(), *configPath, func(ctx context.Context) error {
				b, err := svc.Create(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), b.Redacted())
			}, &svc)
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "Business name")
	cmd.Flags().StringVar(&req.Environment, "env", "sandbox", "Gateway environment (sandbox or production)")
	cmd.Flags().StringVar(&req.WebhookURL, "webhook-url", "", "URL receiving payment events")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func businessCredentialsCmd(configPath *string) *cobra.Command {
	var (
		id  string
		req businessdomain.UpdateCredentialsRequest
	)
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Set gateway credentials, shortcode and URLs for a business",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := snowflake.ParseString(id)
			if err != nil {
				return fmt.Errorf("invalid --id: %w", err)
			}
			req.ID = parsed

			var svc businessdomain.Service
			return runAdmin(cmd.Context(), *configPath, func(ctx context.Context) error {
				b, err := svc.UpdateCredentials(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), b.Redacted())
			}, &svc)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&id, "id", "", "Business id")
	flags.StringVar(&req.Environment, "env", "", "Gateway environment (sandbox or production)")
	flags.StringVar(&req.ConsumerKey, "consumer-key", "", "Daraja consumer key")
	flags.StringVar(&req.ConsumerSecret, "consumer-secret", "", "Daraja consumer secret")
	flags.StringVar(&req.Passkey, "passkey", "", "Lipa na M-Pesa passkey")
	flags.StringVar(&req.PaybillNumber, "paybill", "", "Paybill shortcode")
	flags.StringVar(&req.TillNumber, "till", "", "Till (buy goods) shortcode")
	flags.StringVar(&req.CallbackURL, "callback-url", "", "Callback URL override")
	flags.StringVar(&req.WebhookURL, "webhook-url", "", "URL receiving payment events")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func businessSetActiveCmd(configPath *string, use string, active bool) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Mark a business as %s", map[bool]string{true: "active", false: "suspended"}[active]),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := snowflake.ParseString(id)
			if err != nil {
				return fmt.Errorf("invalid --id: %w", err)
			}
			var svc businessdomain.Service
			return runAdmin(cmd.Context(), *configPath, func(ctx context.Context) error {
				b, err := svc.SetActive(ctx, parsed, active)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), b.Redacted())
			}, &svc)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Business id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func businessListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List businesses",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc businessdomain.Service
			return runAdmin(cmd.Context(), *configPath, func(ctx context.Context) error {
				rows, err := svc.List(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tENV\tSHORTCODE\tACTIVE")
				for _, b := range rows {
					code, _ := b.Shortcode()
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", b.ID, b.Name, b.Environment, code, b.IsActive)
				}
				return w.Flush()
			}, &svc)
		},
	}
}

func businessAuditCmd(configPath *string) *cobra.Command {
	var (
		id    string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the administration history of a business",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := snowflake.ParseString(id)
			if err != nil {
				return fmt.Errorf("invalid --id: %w", err)
			}
			var svc auditdomain.Service
			return runAdmin(cmd.Context(), *configPath, func(ctx context.Context) error {
				rows, err := svc.List(ctx, auditdomain.ListFilter{BusinessID: parsed, Limit: limit})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rows)
			}, &svc)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Business id")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
