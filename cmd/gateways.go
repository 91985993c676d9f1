package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/angosms/sms-gateway/internal/db"
	"github.com/angosms/sms-gateway/internal/gateway"
	"github.com/angosms/sms-gateway/internal/repository"
)

var gatewaysCmd = &cobra.Command{
	Use:   "gateways",
	Short: "Inspect and manage SMS gateways",
}

// withRegistry opens MySQL and runs fn against a registry loaded from it.
func withRegistry(ctx context.Context, fn func(*gateway.Registry) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	sqlDB, err := db.NewMySQL(ctx, cfg.MySQL)
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	defer sqlDB.Close()

	handles, err := gateway.BuildHandles(cfg.Gateways, cfg.Dispatcher.RateLimitWait, log.Named("gateway"))
	if err != nil {
		return err
	}
	reg := gateway.NewRegistry(repository.NewGatewaysRepository(sqlDB), handles, gateway.Options{
		ProbeTimeout: cfg.Gateways.ProbeTimeout,
		Log:          log.Named("registry"),
	})
	if err := reg.Refresh(ctx); err != nil {
		return err
	}
	return fn(reg)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var gatewaysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List gateways with their flags and last probe",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(cmd.Context(), func(r *gateway.Registry) error {
			rows, err := r.List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(rows)
		})
	},
}

var gatewaysProbeCmd = &cobra.Command{
	Use:   "probe [name]",
	Short: "Probe one gateway, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(cmd.Context(), func(r *gateway.Registry) error {
			if len(args) == 0 {
				return printJSON(r.ProbeAll(cmd.Context()))
			}
			res, err := r.Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

var gatewaysPrimaryCmd = &cobra.Command{
	Use:   "set-primary <name>",
	Short: "Make a gateway the single primary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(cmd.Context(), func(r *gateway.Registry) error {
			return r.SetPrimary(cmd.Context(), args[0])
		})
	},
}

var gatewaysActiveCmd = &cobra.Command{
	Use:   "set-active <name> <true|false>",
	Short: "Activate or deactivate a gateway",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		active, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("invalid active flag %q", args[1])
		}
		return withRegistry(cmd.Context(), func(r *gateway.Registry) error {
			return r.SetActive(cmd.Context(), args[0], active)
		})
	},
}

func init() {
	gatewaysCmd.AddCommand(gatewaysListCmd, gatewaysProbeCmd, gatewaysPrimaryCmd, gatewaysActiveCmd)
}
