/*
Copyright © 2026 Deutsche Telekom AG
*/
package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"k8s.io/klog/v2"

	"github.com/telekom/appgw-provisioner/internal/config"
	"github.com/telekom/appgw-provisioner/internal/ops"
	"github.com/telekom/appgw-provisioner/internal/orchestrator"
	"github.com/telekom/appgw-provisioner/internal/system"
	"github.com/telekom/appgw-provisioner/pkg/certs"
	"github.com/telekom/appgw-provisioner/pkg/provider/memory"
	"github.com/telekom/appgw-provisioner/pkg/provider/retry"
	"github.com/telekom/appgw-provisioner/pkg/tracing"
)

var (
	subscription    string
	resourceGroup   string
	gatewayName     string
	vaultName       string
	domain          string
	secretName      string
	frontendPort    int32
	forceRotate     bool
	renewBefore     time.Duration
	propagationWait time.Duration
	assumeYes       bool
	nonInteractive  bool

	stateFile   string
	seedGateway bool

	findRateLimit float64

	tracingEnabled  bool
	tracingEndpoint string
	tracingSampling float64
	tracingInsecure bool
)

// convergeCmd represents the converge command
var convergeCmd = &cobra.Command{
	Use:   "converge",
	Short: "Run one convergence pass over the target scope",
	Long: `Converge locates the gateway, ensures the vault, the certificate,
the identity binding and the HTTPS listener, in that order, and prints
a summary of the resulting state.

The run is idempotent: a second invocation against a converged scope
observes everything already in place and performs no mutations. A
failed run names the failing phase and can simply be re-invoked.

Without --state the run operates on a fresh in-memory scope, which is
only useful together with --seed-gateway as a rehearsal. With --state
the scope is loaded from and persisted back to the given file, so
repeated invocations see each other's results.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := klog.NewKlogr().WithName("converge")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		tp, err := tracing.Setup(ctx, tracing.Config{
			Enabled:      tracingEnabled,
			Endpoint:     tracingEndpoint,
			SamplingRate: tracingSampling,
			Insecure:     tracingInsecure,
		}, system.Version)
		if err != nil {
			return fmt.Errorf("setting up tracing: %w", err)
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				log.Error(err, "shutting down tracing")
			}
		}()

		cfg := config.Config{
			Subscription:    subscription,
			ResourceGroup:   resourceGroup,
			GatewayName:     gatewayName,
			VaultName:       vaultName,
			Domain:          domain,
			SecretName:      secretName,
			FrontendPort:    frontendPort,
			ForceRotate:     forceRotate,
			RenewBefore:     renewBefore,
			PropagationWait: propagationWait,
		}

		world := memory.New()
		if stateFile != "" {
			data, err := os.ReadFile(stateFile)
			switch {
			case err == nil:
				if err := world.Load(data); err != nil {
					return fmt.Errorf("loading state from %s: %w", stateFile, err)
				}
			case os.IsNotExist(err):
				log.Info("state file does not exist yet, starting empty", "path", stateFile)
			default:
				return fmt.Errorf("reading state from %s: %w", stateFile, err)
			}
		}
		if seedGateway {
			name := gatewayName
			if name == "" {
				name = "appgw"
			}
			world.AddGateway(cfg.Scope(), name)
		}

		api := world.API()
		api.Resources = retry.NewFinder(api.Resources, rate.NewLimiter(rate.Limit(findRateLimit), 1), log.WithName("finder"))

		orch := orchestrator.New(api, cfg,
			orchestrator.WithLogger(log),
			orchestrator.WithTracer(tp.Tracer()),
			orchestrator.WithConfirm(confirmPolicy(cmd)),
		)

		g, gctx := errgroup.WithContext(ctx)
		runCtx, done := context.WithCancel(gctx)
		defer done()

		if opsAddr != "" {
			srv := ops.New(opsAddr, log.WithName("ops"))
			g.Go(func() error { return srv.Run(runCtx) })
		}

		var summary *orchestrator.Summary
		g.Go(func() error {
			defer done()
			s, err := orch.Run(gctx)
			summary = s
			return err
		})
		runErr := g.Wait()

		if stateFile != "" {
			data, err := world.Snapshot()
			if err != nil {
				return fmt.Errorf("snapshotting state: %w", err)
			}
			if err := os.WriteFile(stateFile, data, 0o600); err != nil {
				return fmt.Errorf("writing state to %s: %w", stateFile, err)
			}
		}

		if summary != nil {
			out, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return fmt.Errorf("rendering summary: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
		}
		return runErr
	},
}

// confirmPolicy maps the prompt flags onto the rotation confirmation: --yes
// always rotates, --non-interactive never prompts and keeps the current
// certificate, otherwise the operator is asked on the terminal.
func confirmPolicy(cmd *cobra.Command) certs.ConfirmFunc {
	if assumeYes {
		return func(string) bool { return true }
	}
	if nonInteractive {
		return nil
	}
	reader := bufio.NewReader(cmd.InOrStdin())
	return func(prompt string) bool {
		fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}

func init() {
	rootCmd.AddCommand(convergeCmd)

	convergeCmd.Flags().StringVar(&subscription, "subscription", os.Getenv("AZURE_SUBSCRIPTION_ID"), "subscription the scope lives in")
	convergeCmd.Flags().StringVar(&resourceGroup, "resource-group", os.Getenv("RESOURCE_GROUP"), "resource group to converge")
	convergeCmd.Flags().StringVar(&gatewayName, "gateway", os.Getenv("APPGW_NAME"), "gateway name, auto-detected when the group holds exactly one")
	convergeCmd.Flags().StringVar(&vaultName, "vault", os.Getenv("KEY_VAULT_NAME"), "vault name, auto-detected or derived from the gateway name")
	convergeCmd.Flags().StringVar(&domain, "domain", os.Getenv("DOMAIN_NAME"), "domain name used as certificate common name and backend host")
	convergeCmd.Flags().StringVar(&secretName, "secret-name", config.DefaultSecretName, "vault secret the certificate is stored under")
	convergeCmd.Flags().Int32Var(&frontendPort, "frontend-port", config.DefaultFrontendPort, "frontend port the HTTPS listener binds")
	convergeCmd.Flags().BoolVar(&forceRotate, "force-rotate", false, "regenerate the certificate even when the current one is still valid")
	convergeCmd.Flags().DurationVar(&renewBefore, "renew-before", config.DefaultRenewBefore, "offer regeneration this long before certificate expiry")
	convergeCmd.Flags().DurationVar(&propagationWait, "propagation-wait", config.DefaultPropagationWait, "grace period after creating a new role assignment")
	convergeCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "answer yes to all confirmation prompts")
	convergeCmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "never prompt, keep the current certificate on near-expiry")

	convergeCmd.Flags().StringVar(&stateFile, "state", "", "file the scope state is loaded from and persisted to")
	convergeCmd.Flags().BoolVar(&seedGateway, "seed-gateway", false, "seed a gateway with a plaintext topology before the run")
	convergeCmd.Flags().Float64Var(&findRateLimit, "find-rate-limit", 10, "resource lookups per second")

	convergeCmd.Flags().BoolVar(&tracingEnabled, "tracing-enabled", false, "enable trace export")
	convergeCmd.Flags().StringVar(&tracingEndpoint, "tracing-endpoint", "localhost:4317", "OTLP collector endpoint")
	convergeCmd.Flags().Float64Var(&tracingSampling, "tracing-sampling-rate", 1.0, "ratio of traces to sample")
	convergeCmd.Flags().BoolVar(&tracingInsecure, "tracing-insecure", true, "disable TLS towards the OTLP collector")
}
