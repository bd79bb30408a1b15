package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	errwrap "github.com/blockstreet/blockstreet/internal/errors"
	"github.com/blockstreet/blockstreet/internal/observability"
	"github.com/blockstreet/blockstreet/internal/server/handlers"
)

var healthTimeout time.Duration

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Run a self-health check: version info, configuration, and a ping of every configured backend.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		log.Info("Running health check...")

		if versionInfo.Version == "" {
			log.Error("❌ FAIL: Version information missing")
			ExitWithCode(log, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewInternalError("Version information missing"))
			return
		}
		log.Debug("Version check passed", zap.String("version", versionInfo.Version))
		log.Info("✅ Version information available")

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Configuration invalid", errwrap.WrapValidationError(cmd.Context(), err, "configuration invalid"))
			return
		}
		log.Info("✅ Configuration valid")

		rt, err := openRuntime(cmd.Context(), cfg)
		if err != nil {
			ExitWithCode(log, foundry.ExitExternalServiceUnavailable, "Backends unavailable", errwrap.WrapDatabaseError(cmd.Context(), err, "backends unavailable"))
			return
		}
		defer rt.Close() // nolint:errcheck // best-effort cleanup

		failed := runHealthChecks(cmd.Context(), rt.healthCheckers(), healthTimeout)
		for _, name := range sortedKeys(failed) {
			log.Error(fmt.Sprintf("❌ FAIL: %s", name), zap.Error(failed[name]))
		}
		if len(failed) > 0 {
			_ = rt.Close()
			ExitWithCode(log, foundry.ExitExternalServiceUnavailable, "Backend health checks failed", errwrap.NewServiceUnavailableError("backend health checks failed"))
			return
		}
		log.Info("✅ Backends reachable")

		log.Info("")
		log.Info("✅ All health checks passed")
	},
}

// runHealthChecks pings every checker concurrently and returns the failures.
func runHealthChecks(ctx context.Context, checkers map[string]handlers.HealthChecker, timeout time.Duration) map[string]error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	names := sortedKeys(checkers)
	results := make([]error, len(names))

	var g errgroup.Group
	for i, name := range names {
		checker := checkers[name]
		g.Go(func() error {
			results[i] = checker.CheckHealth(ctx)
			return nil
		})
	}
	_ = g.Wait()

	failed := map[string]error{}
	for i, name := range names {
		if results[i] != nil {
			failed[name] = results[i]
		}
	}
	return failed
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", 5*time.Second, "Timeout for backend pings")
	rootCmd.AddCommand(healthCmd)
}
