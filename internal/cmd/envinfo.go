package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blockstreet/blockstreet/internal/config"
	"github.com/blockstreet/blockstreet/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, rate limit and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		version := crucible.GetVersion()

		log.Info("=== BlockStreet Environment Information ===")
		log.Info("")

		log.Info("Application:")
		log.Info("  Name:       " + config.AppName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		log.Info("")

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		configFile := cfgFile
		if strings.TrimSpace(configFile) == "" {
			configFile = config.DefaultConfigPath()
		}

		log.Info("Configuration:")
		log.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		log.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		log.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		log.Info("  DB Driver:      "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		if strings.TrimSpace(cfg.Store.URL) != "" {
			log.Info("  DB URL:         "+cfg.Store.URL, zap.String("db_url", cfg.Store.URL))
		} else {
			log.Info("  DB Path:        "+cfg.Store.Path, zap.String("db_path", cfg.Store.Path))
		}
		log.Info(fmt.Sprintf("  Metrics Port:   %d", cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		log.Info("  Config File:    "+configFile, zap.String("config_file", configFile))
		log.Info("")

		log.Info("Window Storage:")
		log.Info("  Driver:         "+cfg.Storage.Driver, zap.String("storage_driver", cfg.Storage.Driver))
		if usesRedis(cfg) {
			log.Info("  Redis Addr:     "+cfg.Redis.Addr, zap.String("redis_addr", cfg.Redis.Addr))
			log.Info(fmt.Sprintf("  Redis DB:       %d", cfg.Redis.DB))
			if strings.TrimSpace(cfg.Redis.Password) != "" {
				log.Info("  Redis Password: (set)")
			}
		}
		log.Info("")

		log.Info("Rate Limits:")
		policies, err := cfg.RateLimits.Resolve()
		if err != nil {
			log.Warn("Rate limit policies invalid", zap.Error(err))
		} else {
			actions, _ := selectActions(policies, "")
			for _, action := range actions {
				policy := policies[action]
				log.Info(fmt.Sprintf("  %-17s %d per %s (key %s)", string(action)+":", policy.MaxActions, policy.Window, policy.KeyPrefix),
					zap.String("action", string(action)),
					zap.Int("max_actions", policy.MaxActions),
					zap.Duration("window", policy.Window))
			}
		}
		if strings.TrimSpace(cfg.RateLimits.PolicyFile) != "" {
			log.Info("  Policy File:    " + cfg.RateLimits.PolicyFile)
		}
		log.Info("")

		log.Info("Feed:")
		log.Info(fmt.Sprintf("  Post Page Size:    %d", cfg.Feed.PostPageSize))
		log.Info(fmt.Sprintf("  Comment Page Size: %d", cfg.Feed.CommentPageSize))
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
