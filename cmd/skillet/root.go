// Package skillet wires the command line interface; the root main
// package delegates here.
package skillet

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/skilletlabs/skillet/pkg/knowledge"
	"github.com/skilletlabs/skillet/pkg/logger"
	"github.com/skilletlabs/skillet/pkg/presenter"
	"github.com/skilletlabs/skillet/pkg/sessions"
	"github.com/skilletlabs/skillet/pkg/skills"
)

var out = presenter.New()

var rootCmd = &cobra.Command{
	Use:   "skillet",
	Short: "Resolve skills and knowledge, manage sessions, assemble prompt contexts",
	Long: `Skillet resolves skill and knowledge artefacts from a markdown content
store, tracks conversation sessions, and assembles bounded prompt
contexts for a downstream generation call.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
			return err
		}
		logger.SetLogFormat(viper.GetString("log_format"))
		out.SetQuiet(viper.GetBool("quiet"))
		return nil
	},
}

func init() {
	viper.SetEnvPrefix("SKILLET")
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillet")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig()

	flags := rootCmd.PersistentFlags()
	flags.String("content-root", defaultContentRoot(), "content store root (holds skills/ and knowledge/)")
	flags.String("session-store", "sqlite", "session store backend: sqlite or memory")
	flags.String("db-path", defaultDBPath(), "sqlite database path for the sqlite session store")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")
	flags.Bool("quiet", false, "suppress non-essential output")

	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")

	// Config keys are snake_case; flags are kebab-case.
	flags.VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
}

func defaultContentRoot() string {
	if root := os.Getenv("SKILLET_CONTENT_ROOT"); root != "" {
		return root
	}
	return "./content"
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./skillet.db"
	}
	return filepath.Join(home, ".skillet", "sessions.db")
}

func skillResolver() *skills.Resolver {
	return skills.NewResolver(viper.GetString("content_root"), skills.WithCache())
}

func knowledgeResolver() *knowledge.Resolver {
	return knowledge.NewResolver(viper.GetString("content_root"), knowledge.WithCache())
}

// sessionStore opens the configured session backend. The CLI defaults to
// sqlite since a memory store cannot outlive one invocation.
func sessionStore(ctx context.Context) (sessions.Store, error) {
	switch viper.GetString("session_store") {
	case "memory":
		return sessions.NewMemoryStore(), nil
	default:
		return sessions.NewSQLiteStore(ctx, viper.GetString("db_path"))
	}
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	rootCmd.AddCommand(skillCmd)
	rootCmd.AddCommand(knowledgeCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(assembleCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		out.Error(err, "")
		os.Exit(1)
	}
}
