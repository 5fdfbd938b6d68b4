package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/hupe1980/segfile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "SEGFILE"

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:          "segfile",
		Short:        "Store and retrieve segmented files",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if file := v.GetString("config"); file != "" {
				v.SetConfigFile(file)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("failed to read config %s: %w", file, err)
				}
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "Config file (yaml, json or toml)")
	flags.String("backend", "badger", "Storage backend: memory, badger, dynamodb, s3 or minio")
	flags.String("dir", "./segfile-data", "Badger data directory")
	flags.String("bucket", "", "S3 or MinIO bucket")
	flags.String("prefix", "", "Key prefix inside the bucket")
	flags.String("endpoint", "", "Service endpoint override (required for minio)")
	flags.String("region", "", "AWS region (defaults to the shared AWS config)")
	flags.String("access-key", "", "MinIO access key")
	flags.String("secret-key", "", "MinIO secret key")
	flags.Bool("insecure", false, "Use plain HTTP for MinIO")
	flags.String("segments-table", "segfile-segments", "DynamoDB segment table")
	flags.String("index-table", "segfile-index", "DynamoDB index table")
	flags.String("compress", "none", "Segment compression: none, lz4 or zstd")
	flags.String("cache-bytes", "0", "Read cache capacity (e.g. 64MiB); 0 disables it")
	flags.String("rate-bytes", "0", "Payload throughput limit per second (e.g. 10MB); 0 disables it")
	flags.Float64("rate-requests", 0, "Backend request limit per second; 0 disables it")
	flags.Int("read-ahead", segfile.DefaultReadAhead, "Segments fetched per read request")
	flags.String("log-level", "warn", "Log level: debug, info, warn or error")

	// Binding cannot fail for flags that exist.
	_ = v.BindPFlags(flags)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd.AddCommand(
		newPutCmd(v),
		newGetCmd(v),
		newListCmd(v),
		newStatCmd(v),
		newVerifyCmd(v),
		newOrphansCmd(v),
		newInitTablesCmd(v),
	)
	return cmd
}

// newLogger builds the logger shared by the catalog and the backend.
func newLogger(cmd *cobra.Command, v *viper.Viper) (*segfile.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log-level"))); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	return segfile.NewLogger(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})), nil
}

func parseBytes(v *viper.Viper, key string) (uint64, error) {
	n, err := humanize.ParseBytes(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid --%s: %w", key, err)
	}
	return n, nil
}
