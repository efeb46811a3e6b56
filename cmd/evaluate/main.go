// Package main provides the offline evaluation tool for the rule engine.
//
// Usage:
//
//	evaluate samples.csv                 # CSV with text,stage columns
//	evaluate --encoding big5 chat.txt    # one message per line
//	evaluate --rules rules.yaml data.csv # evaluate a candidate dictionary
//	evaluate publish-rules rules.yaml    # validate and upload to R2
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/garyellow/scamguard-linebot-go/internal/config"
	"github.com/garyellow/scamguard-linebot-go/internal/detection"
	"github.com/garyellow/scamguard-linebot-go/internal/logger"
	"github.com/garyellow/scamguard-linebot-go/internal/r2client"
)

var (
	flagWorkers  int
	flagEncoding string
	flagRules    string
	flagKey      string
)

var rootCmd = &cobra.Command{
	Use:   "evaluate [file...]",
	Short: "Evaluate the rule engine against labelled or unlabelled messages",
	Long: `Runs rule-only detection over every message in the input files and
prints the stage distribution. When the input is a CSV with a stage column,
accuracy and a confusion matrix are printed as well.

Files ending in .csv are read as text,stage rows (a header row is skipped).
Anything else is read as one message per line.`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runEvaluate,
}

var publishCmd = &cobra.Command{
	Use:   "publish-rules <file>",
	Short: "Validate a rule dictionary and upload it to R2",
	Long: `Parses the YAML dictionary with the same loader the server uses and
uploads it under --key. Keys ending in .zst are stored zstd-compressed.

R2 credentials are read from R2_ENDPOINT, R2_ACCESS_KEY_ID,
R2_SECRET_ACCESS_KEY and R2_BUCKET_NAME (a .env file is honored).`,
	Args: cobra.ExactArgs(1),
	RunE: runPublish,
}

func init() {
	rootCmd.Flags().IntVarP(&flagWorkers, "workers", "w", 8, "concurrent detection workers")
	rootCmd.Flags().StringVar(&flagEncoding, "encoding", "utf-8", "input encoding: utf-8 or big5")
	rootCmd.Flags().StringVar(&flagRules, "rules", "", "YAML rule dictionary (default: built-in rules)")

	publishCmd.Flags().StringVar(&flagKey, "key", "rules.yaml.zst", "object key in the bucket")
	rootCmd.AddCommand(publishCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	enc, err := parseEncoding(flagEncoding)
	if err != nil {
		return err
	}

	var rules *detection.RuleSet
	if flagRules != "" {
		rules, err = loadRulesFile(flagRules)
		if err != nil {
			return err
		}
	}

	var samples []sample
	for _, path := range args {
		s, err := readSamplesFile(path, enc)
		if err != nil {
			return err
		}
		samples = append(samples, s...)
	}
	if len(samples) == 0 {
		return fmt.Errorf("no messages found in %s", strings.Join(args, ", "))
	}

	d := detection.New(detection.Config{
		Rules:  rules,
		Logger: logger.NewWithWriter("error", os.Stderr),
	})

	rep, err := evaluate(cmd.Context(), d, samples, flagWorkers)
	if err != nil {
		return err
	}
	rep.Print(cmd.OutOrStdout())
	return nil
}

func runPublish(cmd *cobra.Command, args []string) error {
	rs, err := loadRulesFile(args[0])
	if err != nil {
		return err
	}
	body, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	_ = godotenv.Load()
	client, err := r2client.New(cmd.Context(), r2client.Config{
		Endpoint:    os.Getenv(config.EnvR2Endpoint),
		AccessKeyID: os.Getenv(config.EnvR2AccessKeyID),
		SecretKey:   os.Getenv(config.EnvR2SecretAccessKey),
		BucketName:  os.Getenv(config.EnvR2BucketName),
	})
	if err != nil {
		return err
	}

	etag, err := client.Upload(cmd.Context(), flagKey, body, "application/yaml")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (version %s, %d labels, etag %s)\n",
		flagKey, rs.Version(), len(rs.Labels()), etag)
	return nil
}

func loadRulesFile(path string) (*detection.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rs, err := detection.LoadRuleSet(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return rs, nil
}
