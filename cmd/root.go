package cmd

import (
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/relloyd/sparkify/actions"
	"github.com/relloyd/sparkify/config"
	c "github.com/relloyd/sparkify/constants"
	"github.com/spf13/cobra"
)

var (
	// Default values may be set at compile time.
	version   = "0.1.0"
	buildDate = "2020-01-02T03:04+0500"
)

var rootCmd = &cobra.Command{
	Use:   "sparkify",
	Short: "Build the Sparkify data lake tables from song and event logs",
	Long: `Sparkify reads the song catalog and user event logs as JSON and writes the songs, artists, users,
time and songplays tables as Parquet. Locations may be local directories or s3:// (s3a://) URLs.

Settings are read from the file named by SPK_CONFIG_FILE, ./dl.yaml or ~/.sparkify/dl.yaml,
then from the environment, for example:

  SPK_INPUT_DATA=s3a://udacity-dend/ SPK_OUTPUT_DATA=/tmp/sparkify AWS_REGION=us-west-2 sparkify`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline()
	},
}

func runPipeline() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	return actions.RunPipeline(cfg)
}

// lambdaMode is true when the pipeline should run as an AWS Lambda handler.
func lambdaMode() bool {
	b, _ := strconv.ParseBool(os.Getenv(c.EnvVarLambdaMode))
	return b
}

// Execute runs the root command, or starts the Lambda handler in lambda mode.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if lambdaMode() {
		lambda.Start(runPipeline)
		return
	}
	if err := rootCmd.Execute(); err != nil {
		// Execute() prints the error.
		os.Exit(1)
	}
}
