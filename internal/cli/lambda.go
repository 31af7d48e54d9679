package cli

import (
	"fmt"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"github.com/picklr-io/ggprov/internal/journal"
	"github.com/picklr-io/ggprov/internal/logging"
	"github.com/picklr-io/ggprov/internal/metrics"
	"github.com/picklr-io/ggprov/internal/respond"
)

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Serve custom resource requests as a Lambda function",
	Long: `Starts the Lambda runtime loop. Each CloudFormation custom resource
request is reconciled and answered through its pre-signed response URL.

When journal-bucket is set, outcomes are recorded so redelivered
requests are answered without reconciling again. metrics-namespace
publishes per-request counts and durations to CloudWatch, and
notify-topic-arn sends every failed request to SNS.`,
	RunE: runLambda,
}

func runLambda(cmd *cobra.Command, args []string) error {
	j, err := journal.Open(cmd.Context(), cfg.Journal)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}

	rec, err := metrics.Open(cmd.Context(), cfg.MetricsNamespace, cfg.Region)
	if err != nil {
		return fmt.Errorf("failed to open metrics: %w", err)
	}
	responder, err := respond.WithNotify(cmd.Context(), cfg.NotifyTopicARN, cfg.Region, respond.CloudFormation{})
	if err != nil {
		return fmt.Errorf("failed to open notifications: %w", err)
	}

	h := &respond.Handler{
		Reconciler: newDispatcher(cfg, newClient(cfg)),
		Responder:  responder,
		Journal:    j,
		Metrics:    rec,
	}

	logging.Info("starting lambda handler",
		"journal", cfg.Journal.Enabled(),
		"metrics", cfg.MetricsNamespace != "",
		"notify", cfg.NotifyTopicARN != "",
		"dry_run", cfg.DryRun)
	lambda.Start(h.HandleCFN)
	return nil
}
