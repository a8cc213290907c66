package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/spf13/cobra"

	"github.com/KevinZhao/s3sync/internal/logger"
	"github.com/KevinZhao/s3sync/internal/telemetry"
	"github.com/KevinZhao/s3sync/pkg/config"
	"github.com/KevinZhao/s3sync/pkg/launcher/ecs"
	"github.com/KevinZhao/s3sync/pkg/mirror"
	"github.com/KevinZhao/s3sync/pkg/mirrormetrics"
	"github.com/KevinZhao/s3sync/pkg/queue/sqs"
)

func runDispatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Mirror.RequestTimeout*4)
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "mirror-dispatch",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	ctx, span := telemetry.StartDispatchSpan(ctx)
	defer span.End()

	sqsClient, err := sqs.NewSDKClient(ctx, sqs.ClientConfig{Region: cfg.Queue.Region, QueueURL: cfg.Queue.URL})
	if err != nil {
		return fmt.Errorf("init SQS client: %w", err)
	}
	queueClient := sqs.New(sqsClient, cfg.Queue.URL)

	ecsClient, err := ecs.NewSDKClient(ctx, ecs.ClientConfig{Region: cfg.Launcher.Region})
	if err != nil {
		return fmt.Errorf("init ECS client: %w", err)
	}
	launcherClient := ecs.New(ecsClient, cfg.Launcher.Cluster, cfg.Launcher.TaskDefinition, ecs.NetworkConfig{
		Subnets:        cfg.Launcher.Subnets,
		SecurityGroups: cfg.Launcher.SecurityGroups,
		AssignPublicIP: false,
	})

	registry := prometheus.NewRegistry()
	metrics := mirrormetrics.New(registry)

	dispatcher := mirror.NewDispatcher(queueClient, launcherClient, metrics, mirror.DispatcherConfig{
		MaxWorkers:           cfg.Mirror.MaxWorkers,
		TargetBacklogPerTask: cfg.Mirror.TargetBacklogPerTask,
		BurstStartLimit:      cfg.Mirror.BurstStartLimit,
		PreemptibleWeight:    cfg.Launcher.PreemptibleWeight,
		OnDemandWeight:       cfg.Launcher.OnDemandWeight,
		LaunchRetries:        cfg.Mirror.LaunchRetries,
	})

	start := time.Now()
	result, tickErr := dispatcher.Tick(ctx)
	elapsed := logger.Duration(start)

	if pushGateway != "" {
		if perr := push.New(pushGateway, "mirror_dispatch").Gatherer(registry).Push(); perr != nil {
			logger.Warn("pushgateway push failed", logger.Err(perr))
		}
	}

	if tickErr != nil {
		telemetry.RecordError(ctx, tickErr)
		logger.Error("dispatch tick failed", logger.Err(tickErr), logger.DurationMs(elapsed))
		return tickErr
	}

	logger.Info("dispatch tick complete",
		"desired", result.Desired, "to_start", result.ToStart, "launched", result.Launched,
		logger.DurationMs(elapsed))
	return nil
}
