package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/KevinZhao/s3sync/internal/logger"
	"github.com/KevinZhao/s3sync/internal/telemetry"
	"github.com/KevinZhao/s3sync/pkg/config"
	"github.com/KevinZhao/s3sync/pkg/mirror"
	"github.com/KevinZhao/s3sync/pkg/mirrormetrics"
	"github.com/KevinZhao/s3sync/pkg/objectstore"
	objs3 "github.com/KevinZhao/s3sync/pkg/objectstore/s3"
	"github.com/KevinZhao/s3sync/pkg/queue/sqs"
)

func runWorker(cmd *cobra.Command, args []string) error {
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

	id := workerID
	if id == "" {
		id = defaultWorkerID()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "mirror-worker",
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

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "mirror-worker",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("init profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	logger.Info("mirror-worker starting", "worker_id", id, "version", Version,
		"source_bucket", cfg.Source.Bucket, "target_bucket", cfg.Target.Bucket)

	sourceClient, err := objs3.NewClient(ctx, objs3.ClientConfig{
		Region:         cfg.Source.Region,
		Endpoint:       cfg.Source.Endpoint,
		ForcePathStyle: cfg.Source.ForcePathStyle,
	})
	if err != nil {
		return fmt.Errorf("init source S3 client: %w", err)
	}
	sourceStore := objs3.NewStore(objs3.StoreConfig{Client: sourceClient, Bucket: cfg.Source.Bucket})

	targetClient, err := objs3.NewClient(ctx, objs3.ClientConfig{
		Region:         cfg.Target.Region,
		Endpoint:       cfg.Target.Endpoint,
		ForcePathStyle: cfg.Target.ForcePathStyle,
	})
	if err != nil {
		return fmt.Errorf("init target S3 client: %w", err)
	}
	targetStore := objs3.NewStore(objs3.StoreConfig{
		Client:        targetClient,
		Bucket:        cfg.Target.Bucket,
		PartRetries:   cfg.Mirror.PartRetries,
		DeleteRetries: cfg.Mirror.DeleteRetries,
	})

	sqsClient, err := sqs.NewSDKClient(ctx, sqs.ClientConfig{Region: cfg.Queue.Region, QueueURL: cfg.Queue.URL})
	if err != nil {
		return fmt.Errorf("init SQS client: %w", err)
	}
	queueClient := sqs.New(sqsClient, cfg.Queue.URL)

	registry := prometheus.NewRegistry()
	metrics := mirrormetrics.New(registry)

	var metricsSrv *metricsServer
	if cfg.Metrics.Enabled {
		metricsSrv = startMetricsServer(registry, cfg.Metrics.Port)
		defer metricsSrv.Shutdown(context.Background())
	}

	copier := objectstore.NewCopier(objs3.NewSourceAdapter(sourceStore), targetStore, metrics, objectstore.CopierConfig{
		SourceBucket:      cfg.Source.Bucket,
		SingleCopyCeiling: cfg.Mirror.SingleCopyCeiling,
		PartSize:          cfg.Mirror.PartSize,
		CopyParallelism:   cfg.Mirror.CopyParallelism,
	})
	deleter := objectstore.NewDeleter(targetStore)

	worker := mirror.NewWorker(queueClient, copier, deleter, metrics, mirror.WorkerConfig{
		ID:                   id,
		SourceBucket:         cfg.Source.Bucket,
		PrefixFilter:         cfg.Mirror.PrefixFilter,
		WaitTime:             cfg.Mirror.WaitTime,
		EmptyPollsBeforeExit: cfg.Mirror.EmptyPollsBeforeExit,
		ExtendInterval:       cfg.Mirror.ExtendInterval,
		VisibilityTimeout:    cfg.Mirror.VisibilityTimeout,
		DrainDeadline:        cfg.Mirror.DrainDeadline,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		signal.Stop(sigCh)
		logger.Info("shutdown signal received, draining", "worker_id", id)
		cancel()
	}()

	code := worker.Run(ctx)
	logger.Info("mirror-worker exited", "worker_id", id, "exit_code", code)
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
