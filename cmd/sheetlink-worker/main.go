package main

import (
	"context"
	"os"
	"time"

	"sheetlink/internal/amqp"
	"sheetlink/internal/cli"
	"sheetlink/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting sheetlink-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSnapshotStore(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	connector := cli.InitConnector(context.Background(), logger, cfg)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	pushWorker := worker.NewPushWorker(repo, connector)
	pushWorker.CreateMissing = os.Getenv("PUSH_CREATE_MISSING") == "true"

	ctx, cancel, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		_ = amqpClient.Close()
	})
	defer cancel()

	go func() {
		handler := func(msg *amqp.PushRequestMessage) error {
			return pushWorker.HandlePushRequest(ctx, msg)
		}
		if err := amqpClient.ConsumePushRequests(ctx, handler); err != nil {
			if ctx.Err() == nil {
				logger.Error("Message consumption failed", "error", err)
			}
			cancel()
		}
	}()

	logger.Info("Worker ready", "queue", cfg.AMQPQueue, "exchange", cfg.AMQPExchange)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
