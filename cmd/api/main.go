package main

import (
	"context"
	"log"
	"net/http"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"llmfit/internal/executor"
	"llmfit/internal/gateway"
	"llmfit/internal/gateway/config"
	"llmfit/internal/llm"
	"llmfit/internal/registry"
	"llmfit/internal/report"
	"llmfit/internal/sequencer"
	"llmfit/internal/snapshot"
	"llmfit/internal/stages"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	client, err := buildLLMClient(context.Background(), cfg.LLM)
	if err != nil {
		log.Fatalf("init llm client: %v", err)
	}
	defer client.Close()

	snapStore := snapshot.FromEnv(cfg.Snapshot.PostgresDSN)

	var (
		reports  *report.S3Store
		archiver registry.Archiver
	)
	if cfg.Report.Enabled {
		reports, err = report.NewS3Store(report.S3Config{
			Endpoint:  cfg.Report.Endpoint,
			Region:    cfg.Report.Region,
			AccessKey: cfg.Report.AccessKey,
			SecretKey: cfg.Report.SecretKey,
			Bucket:    cfg.Report.Bucket,
			UseSSL:    cfg.Report.UseSSL,
		})
		if err != nil {
			log.Printf("report archive disabled: %v", err)
			reports = nil
		} else {
			archiver = reports
		}
	}

	seq := sequencer.New(stages.NewAnalyzer(client), snapStore, sequencer.Config{
		StageTimeout: cfg.Pipeline.StageTimeout,
		SnapshotTTL:  cfg.Pipeline.SnapshotTTL,
		Retry: executor.RetryOptions{
			MaxAttempts:  cfg.Pipeline.MaxAttempts,
			InitialDelay: cfg.Pipeline.InitialDelay,
			MaxDelay:     cfg.Pipeline.MaxDelay,
		},
	})
	reg, err := registry.New(seq, snapStore, registry.Options{Archiver: archiver})
	if err != nil {
		log.Fatalf("init registry: %v", err)
	}
	defer reg.Close()

	srv := gateway.NewServer(reg, reports)
	log.Printf("starting llmfit api on %s (env %s, llm %s)", cfg.Port, cfg.Env, client.Name())
	log.Fatal(http.ListenAndServe(cfg.Port, h2c.NewHandler(srv.Handler(), &http2.Server{})))
}

func buildLLMClient(ctx context.Context, cfg config.LLMConfig) (llm.Client, error) {
	var client llm.Client
	switch cfg.Provider {
	case "fake":
		client = llm.NewFakeClient(stages.FakeScript())
	default:
		gemini, err := llm.NewGeminiClient(ctx, cfg.Model)
		if err != nil {
			return nil, err
		}
		client = gemini
	}
	if cfg.RPS > 0 {
		client = llm.Wrap(client, llm.RateLimit(cfg.RPS, cfg.Burst))
	}
	return client, nil
}
