package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	appconfig "insurityflow/config"
	"insurityflow/logger"
	"insurityflow/models"
	"insurityflow/pricing"
	"insurityflow/reader"
	"insurityflow/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	inputPath := flag.String("input", "", "Path to the prediction table (parquet or JSONL)")
	modelsDir := flag.String("models", "", "Directory containing model artifacts")
	reasonsPath := flag.String("reasons", "", "Path to the reason codes JSONL file")
	outputPath := flag.String("output", "", "Output path for pricing results")

	flag.Parse()

	cfg, err := appconfig.LoadConfig(appconfig.ResolveConfigPath(*configPath))
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	// Flags win over config file paths so ad-hoc runs need no config edit.
	input := firstNonEmpty(*inputPath, cfg.Reader.PredictionsPath)
	modelsPath := firstNonEmpty(*modelsDir, cfg.Reader.ModelsDir)
	reasons := firstNonEmpty(*reasonsPath, cfg.Reader.ReasonCodesPath)
	output := firstNonEmpty(*outputPath, cfg.Writer.OutputPath)
	if input == "" || modelsPath == "" || output == "" {
		log.WithFields(logger.Fields{
			"input":  input,
			"models": modelsPath,
			"output": output,
		}).Error("input, models and output paths are required")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Insurityflow.Name,
		"version": cfg.Insurityflow.Version,
	}).Info("starting insurityflow pricing run")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch {
		logger.InitCloudWatch(cfg.Storage.S3.Region, cfg.Metrics.Namespace, cfg.Metrics.Dashboard)
	}

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, cfg.Logging.ReportInterval)
	}

	degraded, err := reader.CheckModelArtifacts(modelsPath)
	if err != nil {
		log.WithError(err).Error("model artifacts check failed")
		os.Exit(1)
	}
	if degraded && cfg.Pricing.BookAverageSource == appconfig.BookAverageSourceGLM {
		log.Error("book_average_source is 'glm' but the GLM artifact is missing")
		os.Exit(1)
	}

	records, err := reader.ReadPredictions(input)
	if err != nil {
		log.WithError(err).Error("failed to read prediction table")
		os.Exit(1)
	}
	if degraded {
		zeroGLMPredictions(records)
	}

	reasonCodes := reader.LoadReasonCodes(reasons)

	engine := pricing.NewEngine(cfg)
	results, summary, failures, err := engine.Run(ctx, records, reasonCodes)
	if err != nil {
		log.WithError(err).Error("pricing run failed")
		os.Exit(1)
	}

	resultsWriter, err := writer.NewResultsWriter(cfg)
	if err != nil {
		log.WithError(err).Error("failed to create results writer")
		os.Exit(1)
	}
	if err := resultsWriter.WriteLocal(results, output); err != nil {
		log.WithError(err).Error("failed to write pricing results")
		os.Exit(1)
	}
	if err := resultsWriter.Upload(ctx, results, time.Now()); err != nil {
		log.WithError(err).Error("failed to upload pricing results")
		os.Exit(1)
	}

	if len(failures) > 0 {
		for _, f := range failures {
			log.WithError(f.Err).WithFields(logger.Fields{"customer_id": f.CustomerID}).Error("customer failed pricing")
		}
		log.WithFields(logger.Fields{
			"failed_customers": summary.FailedCustomers,
		}).Error("pricing run completed with failed customers")
		os.Exit(2)
	}

	log.WithFields(logger.Fields{"records": summary.Records}).Info("pricing run completed successfully")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func zeroGLMPredictions(records []models.PredictionRecord) {
	for i := range records {
		records[i].GLMPredictedLoss = 0
	}
}
