package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	appconfig "insurityflow/config"
	"insurityflow/logger"
	"insurityflow/models"
)

// ParquetResult is the parquet rendering of one pricing result row. Reason
// strings are joined with "; " since each already carries its own
// micro-format.
type ParquetResult struct {
	CustomerID             string  `parquet:"name=user_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Period                 string  `parquet:"name=month, type=BYTE_ARRAY, convertedtype=UTF8"`
	BasePremium            float64 `parquet:"name=base_premium, type=DOUBLE"`
	PredictedLoss          float64 `parquet:"name=predicted_loss, type=DOUBLE"`
	BookAverage            float64 `parquet:"name=book_avg, type=DOUBLE"`
	RiskIndex              float64 `parquet:"name=risk_index, type=DOUBLE"`
	EWMAIndex              float64 `parquet:"name=ewma_index, type=DOUBLE"`
	TelematicsFactorCapped float64 `parquet:"name=telematics_factor_capped, type=DOUBLE"`
	FinalPremium           float64 `parquet:"name=final_premium, type=DOUBLE"`
	TopReasons             string  `parquet:"name=top_reasons, type=BYTE_ARRAY, convertedtype=UTF8"`
	IsFirstMonth           bool    `parquet:"name=is_first_month, type=BOOLEAN"`
	MonthlyCapped          bool    `parquet:"name=monthly_capped, type=BOOLEAN"`
	QuarterlyCapped        bool    `parquet:"name=quarterly_capped, type=BOOLEAN"`
}

// memoryFileWriter implements the ParquetFile interface for in-memory writing
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) { return mfw, nil }
func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error)  { return mfw, nil }

func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	// Write-only buffer; seeking is never needed when producing a fresh file.
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error)  { return mfw.buffer.Read(b) }
func (mfw *memoryFileWriter) Write(b []byte) (int, error) { return mfw.buffer.Write(b) }
func (mfw *memoryFileWriter) Close() error                { return nil }
func (mfw *memoryFileWriter) Bytes() []byte               { return mfw.buffer.Bytes() }

// ResultsWriter persists a pricing run: a deterministic JSON file locally,
// and optionally a parquet rendering uploaded to S3.
type ResultsWriter struct {
	config   *appconfig.Config
	s3Client *s3.Client
	log      *logger.Log
}

func NewResultsWriter(cfg *appconfig.Config) (*ResultsWriter, error) {
	log := logger.GetLogger()

	w := &ResultsWriter{config: cfg, log: log}

	if !cfg.Storage.S3.Enabled {
		return w, nil
	}

	ctx := context.Background()

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Storage.S3.Region),
	}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := awsConfig.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	w.s3Client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Storage.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
		}
		o.UsePathStyle = cfg.Storage.S3.PathStyle
	})

	log.WithComponent("results_writer").WithFields(logger.Fields{
		"bucket":     cfg.Storage.S3.Bucket,
		"region":     cfg.Storage.S3.Region,
		"endpoint":   cfg.Storage.S3.Endpoint,
		"path_style": cfg.Storage.S3.PathStyle,
	}).Info("s3 upload enabled")

	return w, nil
}

// WriteLocal writes the results as an indented JSON array. Output bytes are
// a pure function of the results, so rerunning the engine over unchanged
// input rewrites an identical file.
func (w *ResultsWriter) WriteLocal(results []models.PricingResult, path string) error {
	log := w.log.WithComponent("results_writer").WithFields(logger.Fields{
		"path":    path,
		"records": len(results),
	})

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pricing results: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write pricing results: %w", err)
	}

	log.WithFields(logger.Fields{"file_size": len(data)}).Info("pricing results written")
	logger.RecordStageRecords("results_writer", len(results), len(data))

	return nil
}

// Upload renders the results to an in-memory parquet file and uploads it
// under a run-date partitioned key. No-op unless S3 storage is enabled.
func (w *ResultsWriter) Upload(ctx context.Context, results []models.PricingResult, runAt time.Time) error {
	if w.s3Client == nil {
		return nil
	}

	key := w.generateS3Key(runAt)
	log := w.log.WithComponent("results_writer").WithFields(logger.Fields{
		"s3_key":  key,
		"records": len(results),
	})

	data, err := w.createParquetFile(results)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}

	if _, err := w.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.config.Storage.S3.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}); err != nil {
		log.WithError(err).
			WithEnv("S3_BUCKET").
			WithFields(logger.Fields{"bucket": w.config.Storage.S3.Bucket}).
			Error("failed to upload to S3")
		return fmt.Errorf("failed to upload pricing results: %w", err)
	}

	log.WithFields(logger.Fields{"file_size": len(data)}).Info("pricing results uploaded")
	logger.RecordStageRecords("s3_upload", len(results), len(data))

	return nil
}

func (w *ResultsWriter) generateS3Key(runAt time.Time) string {
	var parts []string
	if prefix := strings.Trim(w.config.Storage.S3.Prefix, "/"); prefix != "" {
		parts = append(parts, prefix)
	}
	parts = append(parts, fmt.Sprintf("run_date=%s", runAt.UTC().Format("2006-01-02")))

	filename := fmt.Sprintf("pricing_results_%s_%s.parquet",
		runAt.UTC().Format("20060102150405"),
		uuid.New().String()[:8])

	key := filepath.Join(append(parts, filename)...)
	return filepath.ToSlash(key)
}

func (w *ResultsWriter) createParquetFile(results []models.PricingResult) ([]byte, error) {
	fw := newMemoryFileWriter()

	pw, err := writer.NewParquetWriter(fw, new(ParquetResult), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	switch w.config.Writer.Formats.Parquet.Compression {
	case "snappy":
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
	case "gzip":
		pw.CompressionType = parquet.CompressionCodec_GZIP
	default:
		pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED
	}

	for _, res := range results {
		record := ParquetResult{
			CustomerID:             res.CustomerID,
			Period:                 res.Period,
			BasePremium:            res.BasePremium,
			PredictedLoss:          res.PredictedLoss,
			BookAverage:            res.BookAverage,
			RiskIndex:              res.RiskIndex,
			EWMAIndex:              res.EWMAIndex,
			TelematicsFactorCapped: res.TelematicsFactorCapped,
			FinalPremium:           res.FinalPremium,
			TopReasons:             strings.Join(res.TopReasons, "; "),
			IsFirstMonth:           res.IsFirstMonth,
			MonthlyCapped:          res.MonthlyCapped,
			QuarterlyCapped:        res.QuarterlyCapped,
		}

		if err := pw.Write(record); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet file: %w", err)
	}

	return fw.Bytes(), nil
}
