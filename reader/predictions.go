package reader

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"insurityflow/logger"
	"insurityflow/models"
)

// parquetPrediction mirrors the prediction table schema written by the
// upstream scoring step.
type parquetPrediction struct {
	CustomerID       string  `parquet:"name=user_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Period           string  `parquet:"name=month, type=BYTE_ARRAY, convertedtype=UTF8"`
	PredictedLoss    float64 `parquet:"name=lgb_predicted_loss, type=DOUBLE"`
	GLMPredictedLoss float64 `parquet:"name=glm_predicted_loss, type=DOUBLE"`
	BookAverage      float64 `parquet:"name=book_avg, type=DOUBLE"`
}

const predictionReadBatch = 1024

// ReadPredictions loads the full prediction table from path. The format is
// selected by extension: .parquet, or JSON lines for anything else. A
// missing or unreadable table is fatal to the run.
func ReadPredictions(path string) ([]models.PredictionRecord, error) {
	log := logger.GetLogger().WithComponent("prediction_reader").WithFields(logger.Fields{"path": path})

	start := time.Now()

	var records []models.PredictionRecord
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		records, err = readPredictionsParquet(path)
	default:
		records, err = readPredictionsJSONL(path)
	}
	if err != nil {
		return nil, err
	}

	log.WithFields(logger.Fields{"records": len(records)}).Info("prediction table loaded")
	logger.LogPerformanceEntry(log, "prediction_reader", "read_predictions", time.Since(start), logger.Fields{
		"records": len(records),
	})
	logger.RecordStageRecords("prediction_reader", len(records), 0)

	return records, nil
}

func readPredictionsParquet(path string) ([]models.PredictionRecord, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open prediction table: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(parquetPrediction), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet reader: %w", err)
	}
	defer pr.ReadStop()

	total := int(pr.GetNumRows())
	records := make([]models.PredictionRecord, 0, total)

	for read := 0; read < total; {
		n := predictionReadBatch
		if remaining := total - read; remaining < n {
			n = remaining
		}
		rows := make([]parquetPrediction, n)
		if err := pr.Read(&rows); err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
		for _, row := range rows {
			records = append(records, models.PredictionRecord{
				CustomerID:       row.CustomerID,
				Period:           row.Period,
				PredictedLoss:    row.PredictedLoss,
				GLMPredictedLoss: row.GLMPredictedLoss,
				BookAverage:      row.BookAverage,
			})
		}
		read += n
	}

	return records, nil
}

func readPredictionsJSONL(path string) ([]models.PredictionRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open prediction table: %w", err)
	}
	defer f.Close()

	var records []models.PredictionRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec models.PredictionRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			// The prediction table is a contract with the scoring step;
			// a row we cannot parse invalidates the whole run.
			return nil, fmt.Errorf("malformed prediction record at line %d: %w", lineNum, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan prediction table: %w", err)
	}

	return records, nil
}
