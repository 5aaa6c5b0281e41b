package reader

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"insurityflow/logger"
	"insurityflow/models"
	"insurityflow/pricing"
)

// reasonCodeLine is one record of the reason-code JSONL file produced by
// the attribution step.
type reasonCodeLine struct {
	CustomerID string `json:"user_id"`
	Period     string `json:"month"`
	TopReasons []struct {
		Feature   string  `json:"feature"`
		ShapValue float64 `json:"shap_value"`
		Rank      int     `json:"rank"`
	} `json:"top_reasons"`
}

// LoadReasonCodes reads reason annotations keyed by customer-period. A
// missing file yields an empty map with a warning; malformed lines are
// skipped with a warning. Neither is fatal to the run.
func LoadReasonCodes(path string) map[models.ReasonKey][]string {
	log := logger.GetLogger().WithComponent("reason_reader").WithFields(logger.Fields{"path": path})

	reasons := make(map[models.ReasonKey][]string)

	f, err := os.Open(path)
	if err != nil {
		log.WithError(err).Warn("reason codes file not available; pricing output will carry empty reason lists")
		return reasons
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	skipped := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry reasonCodeLine
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			skipped++
			log.WithError(err).WithFields(logger.Fields{"line": lineNum}).Warn("skipping malformed reason code line")
			continue
		}
		if entry.CustomerID == "" || entry.Period == "" {
			skipped++
			log.WithFields(logger.Fields{"line": lineNum}).Warn("skipping reason code line without customer or period")
			continue
		}

		strs := make([]string, 0, len(entry.TopReasons))
		for _, r := range entry.TopReasons {
			strs = append(strs, pricing.FormatReason(r.Feature, r.ShapValue))
		}
		reasons[models.ReasonKey{CustomerID: entry.CustomerID, Period: entry.Period}] = strs
	}
	if err := scanner.Err(); err != nil {
		log.WithError(err).Warn(fmt.Sprintf("stopped reading reason codes after line %d", lineNum))
	}

	log.WithFields(logger.Fields{
		"customer_periods": len(reasons),
		"skipped_lines":    skipped,
	}).Info("reason codes loaded")
	logger.RecordStageRecords("reason_reader", len(reasons), 0)

	return reasons
}
