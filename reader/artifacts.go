package reader

import (
	"fmt"
	"os"
	"path/filepath"

	"insurityflow/logger"
)

// Model artifact filenames owned by the training step. The boosting model
// is the primary pricing input; the GLM is a comparison baseline only.
const (
	PrimaryModelArtifact   = "lgbm.pkl"
	SecondaryModelArtifact = "glm.pkl"
)

// CheckModelArtifacts verifies the model directory produced by the training
// step. A missing primary artifact is fatal. A missing secondary artifact
// puts the run into degraded mode: the caller must treat GLM predictions as
// zero, which only affects the comparison metric, never the premium.
func CheckModelArtifacts(dir string) (degraded bool, err error) {
	log := logger.GetLogger().WithComponent("model_artifacts").WithFields(logger.Fields{"dir": dir})

	primary := filepath.Join(dir, PrimaryModelArtifact)
	if _, err := os.Stat(primary); err != nil {
		return false, fmt.Errorf("primary model artifact not found: %s: %w", primary, err)
	}

	secondary := filepath.Join(dir, SecondaryModelArtifact)
	if _, err := os.Stat(secondary); err != nil {
		log.WithError(err).Warn("secondary GLM artifact missing; GLM predictions will be treated as zero")
		return true, nil
	}

	log.Info("model artifacts present")
	return false, nil
}
