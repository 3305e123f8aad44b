// Package forecast wraps the trained statistical model artifact: loading,
// feature derivation, inference and confidence scoring.
package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"demand_forecasting/pkg/core/prediction"
)

// Artifact is the serialized model package, immutable once loaded. The
// historical system trained in Python and exported the fitted estimator to
// this JSON form: regressor parameters, the fitted scaler, the exact feature
// order the estimator was fitted with, and its held-out accuracy metrics.
type Artifact struct {
	ModelName       string             `json:"model_name"`
	Model           Regressor          `json:"model"`
	Scaler          *StandardScaler    `json:"scaler,omitempty"`
	FeatureOrder    []string           `json:"feature_order"`
	AccuracyMetrics map[string]float64 `json:"accuracy_metrics"`
}

// Regressor holds the estimator parameters. Only linear-form estimators are
// supported: prediction = intercept + coefficients . features.
type Regressor struct {
	Kind         string    `json:"kind"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

// StandardScaler reproduces the fitted numeric transformer:
// x' = (x - mean) / scale, per feature position.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Transform scales the vector in place and returns it.
func (s *StandardScaler) Transform(vec []float64) []float64 {
	for i := range vec {
		if i < len(s.Mean) && i < len(s.Scale) && s.Scale[i] != 0 {
			vec[i] = (vec[i] - s.Mean[i]) / s.Scale[i]
		}
	}
	return vec
}

// Model is the process-wide forecast model. If the artifact location is
// absent or malformed the model is simply unavailable for the process
// lifetime: no retry, no reload. Lookups against the store keep working.
type Model struct {
	artifact *Artifact
}

// LoadModel reads the artifact from path. Load failures are logged and leave
// the model not ready rather than failing startup.
func LoadModel(path string) *Model {
	m := &Model{}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("[MODEL] artifact not available at %s: %v\n", path, err)
		fmt.Println("[MODEL] prediction generation disabled, store lookups still work")
		return m
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		fmt.Printf("[MODEL] malformed artifact %s: %v\n", path, err)
		return m
	}
	if artifact.Model.Kind != "linear" {
		fmt.Printf("[MODEL] unsupported regressor kind %q in %s\n", artifact.Model.Kind, path)
		return m
	}
	if len(artifact.Model.Coefficients) != len(artifact.FeatureOrder) {
		fmt.Printf("[MODEL] artifact %s has %d coefficients for %d features\n",
			path, len(artifact.Model.Coefficients), len(artifact.FeatureOrder))
		return m
	}

	m.artifact = &artifact
	fmt.Printf("[MODEL] %s loaded (%d features", m.ModelName(), len(artifact.FeatureOrder))
	if mae, ok := artifact.AccuracyMetrics["mae"]; ok {
		fmt.Printf(", MAE %.2f kg", mae)
	}
	fmt.Println(")")
	return m
}

// NewModelFromArtifact builds a ready model directly, for tests.
func NewModelFromArtifact(artifact *Artifact) *Model {
	return &Model{artifact: artifact}
}

// IsReady reports whether the artifact loaded successfully.
func (m *Model) IsReady() bool {
	return m.artifact != nil
}

// ModelName identifies the loaded artifact in generated records.
func (m *Model) ModelName() string {
	if m.artifact == nil || m.artifact.ModelName == "" {
		return "unknown"
	}
	return m.artifact.ModelName
}

// Predict derives features from the combination and its history, runs
// inference and scores confidence. history must be ordered by period
// ascending. Honors ctx cancellation at the inference boundary: a canceled
// combination produces no value.
func (m *Model) Predict(ctx context.Context, productID, customerID string, year, month int, history []*prediction.PredictionRecord) (float64, float64, error) {
	if !m.IsReady() {
		return 0, 0, prediction.ErrModelUnavailable
	}
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	features := DeriveFeatures(productID, customerID, year, month, history)
	vec := assemble(features, m.artifact.FeatureOrder)
	if m.artifact.Scaler != nil {
		vec = m.artifact.Scaler.Transform(vec)
	}

	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	quantity := m.artifact.Model.Intercept
	for i, coef := range m.artifact.Model.Coefficients {
		quantity += coef * vec[i]
	}

	return quantity, m.confidence(quantity), nil
}

// Confidence bounds: never reported as a coin flip or worse, never above
// certainty.
const (
	minConfidence     = 0.5
	maxConfidence     = 1.0
	defaultConfidence = 0.7
)

// confidence scores a prediction against the model's historical mean
// absolute error: predictions large relative to the typical error score
// higher. Without a known MAE the default applies.
func (m *Model) confidence(predicted float64) float64 {
	mae, ok := m.artifact.AccuracyMetrics["mae"]
	if !ok {
		return defaultConfidence
	}
	if predicted > 0 {
		return clamp(1-mae/(predicted+mae), minConfidence, maxConfidence)
	}
	return minConfidence
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
