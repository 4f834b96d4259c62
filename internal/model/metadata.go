// Package model trains, stores, and applies churn scoring models on top of
// the labeled feature table the pipeline produces.
//
// Models live in a directory-backed registry as JSON pairs: <name>.json holds
// the model parameters, <name>_meta.json holds the metadata consumers need to
// pick and audit a model without loading it.
package model

import "time"

// Algorithm names recorded in metadata.
const (
	AlgorithmLogistic = "logistic_regression"
)

// Metadata describes a trained model.
type Metadata struct {
	ModelVersion      string             `json:"model_version"`
	Algorithm         string             `json:"model_type"`
	AUCScore          float64            `json:"auc_score"`
	FeatureNames      []string           `json:"feature_names"`
	FeatureImportance map[string]float64 `json:"feature_importance"`
	TrainingDate      time.Time          `json:"training_date"`
	Target            string             `json:"target"`
	TrainRows         int                `json:"train_rows"`
	TestRows          int                `json:"test_rows"`
	LabelObserved     bool               `json:"label_observed"`
}
