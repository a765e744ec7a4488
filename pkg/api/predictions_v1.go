// pkg/api/predictions_v1.go
package api

// PredictionV1 is the stable JSON/JSONL schema for one screened sequence.
// Keep fields, names, and types stable. Add new fields only with ",omitempty".
type PredictionV1 struct {
	File       string        `json:"file,omitempty"`
	SequenceID string        `json:"sequence_id"`
	IsARG      bool          `json:"is_arg"`
	BinaryProb float64       `json:"binary_prob"`
	ARGClass   *string       `json:"arg_class"`  // null unless is_arg
	ClassProb  *float64      `json:"class_prob"` // null unless is_arg
	TopClasses []ClassProbV1 `json:"top_classes,omitempty"`
}

// ClassProbV1 is one entry of a top-k class list.
type ClassProbV1 struct {
	Class string  `json:"class"`
	Prob  float64 `json:"prob"`
}

// SequenceV1 is one input of a prediction request.
type SequenceV1 struct {
	ID       string `json:"id"`
	Sequence string `json:"sequence"`
}

// PredictRequestV1 is the body of POST /v1/predict.
type PredictRequestV1 struct {
	Sequences []SequenceV1 `json:"sequences"`
	Threshold *float64     `json:"threshold,omitempty"`
	TopK      *int         `json:"top_k,omitempty"`
}

// PredictResponseV1 answers both prediction routes.
type PredictResponseV1 struct {
	Predictions []PredictionV1 `json:"predictions"`
}

// ClassesV1 lists the class names in model order.
type ClassesV1 struct {
	Classes []string `json:"classes"`
}

// ErrorV1 is returned with every non-2xx response.
type ErrorV1 struct {
	Error string `json:"error"`
}
