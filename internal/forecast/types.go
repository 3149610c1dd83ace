package forecast

// Operation names, also used as metric and stats labels.
const (
	OperationTrain   = "train"
	OperationPredict = "predict"
)

// Marker field names that a successful script result line must carry.
var (
	TrainMarkers   = []string{`"coefficients"`}
	PredictMarkers = []string{`"date"`}
)

// TrainInput is the body of a training request. Both series are opaque
// JSON text handed to the script unchanged.
type TrainInput struct {
	Temperatures string `json:"temperatures"`
	Consumptions string `json:"consumptions"`
}

// PredictInput is the body of a prediction request.
type PredictInput struct {
	Temperatures         string    `json:"temperatures"`
	PreviousConsumptions string    `json:"previousConsumptions"`
	Coefficients         []float64 `json:"coefficients"`
	Intercept            float64   `json:"intercept"`
}

// TrainingOutput wraps a training result line.
type TrainingOutput struct {
	Training string `json:"training"`
}

// PredictionOutput wraps a prediction result line.
type PredictionOutput struct {
	Prediction string `json:"prediction"`
}

// Prediction is one forecast day.
type Prediction struct {
	Date        string  `json:"date"`
	Consumption float64 `json:"consumption"`
}

// PredictionList is the parsed form of a prediction result.
type PredictionList struct {
	PredictionList []Prediction `json:"predictionList"`
}
