package forecast

import (
	"context"
	"log/slog"

	"github.com/haskel/agupredict/internal/config"
	"github.com/haskel/agupredict/internal/invoker"
)

// Runner executes one script invocation.
type Runner interface {
	Invoke(ctx context.Context, req invoker.Request) (*invoker.Result, error)
}

// Service maps train and predict requests onto script invocations. It
// is the only place that knows which script and argument order each
// operation uses.
type Service struct {
	runner        Runner
	trainScript   string
	predictScript string
	logger        *slog.Logger
}

func NewService(runner Runner, scripts config.ScriptsConfig, logger *slog.Logger) *Service {
	return &Service{
		runner:        runner,
		trainScript:   scripts.TrainScript,
		predictScript: scripts.PredictScript,
		logger:        logger,
	}
}

// Train runs the training script for agu. agu may be empty.
func (s *Service) Train(ctx context.Context, agu string, in TrainInput) (*invoker.Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	s.logger.Debug("training requested", "agu", agu)

	return s.runner.Invoke(ctx, invoker.Request{
		Operation: OperationTrain,
		Script:    s.trainScript,
		Args:      TrainArgs(in),
		Markers:   TrainMarkers,
	})
}

// Predict runs the prediction script for agu. agu may be empty.
func (s *Service) Predict(ctx context.Context, agu string, in PredictInput) (*invoker.Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	s.logger.Debug("prediction requested", "agu", agu, "coefficients", len(in.Coefficients))

	return s.runner.Invoke(ctx, invoker.Request{
		Operation: OperationPredict,
		Script:    s.predictScript,
		Args:      PredictArgs(in),
		Markers:   PredictMarkers,
	})
}
