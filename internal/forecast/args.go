package forecast

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidInput marks request payloads rejected before any script runs.
var ErrInvalidInput = errors.New("invalid input")

// TrainArgs builds the training script's positional arguments:
//
//	argv[1] temperatures series
//	argv[2] consumptions series
func TrainArgs(in TrainInput) []string {
	return []string{in.Temperatures, in.Consumptions}
}

// PredictArgs builds the prediction script's positional arguments:
//
//	argv[1] temperatures series
//	argv[2] previous consumptions series
//	argv[3] coefficients, comma-joined decimals without brackets
//	argv[4] intercept, decimal
func PredictArgs(in PredictInput) []string {
	return []string{
		in.Temperatures,
		in.PreviousConsumptions,
		FormatCoefficients(in.Coefficients),
		FormatFloat(in.Intercept),
	}
}

// FormatCoefficients joins values as "0.1,0.2,3".
func FormatCoefficients(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = FormatFloat(v)
	}
	return strings.Join(parts, ",")
}

// FormatFloat renders v in the shortest plain decimal form.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (in TrainInput) Validate() error {
	var errs []error

	if strings.TrimSpace(in.Temperatures) == "" {
		errs = append(errs, fmt.Errorf("%w: temperatures is required", ErrInvalidInput))
	}
	if strings.TrimSpace(in.Consumptions) == "" {
		errs = append(errs, fmt.Errorf("%w: consumptions is required", ErrInvalidInput))
	}

	return errors.Join(errs...)
}

func (in PredictInput) Validate() error {
	var errs []error

	if strings.TrimSpace(in.Temperatures) == "" {
		errs = append(errs, fmt.Errorf("%w: temperatures is required", ErrInvalidInput))
	}
	if strings.TrimSpace(in.PreviousConsumptions) == "" {
		errs = append(errs, fmt.Errorf("%w: previousConsumptions is required", ErrInvalidInput))
	}
	if len(in.Coefficients) == 0 {
		errs = append(errs, fmt.Errorf("%w: coefficients is required", ErrInvalidInput))
	}
	for i, c := range in.Coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			errs = append(errs, fmt.Errorf("%w: coefficients[%d] is not finite", ErrInvalidInput, i))
		}
	}
	if math.IsNaN(in.Intercept) || math.IsInf(in.Intercept, 0) {
		errs = append(errs, fmt.Errorf("%w: intercept is not finite", ErrInvalidInput))
	}

	return errors.Join(errs...)
}
