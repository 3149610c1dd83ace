package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haskel/agupredict/internal/config"
	"github.com/haskel/agupredict/internal/forecast"
	"github.com/haskel/agupredict/internal/invoker"
	"github.com/haskel/agupredict/internal/logger"
)

// readInputFile decodes a JSON request body from path, or from stdin when
// path is "-".
func readInputFile(path string, v any) error {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("failed to decode input: %w", err)
	}
	return nil
}

// parseCoefficients accepts "0.1,0.2" as well as "[0.1, 0.2]".
func parseCoefficients(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	values := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid coefficient %q", p)
		}
		values = append(values, v)
	}
	return values, nil
}

// commandContext is the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// apiPath appends the optional AGU segment.
func apiPath(base, agu string) string {
	if agu == "" {
		return base
	}
	return base + "/" + agu
}

// localLogger is quiet unless --verbose, where script output lines show.
func localLogger() *slog.Logger {
	if verbose {
		return logger.NewWithWriter(os.Stderr, "debug", "text")
	}
	return logger.NewWithWriter(os.Stderr, "warn", "text")
}

// newLocalService runs the scripts in this process, the same way the
// server would.
func newLocalService() (*forecast.Service, error) {
	cfg, err := config.Resolve(cfgFile)
	if err != nil {
		return nil, err
	}

	log := localLogger()
	inv := invoker.New(invoker.OptionsFromConfig(cfg.Scripts), log)
	return forecast.NewService(inv, cfg.Scripts, log), nil
}

// describeFailure turns an invocation error into a one-line CLI error
// that, unlike the HTTP answer, may show the script's diagnostic.
func describeFailure(operation string, err error) error {
	var invErr *invoker.Error
	if !errors.As(err, &invErr) {
		return err
	}
	if invErr.Diagnostic != "" {
		return fmt.Errorf("%s failed (%s): %s", operation, invErr.Kind, invErr.Diagnostic)
	}
	return fmt.Errorf("%s failed (%s)", operation, invErr.Kind)
}
