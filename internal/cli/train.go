package cli

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/haskel/agupredict/internal/forecast"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the consumption model",
	Long: `Send a training request to the server, or run the training script
locally with --local.

Examples:
  agupredict train --temperatures '[1.5, 2.0]' --consumptions '[120, 118]'
  agupredict train --agu boiler-7 -i request.json
  agupredict train --local -i - < request.json`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

var (
	trainAGU          string
	trainInput        string
	trainTemperatures string
	trainConsumptions string
	trainLocal        bool
)

func init() {
	trainCmd.Flags().StringVar(&trainAGU, "agu", "", "AGU identifier")
	trainCmd.Flags().StringVarP(&trainInput, "input", "i", "", "JSON request body file (- for stdin)")
	trainCmd.Flags().StringVar(&trainTemperatures, "temperatures", "", "temperature series")
	trainCmd.Flags().StringVar(&trainConsumptions, "consumptions", "", "consumption series")
	trainCmd.Flags().BoolVar(&trainLocal, "local", false, "run the script in this process instead of calling the server")
	rootCmd.AddCommand(trainCmd)
}

func buildTrainInput(cmd *cobra.Command) (forecast.TrainInput, error) {
	var in forecast.TrainInput

	if trainInput != "" {
		if err := readInputFile(trainInput, &in); err != nil {
			return in, err
		}
	}
	if cmd.Flags().Changed("temperatures") {
		in.Temperatures = trainTemperatures
	}
	if cmd.Flags().Changed("consumptions") {
		in.Consumptions = trainConsumptions
	}

	return in, in.Validate()
}

func runTrain(cmd *cobra.Command, args []string) error {
	in, err := buildTrainInput(cmd)
	if err != nil {
		return err
	}

	var line string
	if trainLocal {
		svc, err := newLocalService()
		if err != nil {
			return err
		}
		res, err := svc.Train(commandContext(cmd), trainAGU, in)
		if err != nil {
			return describeFailure(forecast.OperationTrain, err)
		}
		line = res.Payload
	} else {
		data, status, err := NewClient().Post(apiPath("/api/train", trainAGU), in)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return apiError(data, status)
		}
		var out forecast.TrainingOutput
		if err := json.Unmarshal(data, &out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		line = out.Training
	}

	if jsonOut {
		return printJSON(forecast.TrainingOutput{Training: line})
	}
	fmt.Println(line)
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
