package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haskel/agupredict/internal/forecast"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict consumption from a trained model",
	Long: `Send a prediction request to the server, or run the prediction script
locally with --local. With --list the result line is parsed into dated
records.

Examples:
  agupredict predict --temperatures '[3, 4]' --previous '[120]' \
      --coefficients 0.42,-1.3 --intercept 17.5
  agupredict predict --agu boiler-7 -i request.json --list`,
	Args: cobra.NoArgs,
	RunE: runPredict,
}

var (
	predictAGU          string
	predictInput        string
	predictTemperatures string
	predictPrevious     string
	predictCoefficients string
	predictIntercept    float64
	predictList         bool
	predictLocal        bool
)

func init() {
	predictCmd.Flags().StringVar(&predictAGU, "agu", "", "AGU identifier")
	predictCmd.Flags().StringVarP(&predictInput, "input", "i", "", "JSON request body file (- for stdin)")
	predictCmd.Flags().StringVar(&predictTemperatures, "temperatures", "", "temperature series")
	predictCmd.Flags().StringVar(&predictPrevious, "previous", "", "previous consumption series")
	predictCmd.Flags().StringVar(&predictCoefficients, "coefficients", "", "model coefficients, comma separated")
	predictCmd.Flags().Float64Var(&predictIntercept, "intercept", 0, "model intercept")
	predictCmd.Flags().BoolVar(&predictList, "list", false, "parse the result into dated records")
	predictCmd.Flags().BoolVar(&predictLocal, "local", false, "run the script in this process instead of calling the server")
	rootCmd.AddCommand(predictCmd)
}

func buildPredictInput(cmd *cobra.Command) (forecast.PredictInput, error) {
	var in forecast.PredictInput

	if predictInput != "" {
		if err := readInputFile(predictInput, &in); err != nil {
			return in, err
		}
	}
	if cmd.Flags().Changed("temperatures") {
		in.Temperatures = predictTemperatures
	}
	if cmd.Flags().Changed("previous") {
		in.PreviousConsumptions = predictPrevious
	}
	if cmd.Flags().Changed("coefficients") {
		coefficients, err := parseCoefficients(predictCoefficients)
		if err != nil {
			return in, err
		}
		in.Coefficients = coefficients
	}
	if cmd.Flags().Changed("intercept") {
		in.Intercept = predictIntercept
	}

	return in, in.Validate()
}

func runPredict(cmd *cobra.Command, args []string) error {
	in, err := buildPredictInput(cmd)
	if err != nil {
		return err
	}

	var line string
	if predictLocal {
		svc, err := newLocalService()
		if err != nil {
			return err
		}
		res, err := svc.Predict(commandContext(cmd), predictAGU, in)
		if err != nil {
			return describeFailure(forecast.OperationPredict, err)
		}
		line = res.Payload
	} else {
		data, status, err := NewClient().Post(apiPath("/api/predict", predictAGU), in)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return apiError(data, status)
		}
		var out forecast.PredictionOutput
		if err := json.Unmarshal(data, &out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		line = out.Prediction
	}

	if !predictList {
		if jsonOut {
			return printJSON(forecast.PredictionOutput{Prediction: line})
		}
		fmt.Println(line)
		return nil
	}

	list, err := forecast.ParsePredictions(line)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(forecast.PredictionList{PredictionList: list})
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tCONSUMPTION")
	for _, p := range list {
		fmt.Fprintf(tw, "%s\t%s\n", p.Date, forecast.FormatFloat(p.Consumption))
	}
	return tw.Flush()
}
