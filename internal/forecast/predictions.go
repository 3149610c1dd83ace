package forecast

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParsePredictions decodes a prediction result line. The script prints
// either an array of {date, consumption} records or a single record.
func ParsePredictions(payload string) ([]Prediction, error) {
	data := bytes.TrimSpace([]byte(payload))
	if len(data) == 0 {
		return nil, fmt.Errorf("empty prediction payload")
	}

	if data[0] == '[' {
		var list []Prediction
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode prediction list: %w", err)
		}
		return list, nil
	}

	var one Prediction
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("decode prediction: %w", err)
	}
	return []Prediction{one}, nil
}
