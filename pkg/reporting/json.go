package reporting

import (
	"encoding/json"
	"io"

	"github.com/ducminhle1904/tick-backtester/internal/backtest"
)

// DefaultJSONFormatter implements JSON output functionality
type DefaultJSONFormatter struct{}

// NewDefaultJSONFormatter creates a new JSON formatter
func NewDefaultJSONFormatter() *DefaultJSONFormatter {
	return &DefaultJSONFormatter{}
}

// trialJSON is the exported shape of an optimizer trial
type trialJSON struct {
	Turn    int                     `json:"turn"`
	Params  map[string]float64      `json:"params"`
	Score   float64                 `json:"score"`
	Status  backtest.RunStatus      `json:"status,omitempty"`
	Metrics *backtest.MetricsResult `json:"metrics,omitempty"`
}

// FormatResult renders the run summary (metrics, diagnostics, params) as indented JSON
func (f *DefaultJSONFormatter) FormatResult(result *backtest.RunResult) ([]byte, error) {
	return json.MarshalIndent(result, "", "  ")
}

// FormatTrials renders optimizer trials as indented JSON
func (f *DefaultJSONFormatter) FormatTrials(trials []backtest.Trial) ([]byte, error) {
	out := make([]trialJSON, len(trials))
	for i, t := range trials {
		out[i] = trialJSON{Turn: t.Turn, Params: t.Params, Score: t.Score}
		if t.Result != nil {
			out[i].Status = t.Result.Status
			m := t.Result.Metrics
			out[i].Metrics = &m
		}
	}
	return json.MarshalIndent(out, "", "  ")
}

// WriteResultJSON writes the run summary to path
func (f *DefaultJSONFormatter) WriteResultJSON(result *backtest.RunResult, path string) error {
	data, err := f.FormatResult(result)
	if err != nil {
		return err
	}
	return writeFile(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteTrialsJSON writes optimizer trials to path
func (f *DefaultJSONFormatter) WriteTrialsJSON(trials []backtest.Trial, path string) error {
	data, err := f.FormatTrials(trials)
	if err != nil {
		return err
	}
	return writeFile(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
