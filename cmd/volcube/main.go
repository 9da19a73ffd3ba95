// Command volcube calibrates a SABR swaption volatility cube from a JSON
// scenario and prints smile volatilities and calibration dumps as JSON.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/meenmo/volcube/config"
	"github.com/meenmo/volcube/cube"
	"github.com/meenmo/volcube/sabr"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("volcube", flag.ContinueOnError)
	fs.SetOutput(stderr)
	inputPath := fs.String("input", "", "JSON scenario path (optional; if set, ignores stdin)")
	configPath := fs.String("config", "", "YAML calibration settings overlaid on the defaults")
	plotPath := fs.String("plot", "", "write a PNG of the queried smiles to this path")
	verbose := fs.Bool("v", false, "log recomputes and failed knots to stderr")
	trace := fs.Bool("vv", false, "also log every knot fit and optimizer attempt")
	help := fs.Bool("h", false, "Show help")
	fs.BoolVar(help, "help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *help {
		usage(stderr)
		return 0
	}

	setLogging(stderr, *verbose, *trace)

	if p := strings.TrimSpace(*configPath); p != "" {
		c, err := config.Load(p)
		if err != nil {
			return writeError(stdout, err.Error())
		}
		config.SetConfig(c)
	}

	path := strings.TrimSpace(*inputPath)
	if path == "" {
		if f, ok := stdin.(*os.File); ok {
			if stat, err := f.Stat(); err == nil && (stat.Mode()&os.ModeCharDevice) != 0 {
				usage(stderr)
				return 2
			}
		}
	}

	inputBytes, err := readInput(stdin, path)
	if err != nil {
		return writeError(stdout, fmt.Sprintf("failed to read input: %v", err))
	}
	inputs, isArray, err := parseInputs(inputBytes)
	if err != nil {
		return writeError(stdout, fmt.Sprintf("failed to parse JSON input: %v", err))
	}

	hadError := false
	outputs := make([]ScenarioOutput, 0, len(inputs))
	for _, in := range inputs {
		out, err := runScenario(in)
		if err != nil {
			hadError = true
			outputs = append(outputs, ScenarioOutput{TaskID: in.TaskID, Error: err.Error()})
			continue
		}
		outputs = append(outputs, *out)
	}

	if p := strings.TrimSpace(*plotPath); p != "" && !hadError {
		if err := plotSmiles(outputs, p); err != nil {
			fmt.Fprintf(stderr, "plot: %v\n", err)
			hadError = true
		}
	}

	var outputBytes []byte
	if isArray {
		outputBytes, _ = json.Marshal(outputs)
	} else {
		outputBytes, _ = json.Marshal(outputs[0])
	}
	fmt.Fprintln(stdout, string(outputBytes))

	if hadError {
		return 1
	}
	return 0
}

func setLogging(w io.Writer, verbose, trace bool) {
	var ops, diag, tr io.Writer
	if verbose || trace {
		ops, diag = w, w
	}
	if trace {
		tr = w
	}
	cube.SetLogWriters(ops, diag, tr)
	sabr.SetLogWriters(ops, diag, tr)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  volcube [-config calib.yaml] [-plot smiles.png] [-v|-vv] < scenario.json")
	fmt.Fprintln(w, "  volcube -input /path/to/scenario.json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Read a JSON scenario (or an array of them), calibrate the SABR cube,")
	fmt.Fprintln(w, "output smile volatilities and calibration dumps as JSON to stdout.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Rates and vols are in percent, strike spreads in bp.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Example input:")
	fmt.Fprintln(w, `  {`)
	fmt.Fprintln(w, `    "reference_date": "2025-01-06",`)
	fmt.Fprintln(w, `    "currency": "EUR",`)
	fmt.Fprintln(w, `    "curve": {"flat_rate": 3.0},`)
	fmt.Fprintln(w, `    "short_index_tenor": "1Y", "long_index_tenor": "10Y",`)
	fmt.Fprintln(w, `    "atm": {"option_tenors": ["1Y","5Y"], "swap_tenors": ["2Y","10Y"],`)
	fmt.Fprintln(w, `            "vols": [[20,19],[18,17]]},`)
	fmt.Fprintln(w, `    "option_tenors": ["1Y","5Y"], "swap_tenors": ["2Y","10Y"],`)
	fmt.Fprintln(w, `    "strike_spreads_bp": [-100,0,100],`)
	fmt.Fprintln(w, `    "spread_vols": [[2,0,-1],[2,0,-1],[2,0,-1],[2,0,-1]],`)
	fmt.Fprintln(w, `    "fixed": {"beta": true}, "guess": {"beta": 0.5},`)
	fmt.Fprintln(w, `    "queries": [{"option_tenor": "3Y", "swap_tenor": "5Y", "strikes_bp": [-100,0,100]}]`)
	fmt.Fprintln(w, `  }`)
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path != "" {
		return os.ReadFile(path)
	}
	return io.ReadAll(stdin)
}

func parseInputs(raw []byte) ([]ScenarioInput, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false, fmt.Errorf("empty input")
	}

	if trimmed[0] == '[' {
		var inputs []ScenarioInput
		if err := json.Unmarshal(trimmed, &inputs); err != nil {
			return nil, true, err
		}
		if len(inputs) == 0 {
			return nil, true, fmt.Errorf("empty input array")
		}
		return inputs, true, nil
	}

	var input ScenarioInput
	if err := json.Unmarshal(trimmed, &input); err != nil {
		return nil, false, err
	}
	return []ScenarioInput{input}, false, nil
}

func writeError(stdout io.Writer, msg string) int {
	output := ScenarioOutput{Error: msg}
	outputBytes, _ := json.Marshal(output)
	fmt.Fprintln(stdout, string(outputBytes))
	return 1
}
