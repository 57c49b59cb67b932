package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	apperrors "github.com/3leaps/benchline/internal/errors"
	"github.com/3leaps/benchline/internal/observability"
	"github.com/3leaps/benchline/pkg/lifecycle"
)

var stdout io.Writer = os.Stdout

// withApp opens the wired components for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := currentConfig()
	if err != nil {
		return exitError(exitConfig, "Configuration unavailable", err)
	}
	a, err := openApp(cmd.Context(), cfg, observability.CLILogger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(cmd.Context(), a)
}

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, exitError(foundry.ExitInvalidArgument, "Invalid "+what, fmt.Errorf("%q is not a positive integer", arg))
	}
	return id, nil
}

// operationError picks an exit code from the error's kind.
func operationError(message string, err error) error {
	status, _ := apperrors.Classify(err)
	switch status {
	case http.StatusNotFound:
		return exitError(foundry.ExitFileNotFound, message, err)
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return exitError(foundry.ExitInvalidArgument, message, err)
	case http.StatusServiceUnavailable:
		return exitError(foundry.ExitExternalServiceUnavailable, message, err)
	default:
		return exitError(exitFailure, message, err)
	}
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type batchOutput struct {
	Operation string         `json:"operation"`
	Pairs     int            `json:"pairs"`
	Changed   int            `json:"changed"`
	Failures  []batchFailure `json:"failures,omitempty"`
}

type batchFailure struct {
	PairID int64  `json:"pair_id"`
	Error  string `json:"error"`
}

// printBatch reports a bulk operation. Per-pair failures are printed and
// turned into a non-zero exit.
func printBatch(cmd *cobra.Command, op string, res lifecycle.BatchResult) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	out := batchOutput{Operation: op, Pairs: len(res.Results), Changed: res.Changed()}
	for _, f := range res.Failures() {
		out.Failures = append(out.Failures, batchFailure{PairID: f.PairID, Error: f.Err.Error()})
	}

	if jsonOutput {
		if err := writeJSON(out); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintf(stdout, "%s: %d pairs, %d changed\n", op, out.Pairs, out.Changed)
		if len(out.Failures) > 0 {
			w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "PAIR\tERROR")
			for _, f := range out.Failures {
				_, _ = fmt.Fprintf(w, "%d\t%s\n", f.PairID, f.Error)
			}
			_ = w.Flush()
		}
	}

	if err := res.Err(); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, op+" completed with errors", fmt.Errorf("failed=%d", len(out.Failures)))
	}
	return nil
}
