package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/servir/aces/manuscript/validation"
	"github.com/servir/aces/metrics"
)

// WriteValidationReport renders a validation report in the given format.
func WriteValidationReport(w io.Writer, report *validation.Report, format Format) error {
	switch format {
	case FormatMarkdown:
		_, err := io.WriteString(w, report.FormatFeedback())
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case FormatCSV:
		return writeValidationCSV(w, report)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// writeValidationCSV writes one row per issue: severity, check, message.
func writeValidationCSV(w io.Writer, report *validation.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"severity", "check", "message"}); err != nil {
		return err
	}
	for _, issue := range report.Failures {
		if err := cw.Write([]string{"failure", issue.Check, issue.Message}); err != nil {
			return err
		}
	}
	for _, issue := range report.Warnings {
		if err := cw.Write([]string{"warning", issue.Check, issue.Message}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEvalResult renders an evaluation result in the given format.
func WriteEvalResult(w io.Writer, result *metrics.EvalResult, format Format) error {
	switch format {
	case FormatMarkdown:
		return writeEvalMarkdown(w, result)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case FormatCSV:
		return writeEvalCSV(w, result)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writeEvalMarkdown(w io.Writer, result *metrics.EvalResult) error {
	s := result.Summary
	if _, err := fmt.Fprintf(w, "## Evaluation\n\n%d patches, %d pixels, accuracy %.4f\n\n",
		result.Patches, s.Total, s.Accuracy); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "| class | precision | recall | f1 | dice | iou |"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "|-------|-----------|--------|----|------|-----|"); err != nil {
		return err
	}
	for _, cs := range s.PerClass {
		if _, err := fmt.Fprintf(w, "| %d | %.4f | %.4f | %.4f | %.4f | %.4f |\n",
			cs.Class, cs.Precision, cs.Recall, cs.F1, cs.Dice, cs.IoU); err != nil {
			return err
		}
	}
	return nil
}

func writeEvalCSV(w io.Writer, result *metrics.EvalResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"class", "tp", "fp", "fn", "tn", "precision", "recall", "f1", "dice", "iou"}); err != nil {
		return err
	}
	for _, cs := range result.Summary.PerClass {
		row := []string{
			strconv.Itoa(cs.Class),
			strconv.FormatInt(cs.TP, 10),
			strconv.FormatInt(cs.FP, 10),
			strconv.FormatInt(cs.FN, 10),
			strconv.FormatInt(cs.TN, 10),
			formatFloat(cs.Precision),
			formatFloat(cs.Recall),
			formatFloat(cs.F1),
			formatFloat(cs.Dice),
			formatFloat(cs.IoU),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
