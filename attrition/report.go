package attrition

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/YuminosukeSato/attrisk/dataset"
	"github.com/YuminosukeSato/attrisk/preprocessing"
)

// Reporter prints the human-readable run report. Styling degrades to plain
// text when w is not a terminal.
type Reporter struct {
	w io.Writer

	sectionStyle lipgloss.Style
	labelStyle   lipgloss.Style
	valueStyle   lipgloss.Style
	mutedStyle   lipgloss.Style
	boxStyle     lipgloss.Style
	goodStyle    lipgloss.Style
}

// NewReporter returns a Reporter writing to w.
func NewReporter(w io.Writer) *Reporter {
	r := lipgloss.NewRenderer(w)
	return &Reporter{
		w:            w,
		sectionStyle: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")),
		labelStyle:   r.NewStyle().Foreground(lipgloss.Color("#AAAAAA")),
		valueStyle:   r.NewStyle().Bold(true),
		mutedStyle:   r.NewStyle().Foreground(lipgloss.Color("#777777")),
		boxStyle: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1),
		goodStyle: r.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true),
	}
}

func (r *Reporter) section(title string) {
	fmt.Fprintf(r.w, "\n%s\n", r.sectionStyle.Render("--- "+title+" ---"))
}

func (r *Reporter) field(label string, value interface{}) {
	fmt.Fprintf(r.w, "%s %s\n", r.labelStyle.Render(label+":"), r.valueStyle.Render(fmt.Sprint(value)))
}

// Overview prints the dataset overview with the label value counts.
func (r *Reporter) Overview(t *dataset.Table, label string) error {
	counts, err := t.ValueCounts(label)
	if err != nil {
		return err
	}
	r.section("DATASET OVERVIEW")
	r.field("Loaded data from", t.Source)
	r.field("Total employees (rows)", t.NumRows())
	r.field("Total columns (features)", t.NumCols())
	fmt.Fprintln(r.w, r.labelStyle.Render(label+" counts:"))

	values := make([]string, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool {
		if counts[values[i]] != counts[values[j]] {
			return counts[values[i]] > counts[values[j]]
		}
		return values[i] < values[j]
	})
	for _, v := range values {
		name := v
		if name == "" {
			name = "(empty)"
		}
		fmt.Fprintf(r.w, "  %-12s %d\n", name, counts[v])
	}
	return nil
}

// Encoding prints the data preparation and feature selection summary.
func (r *Reporter) Encoding(v *preprocessing.Vocabulary, y []float64) {
	r.section("DATA PREPARATION")
	for _, c := range v.Columns {
		if c.Kind != preprocessing.KindCategorical {
			continue
		}
		fmt.Fprintf(r.w, "  %s %s\n", r.valueStyle.Render(c.Name),
			r.mutedStyle.Render(fmt.Sprintf("-> %d indicator columns", c.Width())))
	}
	r.field("All text converted to numbers. Number of columns now", v.NumFeatures()+1)

	r.section("CHOOSING FEATURES & TARGET")
	r.field("Features used to predict "+v.Label, v.NumFeatures())
	r.field("Target classes", targetClasses(y))
}

func targetClasses(y []float64) string {
	seen := make(map[float64]bool)
	var classes []string
	for _, v := range y {
		if !seen[v] {
			seen[v] = true
			classes = append(classes, fmt.Sprintf("%g", v))
		}
	}
	return "[" + strings.Join(classes, " ") + "]"
}

// Split prints the partition sizes.
func (r *Reporter) Split(res *TrainingResult) {
	r.section("DATA SPLIT")
	r.field("Training records", len(res.TrainIndex))
	r.field("Testing records", len(res.TestIndex))
	r.field("Positive in training / testing", fmt.Sprintf("%d / %d", res.TrainCounts[1], res.TestCounts[1]))
}

// Model prints the classification report and ROC AUC of one model.
func (r *Reporter) Model(title string, e *Evaluation) {
	r.section(title)
	fmt.Fprintln(r.w, r.labelStyle.Render(fmt.Sprintf("Classification Report (%s):", e.Name)))
	fmt.Fprintln(r.w, r.boxStyle.Render(strings.TrimRight(e.Report.String(), "\n")))
	fmt.Fprintf(r.w, "%s %s\n", r.labelStyle.Render("ROC-AUC Score (higher is better):"),
		r.goodStyle.Render(fmt.Sprintf("%.4f", e.AUC)))
}

// Importances prints the ranked random forest feature importances.
func (r *Reporter) Importances(res *TrainingResult) {
	if len(res.Importances) == 0 {
		return
	}
	r.section("TOP RISK FACTORS (RANDOM FOREST)")
	width := 0
	for _, imp := range res.Importances {
		if len(imp.Feature) > width {
			width = len(imp.Feature)
		}
	}
	for _, imp := range res.Importances {
		fmt.Fprintf(r.w, "  %-*s %s\n", width, imp.Feature, r.valueStyle.Render(fmt.Sprintf("%.4f", imp.Value)))
	}
}

// RiskPreview prints the label and risk columns of the first n rows.
func (r *Reporter) RiskPreview(t *dataset.Table, label, riskColumn string, n int) error {
	r.section("GENERATING ATTRITION RISK SCORES")
	labels, err := t.Column(label)
	if err != nil {
		return err
	}
	risk, err := t.Column(riskColumn)
	if err != nil {
		return err
	}
	if n > len(labels) {
		n = len(labels)
	}
	fmt.Fprintln(r.w, r.labelStyle.Render(fmt.Sprintf("Sample risk scores (first %d employees):", n)))
	fmt.Fprintf(r.w, "  %4s %-10s %s\n", "", label, riskColumn)
	for i := 0; i < n; i++ {
		fmt.Fprintf(r.w, "  %4d %-10s %s\n", i, labels[i], risk[i])
	}
	return nil
}

// Saved prints the output path.
func (r *Reporter) Saved(path string) {
	fmt.Fprintf(r.w, "\n%s %s\n", r.labelStyle.Render("Saved updated dataset with attrition risk scores to:"),
		r.goodStyle.Render(path))
}
