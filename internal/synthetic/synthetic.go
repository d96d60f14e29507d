// Package synthetic generates employee attrition tables with a known shape.
// It backs the "attrisk sample" command and the package tests.
package synthetic

import (
	"math"
	"math/rand"
	"sort"
	"strconv"

	"github.com/YuminosukeSato/attrisk/dataset"
	"github.com/YuminosukeSato/attrisk/pkg/errors"
)

// Categorical columns and their values. Every value appears at least once
// when the table has enough rows.
var (
	Departments    = []string{"Administration", "Estates", "Medical", "Nursing"}
	JobRoles       = []string{"Clerk", "Doctor", "Manager", "Nurse", "Porter"}
	MaritalStatus  = []string{"Divorced", "Married", "Single"}
	NumericColumns = []string{"Age", "DistanceFromHome", "JobSatisfaction", "MonthlyIncome", "OvertimeHours", "YearsAtCompany"}
)

// LabelColumn is the target column name.
const LabelColumn = "Attrition"

// Config describes the table to generate.
type Config struct {
	Rows      int
	Positives int
	Seed      int64
}

// Generate builds a table with Config.Rows employees of whom exactly
// Config.Positives have Attrition "Yes". Leavers are the rows with the
// highest noisy risk, so overtime, low satisfaction and short tenure are
// learnable signals.
func Generate(cfg Config) (*dataset.Table, error) {
	if cfg.Rows <= 0 {
		return nil, errors.NewValidationError("rows", "must be positive", cfg.Rows)
	}
	if cfg.Positives < 0 || cfg.Positives > cfg.Rows {
		return nil, errors.NewValidationError("positives", "must be within [0, rows]", cfg.Positives)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	columns := []string{"EmployeeID", NumericColumns[0], LabelColumn, "Department", NumericColumns[1],
		NumericColumns[2], "JobRole", "MaritalStatus", NumericColumns[3], NumericColumns[4], NumericColumns[5]}

	rows := make([][]string, cfg.Rows)
	risk := make([]float64, cfg.Rows)
	for i := range rows {
		age := 20 + rng.Intn(41)
		distance := 1 + rng.Intn(30)
		satisfaction := 1 + rng.Intn(4)
		income := 1500 + rng.Intn(8500)
		overtime := math.Round(rng.Float64()*200) / 10
		years := rng.Intn(age - 17)

		rows[i] = []string{
			"E" + strconv.Itoa(10000+i),
			strconv.Itoa(age),
			"No",
			pick(rng, Departments, i),
			strconv.Itoa(distance),
			strconv.Itoa(satisfaction),
			pick(rng, JobRoles, i),
			pick(rng, MaritalStatus, i),
			strconv.Itoa(income),
			strconv.FormatFloat(overtime, 'f', -1, 64),
			strconv.Itoa(years),
		}

		risk[i] = 0.15*overtime - 0.8*float64(satisfaction) - 0.2*float64(years) +
			0.05*float64(distance) + rng.NormFloat64()
		if rows[i][7] == "Single" {
			risk[i] += 0.7
		}
	}

	order := make([]int, cfg.Rows)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return risk[order[a]] > risk[order[b]] })
	for _, i := range order[:cfg.Positives] {
		rows[i][2] = "Yes"
	}

	t, err := dataset.NewTable(columns, rows)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// pick cycles through values for the first rows so each value is observed,
// then draws uniformly.
func pick(rng *rand.Rand, values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return values[rng.Intn(len(values))]
}
