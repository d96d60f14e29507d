// Package attrition wires the attrition risk workflow together: load the
// employee spreadsheet, encode it, train and evaluate logistic regression and
// random forest, then write the spreadsheet back with a risk column.
//
// 使用例:
//
//	cfg := attrition.DefaultConfig()
//	p, err := attrition.NewPipeline(cfg, attrition.WithOutput(os.Stdout))
//	if err != nil {
//	    return err
//	}
//	result, err := p.Run(ctx)
package attrition

import (
	"context"
	"io"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/attrisk/dataset"
	"github.com/YuminosukeSato/attrisk/pkg/log"
	"github.com/YuminosukeSato/attrisk/preprocessing"
)

// Result is what a successful run produced.
type Result struct {
	// Table is the input table with the risk column appended.
	Table        *dataset.Table
	FeatureNames []string
	Training     *TrainingResult
	Risk         []float64
	OutputPath   string
}

// Pipeline runs the stages strictly in order:
// load, encode, train and evaluate, score and write.
type Pipeline struct {
	cfg      Config
	logger   log.Logger
	reporter *Reporter
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the structured logger. The default is the process logger.
func WithLogger(l log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithOutput sets where the console report is printed. The default discards it.
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) { p.reporter = NewReporter(w) }
}

// NewPipeline validates cfg and returns a Pipeline.
func NewPipeline(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.GetLogger()
	}
	if p.reporter == nil {
		p.reporter = NewReporter(io.Discard)
	}
	return p, nil
}

// Run executes the workflow once. Every error aborts the run; ctx is checked
// between stages. The output file is written only after both models have
// been evaluated and the report printed.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	logger := p.logger.With(log.ComponentKey, "pipeline")

	// Load
	table, err := p.load()
	if err != nil {
		return nil, err
	}
	if err := p.reporter.Overview(table, p.cfg.Label); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Encode
	enc, X, y, err := p.encode(table)
	if err != nil {
		return nil, err
	}
	p.reporter.Encoding(enc.Vocabulary(), mat.Col(nil, 0, y))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Train and evaluate
	names := enc.FeatureNames()
	training, err := NewTrainer(p.cfg, p.logger).Train(ctx, X, y, names)
	if err != nil {
		return nil, err
	}
	p.reporter.Split(training)
	p.reporter.Model("LOGISTIC REGRESSION MODEL", training.Logistic)
	p.reporter.Model("RANDOM FOREST MODEL", training.Forest)
	p.reporter.Importances(training)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Score and write
	scorer, err := training.Model(p.cfg.ScoringModel)
	if err != nil {
		return nil, err
	}
	risk, err := ScoreRisk(scorer.Model, X)
	if err != nil {
		return nil, err
	}
	out, err := AppendRisk(table, p.cfg.RiskColumn, risk)
	if err != nil {
		return nil, err
	}
	if err := p.reporter.RiskPreview(out, p.cfg.Label, p.cfg.RiskColumn, p.cfg.PreviewRows); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.write(out); err != nil {
		return nil, err
	}
	p.reporter.Saved(p.cfg.Output)

	logger.Info("Run completed",
		log.PathKey, p.cfg.Output,
		log.ModelNameKey, scorer.Name,
		log.SamplesKey, len(risk),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return &Result{
		Table:        out,
		FeatureNames: names,
		Training:     training,
		Risk:         risk,
		OutputPath:   p.cfg.Output,
	}, nil
}

func (p *Pipeline) load() (*dataset.Table, error) {
	logger := p.logger.With(log.ComponentKey, "dataset")
	var opts []dataset.Option
	if p.cfg.Sheet != "" {
		opts = append(opts, dataset.WithSheet(p.cfg.Sheet))
	}
	table, err := dataset.Load(p.cfg.Input, opts...)
	if err != nil {
		logger.Error("Failed to load dataset", err, log.OperationKey, log.OperationLoad, log.PathKey, p.cfg.Input)
		return nil, err
	}
	logger.Info("Dataset loaded",
		log.OperationKey, log.OperationLoad,
		log.PhaseKey, log.PhaseLoading,
		log.PathKey, p.cfg.Input,
		log.SamplesKey, table.NumRows(),
		log.FeaturesKey, table.NumCols(),
	)
	return table, nil
}

func (p *Pipeline) encode(table *dataset.Table) (*preprocessing.CategoricalEncoder, *mat.Dense, *mat.VecDense, error) {
	logger := p.logger.With(log.ComponentKey, "preprocessing", log.ModelNameKey, "CategoricalEncoder")

	opts := []preprocessing.EncoderOption{
		preprocessing.WithPositiveLabel(p.cfg.PositiveLabel),
		preprocessing.WithCategoricalColumns(p.cfg.CategoricalColumns...),
		preprocessing.WithExcludedColumns(p.cfg.ExcludedColumns...),
	}
	if p.cfg.VocabularyPath != "" {
		vocab, err := preprocessing.LoadVocabulary(p.cfg.VocabularyPath)
		if err != nil {
			return nil, nil, nil, err
		}
		opts = append(opts, preprocessing.WithVocabulary(vocab))
	}

	enc := preprocessing.NewCategoricalEncoder(p.cfg.Label, opts...)
	X, y, err := enc.FitTransform(table)
	if err != nil {
		logger.Error("Encoding failed", err, log.OperationKey, log.OperationFitTransform)
		return nil, nil, nil, err
	}

	positives := 0
	for i := 0; i < y.Len(); i++ {
		if y.AtVec(i) == 1 {
			positives++
		}
	}
	rows, cols := X.Dims()
	logger.Info("Dataset encoded",
		log.OperationKey, log.OperationFitTransform,
		log.PhaseKey, log.PhasePreprocessing,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.PositiveKey, positives,
	)

	if p.cfg.SchemaPath != "" {
		if err := enc.Vocabulary().Save(p.cfg.SchemaPath); err != nil {
			return nil, nil, nil, err
		}
		logger.Debug("Vocabulary saved", log.PathKey, p.cfg.SchemaPath)
	}
	return enc, X, y, nil
}

func (p *Pipeline) write(out *dataset.Table) error {
	logger := p.logger.With(log.ComponentKey, "risk_writer")
	var opts []dataset.Option
	if p.cfg.Sheet != "" {
		opts = append(opts, dataset.WithSheet(p.cfg.Sheet))
	}
	if err := dataset.WriteXLSX(out, p.cfg.Output, opts...); err != nil {
		logger.Error("Failed to write output", err, log.OperationKey, log.OperationWrite, log.PathKey, p.cfg.Output)
		return err
	}
	logger.Info("Output written",
		log.OperationKey, log.OperationWrite,
		log.PhaseKey, log.PhaseScoring,
		log.PathKey, p.cfg.Output,
		log.SamplesKey, out.NumRows(),
	)
	return nil
}
