package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/analysis"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/database"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/dataset"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/monitoring"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/types"
)

const (
	rowsDefault = 1000
	seedDefault = 42
)

var (
	rowsFlag = &cli.IntFlag{
		Name:  "rows",
		Usage: fmt.Sprintf("Number of applications to generate (default: %d)", rowsDefault),
		Value: rowsDefault,
	}

	seedFlag = &cli.Int64Flag{
		Name:  "seed",
		Usage: "Random seed; the same seed gives the same corpus",
		Value: seedDefault,
	}

	outFlag = &cli.StringFlag{
		Name:    "out",
		Aliases: []string{"o"},
		Usage:   "Output file (optional, defaults to stdout)",
	}

	corpusFlag = &cli.StringFlag{
		Name:    "corpus",
		Aliases: []string{"c"},
		Usage:   "Training corpus CSV",
	}

	dataDirFlag = &cli.StringFlag{
		Name:  "data-dir",
		Usage: "Train on the applications stored in this data directory instead of a CSV",
	}

	storeFlag = &cli.BoolFlag{
		Name:  "store",
		Usage: "Also save the corpus into --data-dir",
	}

	idFlag = &cli.StringSliceFlag{
		Name:     "id",
		Usage:    "Application ID to analyze (repeatable)",
		Required: true,
	}

	categoryFlag = &cli.StringFlag{
		Name:  "category",
		Usage: "Explain this risk category instead of the predicted one",
	}

	inputFlag = &cli.StringFlag{
		Name:     "input",
		Aliases:  []string{"i"},
		Usage:    "CSV of applications to categorize",
		Required: true,
	}

	formatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: "Output format: json or csv",
		Value: "json",
	}

	synthCmd = &cli.Command{
		Name:   "synth",
		Usage:  "Generates a synthetic application corpus as CSV",
		Action: cmdSynth,
		Flags:  []cli.Flag{rowsFlag, seedFlag, outFlag},
	}

	trainCmd = &cli.Command{
		Name:   "train",
		Usage:  "Fits the model and prints the training summary",
		Action: cmdTrain,
		Flags:  []cli.Flag{corpusFlag, dataDirFlag, storeFlag},
	}

	analyzeCmd = &cli.Command{
		Name:   "analyze",
		Usage:  "Trains on the corpus and prints the full analysis of applications in it",
		Action: cmdAnalyze,
		Flags:  []cli.Flag{corpusFlag, dataDirFlag, idFlag, categoryFlag},
	}

	categorizeCmd = &cli.Command{
		Name:   "categorize",
		Usage:  "Trains on the corpus and predicts risk categories for another CSV",
		Action: cmdCategorize,
		Flags:  []cli.Flag{corpusFlag, dataDirFlag, inputFlag, formatFlag},
	}
)

func cmdSynth(c *cli.Context) error {
	if c.Int(rowsFlag.Name) <= 0 {
		return errors.New("rows must be positive")
	}
	records := dataset.Synthesize(c.Int(rowsFlag.Name), c.Int64(seedFlag.Name))
	if path := c.String(outFlag.Name); path != "" {
		return dataset.WriteFile(path, records)
	}
	return dataset.Write(c.App.Writer, records)
}

func cmdTrain(c *cli.Context) error {
	a, err := trainedAnalyzer(c)
	if err != nil {
		return err
	}
	p := a.Pipeline()
	return printJSON(c.App.Writer, map[string]interface{}{
		"model_version": p.Version,
		"trained_at":    p.TrainedAt,
		"labels":        p.Labels,
		"training":      p.Summary,
	})
}

func cmdAnalyze(c *cli.Context) error {
	a, err := trainedAnalyzer(c)
	if err != nil {
		return err
	}

	ctx := c.Context
	out := make([]interface{}, 0, len(c.StringSlice(idFlag.Name)))
	for _, id := range c.StringSlice(idFlag.Name) {
		if category := c.String(categoryFlag.Name); category != "" {
			exp, err := a.Explain(ctx, id, category)
			if err != nil {
				return err
			}
			out = append(out, exp)
			continue
		}
		res, err := a.Analyze(ctx, id)
		if err != nil {
			return err
		}
		out = append(out, res)
	}
	if len(out) == 1 {
		return printJSON(c.App.Writer, out[0])
	}
	return printJSON(c.App.Writer, out)
}

func cmdCategorize(c *cli.Context) error {
	a, err := trainedAnalyzer(c)
	if err != nil {
		return err
	}
	batch, err := dataset.ReadFile(c.String(inputFlag.Name))
	if err != nil {
		return err
	}
	predictions, err := a.Categorize(c.Context, batch)
	if err != nil {
		return err
	}

	switch c.String(formatFlag.Name) {
	case "json":
		return printJSON(c.App.Writer, predictions)
	case "csv":
		return writePredictionsCSV(c.App.Writer, a.Pipeline().Labels, predictions)
	default:
		return fmt.Errorf("unknown format %q", c.String(formatFlag.Name))
	}
}

// trainedAnalyzer fits a pipeline on the --corpus CSV or on the stored
// applications of --data-dir. Applications stay reachable by id.
func trainedAnalyzer(c *cli.Context) (*analysis.Analyzer, error) {
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := appConfig(c)
	logger := &monitoring.Logger{Logger: slog.Default()}

	corpusPath, dataDir := c.String(corpusFlag.Name), c.String(dataDirFlag.Name)
	var (
		records []types.ApplicationRecord
		store   analysis.RecordStore
		err     error
	)
	switch {
	case corpusPath != "":
		if records, err = dataset.ReadFile(corpusPath); err != nil {
			return nil, err
		}
		store = analysis.NewMemoryStore(records...)
		if dataDir != "" && c.Bool(storeFlag.Name) {
			if err := storeRecords(ctx, dataDir, records); err != nil {
				return nil, err
			}
		}
	case dataDir != "":
		db, err := database.NewDB(ctx, dataDir)
		if err != nil {
			return nil, err
		}
		// The CLI is one-shot; the handle lives until exit.
		repo := database.NewRepository(db)
		if records, err = repo.ListApplications(ctx); err != nil {
			return nil, err
		}
		store = repo
	default:
		return nil, fmt.Errorf("either --%s or --%s is required", corpusFlag.Name, dataDirFlag.Name)
	}

	a, err := analysis.NewAnalyzer(cfg.Analysis, store, analysis.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if _, err := a.Retrain(ctx, records); err != nil {
		return nil, err
	}
	return a, nil
}

func storeRecords(ctx context.Context, dataDir string, records []types.ApplicationRecord) error {
	db, err := database.NewDB(ctx, dataDir)
	if err != nil {
		return err
	}
	defer db.Close()
	return database.NewRepository(db).SaveApplications(ctx, records)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writePredictionsCSV(w io.Writer, labels []string, predictions []analysis.Prediction) error {
	cw := csv.NewWriter(w)
	header := append([]string{"application_id", "risk_category", "risk_level", "confidence"}, labels...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, p := range predictions {
		row := []string{
			p.ApplicationID,
			p.RiskCategory,
			strconv.Itoa(p.RiskLevel),
			strconv.FormatFloat(p.Confidence, 'f', 4, 64),
		}
		for _, l := range labels {
			row = append(row, strconv.FormatFloat(p.Probabilities[l], 'f', 4, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
