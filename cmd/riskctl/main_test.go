package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/analysis"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/dataset"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{name}, args...))
	return out.String(), err
}

func writeCorpus(t *testing.T, rows int, seed int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.csv")
	require.NoError(t, dataset.WriteFile(path, dataset.Synthesize(rows, seed)))
	return path
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "risk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  explain:\n    samples: 300\n"), 0o600))
	return path
}

func TestSynth(t *testing.T) {
	out, err := run(t, "synth", "--rows", "25", "--seed", "3")
	require.NoError(t, err)

	records, err := dataset.Read(bytes.NewBufferString(out))
	require.NoError(t, err)
	assert.Equal(t, dataset.Synthesize(25, 3)[0].ID, records[0].ID)
	assert.Len(t, records, 25)

	path := filepath.Join(t.TempDir(), "out.csv")
	_, err = run(t, "synth", "--rows", "5", "-o", path)
	require.NoError(t, err)
	fromFile, err := dataset.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, fromFile, 5)

	_, err = run(t, "synth", "--rows", "0")
	assert.Error(t, err)
}

func TestTrain(t *testing.T) {
	corpus := writeCorpus(t, 300, 11)

	out, err := run(t, "--config", writeConfig(t), "train", "--corpus", corpus)
	require.NoError(t, err)

	var resp struct {
		ModelVersion string                   `json:"model_version"`
		Labels       []string                 `json:"labels"`
		Training     analysis.TrainingSummary `json:"training"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.NotEmpty(t, resp.ModelVersion)
	assert.Equal(t, analysis.DefaultLabels, resp.Labels)
	assert.Equal(t, 300, resp.Training.Rows)

	_, err = run(t, "train")
	assert.ErrorContains(t, err, "--corpus")
}

func TestTrain_StoreThenReuseDataDir(t *testing.T) {
	corpus := writeCorpus(t, 300, 12)
	dataDir := t.TempDir()
	cfg := writeConfig(t)

	_, err := run(t, "--config", cfg, "train", "--corpus", corpus, "--data-dir", dataDir, "--store")
	require.NoError(t, err)

	id := dataset.Synthesize(300, 12)[4].ID
	out, err := run(t, "--config", cfg, "analyze", "--data-dir", dataDir, "--id", id)
	require.NoError(t, err)

	var res analysis.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, id, res.ApplicationID)
	assert.Equal(t, analysis.SourceModel, res.Source)
}

func TestAnalyze(t *testing.T) {
	corpus := writeCorpus(t, 300, 13)
	records := dataset.Synthesize(300, 13)
	cfg := writeConfig(t)

	out, err := run(t, "--config", cfg, "analyze", "--corpus", corpus, "--id", records[0].ID, "--id", records[1].ID)
	require.NoError(t, err)
	var results []analysis.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, records[1].ID, results[1].ApplicationID)

	out, err = run(t, "--config", cfg, "analyze", "--corpus", corpus, "--id", records[0].ID, "--category", "Secure")
	require.NoError(t, err)
	var exp analysis.Explanation
	require.NoError(t, json.Unmarshal([]byte(out), &exp))
	assert.Equal(t, "Secure", exp.RiskCategory)

	_, err = run(t, "--config", cfg, "analyze", "--corpus", corpus, "--id", "APP-MISSING")
	assert.ErrorIs(t, err, analysis.ErrApplicationNotFound)
}

func TestCategorize(t *testing.T) {
	corpus := writeCorpus(t, 300, 14)
	input := writeCorpus(t, 20, 15)
	cfg := writeConfig(t)

	out, err := run(t, "--config", cfg, "categorize", "--corpus", corpus, "--input", input)
	require.NoError(t, err)
	var predictions []analysis.Prediction
	require.NoError(t, json.Unmarshal([]byte(out), &predictions))
	assert.Len(t, predictions, 20)

	out, err = run(t, "--config", cfg, "categorize", "--corpus", corpus, "--input", input, "--format", "csv")
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewBufferString(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 21)
	assert.Equal(t, []string{"application_id", "risk_category", "risk_level", "confidence", "Secure", "Unstable", "Risky", "Critical", "Default"}, rows[0])

	_, err = run(t, "--config", cfg, "categorize", "--corpus", corpus, "--input", input, "--format", "xml")
	assert.Error(t, err)
}
