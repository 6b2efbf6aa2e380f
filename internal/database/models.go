package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

const (
	stmtUpsertApplication = "upsert_application"
	stmtGetApplication    = "get_application"
	stmtInsertAnalysis    = "insert_analysis"
	stmtLatestAnalysis    = "latest_analysis"
)

// AnalysisRow is the indexed part of a stored analysis. The full result is
// kept as JSON alongside it.
type AnalysisRow struct {
	ID            string    `json:"id" db:"id"`
	ApplicationID string    `json:"application_id" db:"application_id"`
	ModelVersion  string    `json:"model_version" db:"model_version"`
	Source        string    `json:"source" db:"source"`
	RiskCategory  string    `json:"risk_category" db:"risk_category"`
	RiskLevel     int       `json:"risk_level" db:"risk_level"`
	Confidence    float64   `json:"confidence" db:"confidence"`
	RiskScore     float64   `json:"risk_score" db:"risk_score"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// NewAnalysisRow creates a row with a fresh id.
func NewAnalysisRow(applicationID string) *AnalysisRow {
	return &AnalysisRow{
		ID:            uuid.New().String(),
		ApplicationID: applicationID,
		CreatedAt:     time.Now().UTC(),
	}
}

// CategoryCount is one line of the stored category distribution.
type CategoryCount struct {
	RiskCategory string `json:"risk_category"`
	Count        int    `json:"count"`
}

// Timestamp scans a column that sqlite may hand back as text, as it does
// for aggregates and derived tables. NULL leaves it invalid.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

// Scan implements sql.Scanner.
func (ts *Timestamp) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		ts.Time, ts.Valid = time.Time{}, false
		return nil
	case time.Time:
		ts.Time, ts.Valid = v.UTC(), true
		return nil
	case []byte:
		return ts.parse(string(v))
	case string:
		return ts.parse(v)
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (ts *Timestamp) parse(s string) error {
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			ts.Time, ts.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// Ptr returns nil for NULL.
func (ts Timestamp) Ptr() *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}
