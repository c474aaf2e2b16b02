package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lexara-six/ingestion/internal/domain"
)

// DataQualityRepo persists field- and record-level problems found while
// ingesting a source.
type DataQualityRepo struct{ Pool PgxPool }

// NewDataQualityRepo constructs a DataQualityRepo with the given pool.
func NewDataQualityRepo(p PgxPool) *DataQualityRepo { return &DataQualityRepo{Pool: p} }

// Report inserts a data-quality issue, defaulting severity/resolution if unset.
func (r *DataQualityRepo) Report(ctx domain.Context, issue domain.DataQualityIssue) error {
	if issue.Severity == "" {
		issue.Severity = domain.SeverityWarning
	}
	if issue.ResolutionStatus == "" {
		issue.ResolutionStatus = domain.ResolutionPending
	}
	if issue.IssueID == "" {
		issue.IssueID = domain.NewID()
	}
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = time.Now().UTC()
	}

	rawJSON, err := jsonOrNull(issue.RawRecord)
	if err != nil {
		return fmt.Errorf("op=dq.report.marshal: %w", err)
	}

	q := `INSERT INTO data_quality_issues (issue_id, job_id, source_record_id, issue_type, severity,
	             field_name, invalid_value, expected_format, message, raw_record, resolution_status, created_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = r.Pool.Exec(ctx, q, issue.IssueID, issue.JobID, issue.SourceRecordID, issue.IssueType,
		issue.Severity, issue.FieldName, issue.InvalidValue, issue.ExpectedFormat, issue.Message,
		rawJSON, issue.ResolutionStatus, issue.CreatedAt)
	if err != nil {
		return fmt.Errorf("op=dq.report: %w", err)
	}
	return nil
}

// List returns data-quality issues filtered by resolution status, newest first.
func (r *DataQualityRepo) List(ctx domain.Context, status string, limit int) ([]domain.DataQualityIssue, error) {
	if status == "" {
		status = string(domain.ResolutionPending)
	}
	q := `SELECT issue_id, job_id, source_record_id, issue_type, severity, field_name,
	             invalid_value, expected_format, message, raw_record, resolution_status, created_at
	      FROM data_quality_issues WHERE resolution_status = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, status, limit)
	if err != nil {
		return nil, fmt.Errorf("op=dq.list: %w", err)
	}
	defer rows.Close()

	var issues []domain.DataQualityIssue
	for rows.Next() {
		var iss domain.DataQualityIssue
		var rawJSON []byte
		if err := rows.Scan(&iss.IssueID, &iss.JobID, &iss.SourceRecordID, &iss.IssueType,
			&iss.Severity, &iss.FieldName, &iss.InvalidValue, &iss.ExpectedFormat, &iss.Message,
			&rawJSON, &iss.ResolutionStatus, &iss.CreatedAt); err != nil {
			return nil, fmt.Errorf("op=dq.list_scan: %w", err)
		}
		if len(rawJSON) > 0 {
			if err := json.Unmarshal(rawJSON, &iss.RawRecord); err != nil {
				return nil, fmt.Errorf("op=dq.list_unmarshal: %w", err)
			}
		}
		issues = append(issues, iss)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=dq.list_rows: %w", err)
	}
	return issues, nil
}
