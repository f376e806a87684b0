package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// ModerationStats summarizes the moderation ledger for the admin review
// surface.
type ModerationStats struct {
	StatusCounts map[string]int64 `json:"status_counts"`
	TotalReports int64            `json:"total_reports"`
	ReasonCounts map[string]int64 `json:"reason_counts"`
}

// GetModerationStats aggregates status counts, the total report count, and
// the merged reasons histogram across all moderation records.
func GetModerationStats(db *sql.DB) (*ModerationStats, error) {
	stats := &ModerationStats{
		StatusCounts: map[string]int64{},
		ReasonCounts: map[string]int64{},
	}

	statusQuery := psql.Select("status", "COUNT(*)").
		From("moderation_records").
		GroupBy("status")
	sqlStr, args, err := statusQuery.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build status count query: %w", err)
	}
	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query status counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count row: %w", err)
		}
		stats.StatusCounts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating status counts: %w", err)
	}

	totalQuery := psql.Select("COALESCE(SUM(report_count), 0)").From("moderation_records")
	sqlStr, args, err = totalQuery.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build total reports query: %w", err)
	}
	if err := db.QueryRow(sqlStr, args...).Scan(&stats.TotalReports); err != nil {
		return nil, fmt.Errorf("failed to query total reports: %w", err)
	}

	// histograms are JSON blobs per record; merge them in Go
	reasonsQuery := psql.Select("reasons").
		From("moderation_records").
		Where(sq.Gt{"report_count": 0})
	sqlStr, args, err = reasonsQuery.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build reasons query: %w", err)
	}
	reasonRows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reasons: %w", err)
	}
	defer reasonRows.Close()
	for reasonRows.Next() {
		var raw string
		if err := reasonRows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan reasons row: %w", err)
		}
		if raw == "" {
			continue
		}
		var counts map[string]int64
		if err := json.Unmarshal([]byte(raw), &counts); err != nil {
			continue // skip unreadable histograms rather than failing the whole summary
		}
		for reason, count := range counts {
			stats.ReasonCounts[reason] += count
		}
	}
	if err := reasonRows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating reasons: %w", err)
	}

	return stats, nil
}
