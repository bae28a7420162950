package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"call-analytics-go/internal/types"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Get returns the stored record for callID.
func (s *Store) Get(ctx context.Context, callID string) (*CallRecord, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM call_records WHERE call_id = ?", callID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load call %s: %w", callID, err)
	}
	var rec CallRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("decode call %s: %w", callID, err)
	}
	return &rec, nil
}

const indexColumns = `call_id, record_key, agent_name, review_reasons, needs_review,
	eligibility, mean_score, flagged_categories, status, recorded_at`

// Index returns master index rows, newest first. limit <= 0 means no limit.
func (s *Store) Index(ctx context.Context, limit int) ([]types.IndexEntry, error) {
	return s.queryIndex(ctx, "SELECT "+indexColumns+" FROM call_index ORDER BY recorded_at DESC, call_id", limit)
}

// ManualReviewQueue lists every call that needs a human, newest first.
func (s *Store) ManualReviewQueue(ctx context.Context, limit int) ([]types.IndexEntry, error) {
	return s.queryIndex(ctx, "SELECT "+indexColumns+" FROM call_index WHERE needs_review = 1 ORDER BY recorded_at DESC, call_id", limit)
}

// FlaggedQueue lists calls stored under the flagged key prefix.
func (s *Store) FlaggedQueue(ctx context.Context, limit int) ([]types.IndexEntry, error) {
	return s.queryIndex(ctx, `SELECT `+indexColumns+` FROM call_index
		WHERE record_key LIKE 'FLAGGED\_%' ESCAPE '\' ORDER BY recorded_at DESC, call_id`, limit)
}

func (s *Store) queryIndex(ctx context.Context, query string, limit int) ([]types.IndexEntry, error) {
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query call index: %w", err)
	}
	defer rows.Close()

	var out []types.IndexEntry
	for rows.Next() {
		var (
			e          types.IndexEntry
			agent      sql.NullString
			reasons    string
			review     int
			eligible   string
			mean       sql.NullFloat64
			categories string
			recorded   string
		)
		if err := rows.Scan(&e.CallID, &e.RecordKey, &agent, &reasons, &review,
			&eligible, &mean, &categories, &e.Status, &recorded); err != nil {
			return nil, fmt.Errorf("scan call index: %w", err)
		}
		e.AgentName = agent.String
		e.ReviewReasons = types.ParseReviewReasons(reasons)
		e.NeedsReview = review == 1
		e.Eligibility = types.Eligibility(eligible)
		if mean.Valid {
			v := mean.Float64
			e.MeanScore = &v
		}
		if categories != "" {
			e.FlaggedCategories = strings.Split(categories, ",")
		}
		e.RecordedAt = parseTime(recorded)
		out = append(out, e)
	}
	return out, rows.Err()
}

// AgentRankings returns every agent rollup, best average first.
func (s *Store) AgentRankings(ctx context.Context) ([]types.AgentPerformance, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT agent_name, total_calls, avg_overall, avg_tone,
		avg_professionalism, avg_resolution, avg_response, last_updated FROM agent_performance`)
	if err != nil {
		return nil, fmt.Errorf("query agent rollups: %w", err)
	}
	defer rows.Close()

	var out []types.AgentPerformance
	for rows.Next() {
		perf, err := scanPerformance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, perf)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AverageOverall != out[j].AverageOverall {
			return out[i].AverageOverall > out[j].AverageOverall
		}
		return out[i].AgentName < out[j].AgentName
	})
	return out, nil
}

// AgentPerformance returns one agent's rollup.
func (s *Store) AgentPerformance(ctx context.Context, agent string) (types.AgentPerformance, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT agent_name, total_calls, avg_overall, avg_tone,
		avg_professionalism, avg_resolution, avg_response, last_updated FROM agent_performance
		WHERE agent_name = ?`, agent)
	if err != nil {
		return types.AgentPerformance{}, fmt.Errorf("query agent rollup: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return types.AgentPerformance{}, err
		}
		return types.AgentPerformance{}, ErrNotFound
	}
	return scanPerformance(rows)
}

func scanPerformance(rows *sql.Rows) (types.AgentPerformance, error) {
	var (
		perf    types.AgentPerformance
		avgs    [4]sql.NullFloat64
		updated string
	)
	if err := rows.Scan(&perf.AgentName, &perf.TotalCalls, &perf.AverageOverall,
		&avgs[0], &avgs[1], &avgs[2], &avgs[3], &updated); err != nil {
		return perf, fmt.Errorf("scan agent rollup: %w", err)
	}
	perf.Averages = map[types.Dimension]float64{}
	for i, d := range types.Dimensions {
		if avgs[i].Valid {
			perf.Averages[d] = avgs[i].Float64
		}
	}
	perf.LastUpdated = parseTime(updated)
	return perf, nil
}

// TimeRange bounds a score query. A zero From or To leaves that side open;
// To is exclusive.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// ParseTimeBound reads a range bound given as a date (2006-01-02, UTC
// midnight) or an RFC 3339 timestamp. An empty string is the zero time.
func ParseTimeBound(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want YYYY-MM-DD or RFC 3339", v)
	}
	return t, nil
}

// AgentScores returns the eligible score history of one agent, oldest first.
func (s *Store) AgentScores(ctx context.Context, agent string) ([]types.ScoreRecord, error) {
	return queryScores(ctx, s.db, agent, TimeRange{})
}

// AgentScoresInRange is AgentScores restricted to calls recorded within r.
func (s *Store) AgentScoresInRange(ctx context.Context, agent string, r TimeRange) ([]types.ScoreRecord, error) {
	return queryScores(ctx, s.db, agent, r)
}

func queryScores(ctx context.Context, q querier, agent string, r TimeRange) ([]types.ScoreRecord, error) {
	query := `SELECT call_id, agent_name, tone, professionalism, resolution,
		response, mean_score, recorded_at FROM quality_scores WHERE agent_name = ?`
	args := []any{agent}
	if !r.From.IsZero() {
		query += " AND recorded_at >= ?"
		args = append(args, formatTime(r.From))
	}
	if !r.To.IsZero() {
		query += " AND recorded_at < ?"
		args = append(args, formatTime(r.To))
	}
	rows, err := q.QueryContext(ctx, query+" ORDER BY recorded_at, call_id", args...)
	if err != nil {
		return nil, fmt.Errorf("query scores for %s: %w", agent, err)
	}
	defer rows.Close()

	var out []types.ScoreRecord
	for rows.Next() {
		var (
			r        types.ScoreRecord
			dims     [4]sql.NullInt64
			recorded string
		)
		if err := rows.Scan(&r.CallID, &r.AgentName, &dims[0], &dims[1], &dims[2], &dims[3],
			&r.Mean, &recorded); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		r.Scores = map[types.Dimension]int{}
		for i, d := range types.Dimensions {
			if dims[i].Valid {
				r.Scores[d] = int(dims[i].Int64)
			}
		}
		r.RecordedAt = parseTime(recorded)
		out = append(out, r)
	}
	return out, rows.Err()
}

// timeLayout is fixed width so text order in SQLite matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
