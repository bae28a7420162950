package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"call-analytics-go/internal/aggregator"
	"call-analytics-go/internal/types"
)

const (
	KindCall    = "call"
	KindFlagged = "flagged"

	StatusStored             = "STORED"
	StatusNeedsReview        = "NEEDS_REVIEW"
	StatusFlagged            = "FLAGGED_FOR_REVIEW"
	StatusUnrecoverableInput = "UNRECOVERABLE_INPUT"
)

// CallRecord is the persisted per-call document.
type CallRecord struct {
	CallID      string            `json:"call_id"`
	RecordKey   string            `json:"record_key"`
	Kind        string            `json:"kind"`
	Status      string            `json:"status"`
	Eligibility types.Eligibility `json:"eligibility"`
	NeedsReview bool              `json:"needs_manual_review"`
	MeanScore   *float64          `json:"overall_score,omitempty"`
	AudioBytes  int               `json:"audio_bytes,omitempty"`
	RecordedAt  time.Time         `json:"recorded_at"`
	State       *types.CallState  `json:"state"`
}

// RecordKey names a call's record; flagged calls get their own prefix so a
// review queue can list them by key alone.
func RecordKey(st *types.CallState) string {
	if st.Flagged() {
		return "FLAGGED_" + st.CallID
	}
	return "CALL_" + st.CallID
}

func recordStatus(st *types.CallState) string {
	switch {
	case st.Flagged():
		return StatusFlagged
	case st.ReviewReasons.Has(types.ReasonUnrecoverableInput):
		return StatusUnrecoverableInput
	case !st.ReviewReasons.Empty():
		return StatusNeedsReview
	default:
		return StatusStored
	}
}

func buildRecord(st *types.CallState, eligibility types.Eligibility, at time.Time) CallRecord {
	kind := KindCall
	if st.Flagged() {
		kind = KindFlagged
	}
	rec := CallRecord{
		CallID:      st.CallID,
		RecordKey:   RecordKey(st),
		Kind:        kind,
		Status:      recordStatus(st),
		Eligibility: eligibility,
		NeedsReview: !st.ReviewReasons.Empty(),
		AudioBytes:  len(st.Input.Audio),
		RecordedAt:  at,
		State:       st,
	}
	if mean, ok := st.Quality.Normalized().Mean(); ok {
		rec.MeanScore = &mean
	}
	return rec
}

// Record persists st: the full record, its index entry and, for eligible
// calls only, the agent rollup. Re-recording a call id overwrites the
// previous write. Failures are retried, then escalated through the Alerter.
func (s *Store) Record(ctx context.Context, st *types.CallState) error {
	if st == nil || strings.TrimSpace(st.CallID) == "" {
		return &types.PersistenceError{Err: errors.New("call state has no call id")}
	}

	eligibility := aggregator.Gate(st)
	rec := buildRecord(st, eligibility, s.now())
	payload, err := json.Marshal(rec)
	if err != nil {
		perr := &types.PersistenceError{CallID: st.CallID, Attempts: 0, Err: fmt.Errorf("encode record: %w", err)}
		s.alerter.Alert(ctx, perr)
		return perr
	}

	attempts := 0
	op := func() error {
		attempts++
		werr := s.write(ctx, rec, payload)
		if werr != nil {
			s.log.WithFields(logrus.Fields{
				"call_id": st.CallID,
				"attempt": attempts,
				"error":   werr.Error(),
			}).Warn("call write failed")
			if ctx.Err() != nil {
				return backoff.Permanent(werr)
			}
		}
		return werr
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = s.maxRetry
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		perr := &types.PersistenceError{CallID: st.CallID, Attempts: attempts, Err: err}
		s.alerter.Alert(ctx, perr)
		return perr
	}

	s.log.WithFields(logrus.Fields{
		"call_id":     st.CallID,
		"record_key":  rec.RecordKey,
		"eligibility": eligibility,
		"status":      rec.Status,
	}).Info("call recorded")
	return nil
}

func (s *Store) write(ctx context.Context, rec CallRecord, payload []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if s.faultHook != nil {
		if err := s.faultHook(); err != nil {
			return err
		}
	}

	st := rec.State
	ts := formatTime(rec.RecordedAt)

	var previousAgent sql.NullString
	err = tx.QueryRowContext(ctx, "SELECT agent_name FROM quality_scores WHERE call_id = ?", rec.CallID).Scan(&previousAgent)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read previous score: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO call_records (call_id, record_key, kind, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(call_id) DO UPDATE SET
			record_key = excluded.record_key,
			kind = excluded.kind,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		rec.CallID, rec.RecordKey, rec.Kind, string(payload), ts, ts,
	); err != nil {
		return fmt.Errorf("upsert call record: %w", err)
	}

	agent, hasAgent := st.AgentName()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO call_index (call_id, record_key, agent_name, review_reasons, needs_review,
			eligibility, mean_score, flagged_categories, status, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(call_id) DO UPDATE SET
			record_key = excluded.record_key,
			agent_name = excluded.agent_name,
			review_reasons = excluded.review_reasons,
			needs_review = excluded.needs_review,
			eligibility = excluded.eligibility,
			mean_score = excluded.mean_score,
			flagged_categories = excluded.flagged_categories,
			status = excluded.status,
			recorded_at = excluded.recorded_at`,
		rec.CallID, rec.RecordKey, nullString(agent, hasAgent), st.ReviewReasons.String(), boolToInt(rec.NeedsReview),
		string(rec.Eligibility), nullFloat(rec.MeanScore), strings.Join(st.Safety.Categories, ","), rec.Status, ts,
	); err != nil {
		return fmt.Errorf("upsert call index: %w", err)
	}

	touched := map[string]bool{}
	if previousAgent.Valid {
		touched[previousAgent.String] = true
	}

	if rec.Eligibility == types.Eligible {
		score, ok := aggregator.ScoreRecordFor(st, rec.RecordedAt)
		if !ok {
			return fmt.Errorf("eligible call %s has no score", rec.CallID)
		}
		if err := upsertScore(ctx, tx, score); err != nil {
			return err
		}
		touched[score.AgentName] = true
	} else if _, err := tx.ExecContext(ctx, "DELETE FROM quality_scores WHERE call_id = ?", rec.CallID); err != nil {
		return fmt.Errorf("clear excluded score: %w", err)
	}

	for name := range touched {
		if err := s.refreshAgent(ctx, tx, name); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record tx: %w", err)
	}
	return nil
}

func upsertScore(ctx context.Context, tx *sql.Tx, score types.ScoreRecord) error {
	args := []any{score.CallID, score.AgentName}
	for _, d := range types.Dimensions {
		if v, ok := score.Scores[d]; ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}
	args = append(args, score.Mean, formatTime(score.RecordedAt))
	_, err := tx.ExecContext(ctx, `
		INSERT INTO quality_scores (call_id, agent_name, tone, professionalism, resolution, response, mean_score, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(call_id) DO UPDATE SET
			agent_name = excluded.agent_name,
			tone = excluded.tone,
			professionalism = excluded.professionalism,
			resolution = excluded.resolution,
			response = excluded.response,
			mean_score = excluded.mean_score,
			recorded_at = excluded.recorded_at`, args...)
	if err != nil {
		return fmt.Errorf("upsert quality score: %w", err)
	}
	return nil
}

// refreshAgent recomputes one agent's rollup from its eligible score rows.
func (s *Store) refreshAgent(ctx context.Context, tx *sql.Tx, agent string) error {
	records, err := queryScores(ctx, tx, agent, TimeRange{})
	if err != nil {
		return err
	}
	perf := aggregator.Aggregate(agent, records, s.now())
	if perf.TotalCalls == 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM agent_performance WHERE agent_name = ?", agent); err != nil {
			return fmt.Errorf("drop empty rollup: %w", err)
		}
		return nil
	}

	args := []any{perf.AgentName, perf.TotalCalls, perf.AverageOverall}
	for _, d := range types.Dimensions {
		if v, ok := perf.Averages[d]; ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}
	args = append(args, formatTime(perf.LastUpdated))
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO agent_performance (agent_name, total_calls, avg_overall, avg_tone,
			avg_professionalism, avg_resolution, avg_response, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_name) DO UPDATE SET
			total_calls = excluded.total_calls,
			avg_overall = excluded.avg_overall,
			avg_tone = excluded.avg_tone,
			avg_professionalism = excluded.avg_professionalism,
			avg_resolution = excluded.avg_resolution,
			avg_response = excluded.avg_response,
			last_updated = excluded.last_updated`, args...); err != nil {
		return fmt.Errorf("upsert agent rollup: %w", err)
	}
	return nil
}

func nullString(s string, ok bool) sql.NullString {
	return sql.NullString{String: s, Valid: ok}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
