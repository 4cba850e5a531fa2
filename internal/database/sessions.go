package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/khrees2412/callscreen/pkg/models"
)

const sessionColumns = `session_id, candidate_id, job_id, recruiter_id, queue_entry_id, stage, skill_index,
	terminal_reason, step, job_skills, entities, history, created_at, updated_at`

// InsertSession stores a new conversation session
func (q *Queries) InsertSession(ctx context.Context, s *models.Session) error {
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = s.CreatedAt

	skills, entities, history, err := encodeSession(s)
	if err != nil {
		return err
	}

	query := `INSERT INTO sessions (` + sessionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = q.q.ExecContext(ctx, query, s.ID, s.CandidateID, nullableInt(s.JobID), s.RecruiterID,
		nullableInt(s.QueueEntryID), s.Stage, s.SkillIndex, s.TerminalReason, s.Step, skills, entities, history,
		instant(s.CreatedAt), instant(s.UpdatedAt))
	if err != nil {
		return wrapError(fmt.Errorf("failed to insert session: %w", err))
	}
	return nil
}

// GetSession returns a session by ID
func (q *Queries) GetSession(ctx context.Context, id string) (*models.Session, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, id)

	s := &models.Session{}
	var jobID, queueEntryID sql.NullInt64
	var skills, entities, history string
	err := row.Scan(&s.ID, &s.CandidateID, &jobID, &s.RecruiterID, &queueEntryID, &s.Stage, &s.SkillIndex,
		&s.TerminalReason, &s.Step, &skills, &entities, &history, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, wrapError(fmt.Errorf("session %s: %w", id, err))
	}
	s.JobID = intPtr(jobID)
	s.QueueEntryID = intPtr(queueEntryID)

	if err := json.Unmarshal([]byte(skills), &s.JobSkills); err != nil {
		return nil, fmt.Errorf("session %s has malformed job skills: %w", id, err)
	}
	if err := json.Unmarshal([]byte(entities), &s.Entities); err != nil {
		return nil, fmt.Errorf("session %s has malformed entities: %w", id, err)
	}
	if err := json.Unmarshal([]byte(history), &s.History); err != nil {
		return nil, fmt.Errorf("session %s has malformed history: %w", id, err)
	}
	if s.Entities == nil {
		s.Entities = map[string]any{}
	}
	return s, nil
}

// SaveSession overwrites the mutable state of a session
func (q *Queries) SaveSession(ctx context.Context, s *models.Session) error {
	s.UpdatedAt = time.Now()
	skills, entities, history, err := encodeSession(s)
	if err != nil {
		return err
	}

	query := `UPDATE sessions SET job_id = ?, queue_entry_id = ?, stage = ?, skill_index = ?, terminal_reason = ?,
			  step = ?, job_skills = ?, entities = ?, history = ?, updated_at = ? WHERE session_id = ?`
	result, err := q.q.ExecContext(ctx, query, nullableInt(s.JobID), nullableInt(s.QueueEntryID), s.Stage,
		s.SkillIndex, s.TerminalReason, s.Step, skills, entities, history, instant(s.UpdatedAt), s.ID)
	if err != nil {
		return wrapError(fmt.Errorf("failed to save session %s: %w", s.ID, err))
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", s.ID, ErrNotFound)
	}
	return nil
}

// DeleteSession removes a session
func (q *Queries) DeleteSession(ctx context.Context, id string) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// InsertConversationLog appends one dialogue turn to the audit log
func (q *Queries) InsertConversationLog(ctx context.Context, l *models.ConversationLog) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	entities, err := json.Marshal(nonNilMap(l.Entities))
	if err != nil {
		return fmt.Errorf("failed to encode entities: %w", err)
	}

	query := `INSERT INTO conversations (candidate_id, session_id, transcript, entities_extracted, created_at)
			  VALUES (?, ?, ?, ?, ?)`
	result, err := q.q.ExecContext(ctx, query, l.CandidateID, l.SessionID, l.Transcript, string(entities),
		instant(l.CreatedAt))
	if err != nil {
		return wrapError(fmt.Errorf("failed to insert conversation log: %w", err))
	}
	id, _ := result.LastInsertId()
	l.ID = id
	return nil
}

// ListConversationLogs returns a candidate's turns in the order they happened
func (q *Queries) ListConversationLogs(ctx context.Context, candidateID int64) ([]*models.ConversationLog, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT id, candidate_id, session_id, transcript, entities_extracted, created_at
		FROM conversations WHERE candidate_id = ? ORDER BY id ASC`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation logs: %w", err)
	}
	defer rows.Close()

	logs := []*models.ConversationLog{}
	for rows.Next() {
		l := &models.ConversationLog{}
		var entities string
		if err := rows.Scan(&l.ID, &l.CandidateID, &l.SessionID, &l.Transcript, &entities, &l.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(entities), &l.Entities); err != nil {
			return nil, fmt.Errorf("conversation log %d has malformed entities: %w", l.ID, err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func encodeSession(s *models.Session) (skills, entities, history string, err error) {
	if s.JobSkills == nil {
		s.JobSkills = []models.Skill{}
	}
	if s.History == nil {
		s.History = []models.Message{}
	}
	s.Entities = nonNilMap(s.Entities)

	b, err := json.Marshal(s.JobSkills)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode job skills: %w", err)
	}
	skills = string(b)
	if b, err = json.Marshal(s.Entities); err != nil {
		return "", "", "", fmt.Errorf("failed to encode entities: %w", err)
	}
	entities = string(b)
	if b, err = json.Marshal(s.History); err != nil {
		return "", "", "", fmt.Errorf("failed to encode history: %w", err)
	}
	history = string(b)
	return skills, entities, history, nil
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
