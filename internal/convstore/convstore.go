// Package convstore persists multi-agent conversations, messages, analyses,
// and conclusions in SQLite. It is the durable record behind the
// adjudication path and the source for the statistics surface.
package convstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/storewatch/storewatch/internal/agents"
)

// ErrConcluded is returned when a conclusion already exists for the
// conversation. Conclusions are written exactly once.
var ErrConcluded = errors.New("convstore: conversation already concluded")

// ErrNotFound is returned by point lookups for unknown ids.
var ErrNotFound = errors.New("convstore: not found")

// Stats is the aggregate view over all stored conversations.
type Stats struct {
	TotalConversations int     `json:"totalConversations"`
	ConfirmedThreats   int     `json:"confirmedThreats"`
	FalsePositives     int     `json:"falsePositives"`
	ConsensusRate      float64 `json:"consensusRate"`
}

// Store is a SQLite-backed conversation store. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id          TEXT PRIMARY KEY,
	incident_id TEXT NOT NULL,
	camera_id   TEXT NOT NULL,
	location    TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'analyzing',
	created_at  TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	agent_id        TEXT NOT NULL,
	content         TEXT NOT NULL,
	reply_to        TEXT,
	confidence      REAL,
	evidence_type   TEXT,
	timestamp       TEXT NOT NULL,
	created_at      TEXT DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (conversation_id) REFERENCES conversations(id)
);
CREATE TABLE IF NOT EXISTS analyses (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id      TEXT NOT NULL,
	agent_id             TEXT NOT NULL,
	is_suspicious        INTEGER NOT NULL,
	confidence           REAL NOT NULL,
	reasoning            TEXT NOT NULL,
	evidence_points      TEXT NOT NULL,
	false_positive_risks TEXT NOT NULL,
	recommended_action   TEXT NOT NULL,
	created_at           TEXT DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (conversation_id) REFERENCES conversations(id)
);
CREATE TABLE IF NOT EXISTS conclusions (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id     TEXT UNIQUE NOT NULL,
	incident_id         TEXT NOT NULL,
	final_verdict       TEXT NOT NULL,
	combined_confidence REAL NOT NULL,
	summary             TEXT NOT NULL,
	consensus_reached   INTEGER NOT NULL,
	decided_at          TEXT NOT NULL,
	created_at          TEXT DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (conversation_id) REFERENCES conversations(id)
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
CREATE INDEX IF NOT EXISTS idx_analyses_conversation ON analyses(conversation_id);
CREATE INDEX IF NOT EXISTS idx_conversations_incident ON conversations(incident_id);
CREATE INDEX IF NOT EXISTS idx_conversations_camera ON conversations(camera_id);
CREATE INDEX IF NOT EXISTS idx_conclusions_verdict ON conclusions(final_verdict);
`

// Open creates or opens the store at path, creating parent directories and
// the schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("convstore: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("convstore: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("convstore: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// CreateConversation inserts or refreshes a conversation header.
func (s *Store) CreateConversation(ctx context.Context, conv *agents.ConversationContext) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO conversations (id, incident_id, camera_id, location, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ConversationID, conv.IncidentID, conv.CameraID, conv.Location, conv.StartedAt, conv.Status)
	if err != nil {
		return fmt.Errorf("convstore: save conversation: %w", err)
	}
	return nil
}

// UpdateStatus sets a conversation's status.
func (s *Store) UpdateStatus(ctx context.Context, conversationID, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET status = ? WHERE id = ?`, status, conversationID)
	if err != nil {
		return fmt.Errorf("convstore: update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessage stores one conversation turn.
func (s *Store) AppendMessage(ctx context.Context, conversationID string, msg agents.AgentMessage) error {
	var confidence sql.NullFloat64
	var evidenceType sql.NullString
	if msg.Metadata != nil {
		confidence = sql.NullFloat64{Float64: msg.Metadata.Confidence, Valid: true}
		evidenceType = sql.NullString{String: msg.Metadata.EvidenceType, Valid: msg.Metadata.EvidenceType != ""}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, agent_id, content, reply_to, confidence, evidence_type, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, conversationID, msg.AgentID, msg.Content,
		nullString(msg.ReplyTo), confidence, evidenceType, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("convstore: save message: %w", err)
	}
	return nil
}

// SaveAnalysis stores one agent's analysis. Evidence arrays are kept as
// JSON text columns.
func (s *Store) SaveAnalysis(ctx context.Context, conversationID string, a agents.AgentAnalysis) error {
	evidence, err := json.Marshal(a.EvidencePoints)
	if err != nil {
		return fmt.Errorf("convstore: encode evidence: %w", err)
	}
	risks, err := json.Marshal(a.FalsePositiveRisks)
	if err != nil {
		return fmt.Errorf("convstore: encode risks: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analyses (conversation_id, agent_id, is_suspicious, confidence, reasoning, evidence_points, false_positive_risks, recommended_action)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		conversationID, a.AgentID, boolInt(a.IsSuspicious), a.Confidence,
		a.Reasoning, string(evidence), string(risks), a.RecommendedAction)
	if err != nil {
		return fmt.Errorf("convstore: save analysis: %w", err)
	}
	return nil
}

// SaveConclusion stores the terminal record. The UNIQUE constraint on
// conversation_id enforces exactly-once; a second write returns
// ErrConcluded.
func (s *Store) SaveConclusion(ctx context.Context, c agents.ConversationConclusion) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conclusions (conversation_id, incident_id, final_verdict, combined_confidence, summary, consensus_reached, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ConversationID, c.IncidentID, c.FinalVerdict, c.CombinedConfidence,
		c.Summary, boolInt(c.ConsensusReached), c.DecidedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConcluded
		}
		return fmt.Errorf("convstore: save conclusion: %w", err)
	}
	return nil
}

// Get returns one conversation with its messages.
func (s *Store) Get(ctx context.Context, conversationID string) (*agents.ConversationContext, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, incident_id, camera_id, location, started_at, status
		FROM conversations WHERE id = ?`, conversationID)
	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("convstore: get conversation: %w", err)
	}
	msgs, err := s.messages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	conv.Messages = msgs
	return conv, nil
}

// Conclusion returns the terminal record for a conversation, or ErrNotFound.
func (s *Store) Conclusion(ctx context.Context, conversationID string) (*agents.ConversationConclusion, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT conversation_id, incident_id, final_verdict, combined_confidence, summary, consensus_reached, decided_at
		FROM conclusions WHERE conversation_id = ?`, conversationID)
	var c agents.ConversationConclusion
	var consensus int
	err := row.Scan(&c.ConversationID, &c.IncidentID, &c.FinalVerdict,
		&c.CombinedConfidence, &c.Summary, &consensus, &c.DecidedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("convstore: get conclusion: %w", err)
	}
	c.ConsensusReached = consensus != 0
	return &c, nil
}

// Recent returns up to limit conversations ordered by start time, newest
// first, each with its messages.
func (s *Store) Recent(ctx context.Context, limit int) ([]*agents.ConversationContext, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, incident_id, camera_id, location, started_at, status
		FROM conversations ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("convstore: recent: %w", err)
	}
	defer rows.Close()

	var out []*agents.ConversationContext
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("convstore: recent: %w", err)
		}
		out = append(out, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("convstore: recent: %w", err)
	}
	for _, conv := range out {
		msgs, err := s.messages(ctx, conv.ConversationID)
		if err != nil {
			return nil, err
		}
		conv.Messages = msgs
	}
	return out, nil
}

// Analyses returns the stored analyses for a conversation.
func (s *Store) Analyses(ctx context.Context, conversationID string) ([]agents.AgentAnalysis, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id, is_suspicious, confidence, reasoning, evidence_points, false_positive_risks, recommended_action
		FROM analyses WHERE conversation_id = ? ORDER BY id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("convstore: analyses: %w", err)
	}
	defer rows.Close()

	var out []agents.AgentAnalysis
	for rows.Next() {
		var a agents.AgentAnalysis
		var suspicious int
		var evidence, risks string
		if err := rows.Scan(&a.AgentID, &suspicious, &a.Confidence, &a.Reasoning,
			&evidence, &risks, &a.RecommendedAction); err != nil {
			return nil, fmt.Errorf("convstore: analyses: %w", err)
		}
		a.IsSuspicious = suspicious != 0
		if err := json.Unmarshal([]byte(evidence), &a.EvidencePoints); err != nil {
			a.EvidencePoints = []string{}
		}
		if err := json.Unmarshal([]byte(risks), &a.FalsePositiveRisks); err != nil {
			a.FalsePositiveRisks = []string{}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Statistics aggregates over all conversations and conclusions.
func (s *Store) Statistics(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations`).Scan(&st.TotalConversations); err != nil {
		return Stats{}, fmt.Errorf("convstore: stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT final_verdict, consensus_reached FROM conclusions`)
	if err != nil {
		return Stats{}, fmt.Errorf("convstore: stats: %w", err)
	}
	defer rows.Close()

	concluded, consensus := 0, 0
	for rows.Next() {
		var verdict string
		var agreed int
		if err := rows.Scan(&verdict, &agreed); err != nil {
			return Stats{}, fmt.Errorf("convstore: stats: %w", err)
		}
		concluded++
		if agreed != 0 {
			consensus++
		}
		switch verdict {
		case agents.VerdictConfirmedThreat:
			st.ConfirmedThreats++
		case agents.VerdictFalsePositive:
			st.FalsePositives++
		}
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("convstore: stats: %w", err)
	}
	if concluded > 0 {
		st.ConsensusRate = float64(consensus) / float64(concluded)
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*agents.ConversationContext, error) {
	var conv agents.ConversationContext
	if err := row.Scan(&conv.ConversationID, &conv.IncidentID, &conv.CameraID,
		&conv.Location, &conv.StartedAt, &conv.Status); err != nil {
		return nil, err
	}
	conv.Messages = []agents.AgentMessage{}
	return &conv, nil
}

func (s *Store) messages(ctx context.Context, conversationID string) ([]agents.AgentMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, content, reply_to, confidence, evidence_type, timestamp
		FROM messages WHERE conversation_id = ? ORDER BY timestamp ASC, created_at ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("convstore: messages: %w", err)
	}
	defer rows.Close()

	msgs := []agents.AgentMessage{}
	for rows.Next() {
		var m agents.AgentMessage
		var replyTo, evidenceType sql.NullString
		var confidence sql.NullFloat64
		if err := rows.Scan(&m.ID, &m.AgentID, &m.Content, &replyTo,
			&confidence, &evidenceType, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("convstore: messages: %w", err)
		}
		m.ReplyTo = replyTo.String
		if confidence.Valid || evidenceType.Valid {
			m.Metadata = &agents.MessageMetadata{
				Confidence:   confidence.Float64,
				EvidenceType: evidenceType.String,
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}
