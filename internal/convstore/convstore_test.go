package convstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/storewatch/storewatch/internal/agents"
)

var _ agents.Store = (*Store)(nil)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "conversations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func conversation(id string, startedAt time.Time) *agents.ConversationContext {
	return &agents.ConversationContext{
		ConversationID: id,
		IncidentID:     "inc-" + id,
		CameraID:       "cam-1",
		Location:       "Aisle 9",
		StartedAt:      startedAt.UTC().Format(time.RFC3339),
		Status:         agents.StatusAnalyzing,
	}
}

func conclusion(convID, verdict string, consensus bool) agents.ConversationConclusion {
	return agents.ConversationConclusion{
		ConversationID:     convID,
		IncidentID:         "inc-" + convID,
		FinalVerdict:       verdict,
		CombinedConfidence: 0.5,
		Summary:            "test",
		DecidedAt:          time.Now().UTC().Format(time.RFC3339),
		ConsensusReached:   consensus,
	}
}

func TestRoundTripConversationWithMessages(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	conv := conversation("c1", time.Now())
	require.NoError(t, s.CreateConversation(ctx, conv))

	m1 := agents.NewMessage(agents.AudioAgentID, "first", "", time.Unix(1700000000, 0))
	m1.Metadata = &agents.MessageMetadata{Confidence: 0.6, EvidenceType: "audio"}
	m2 := agents.NewMessage(agents.VisionAgentID, "second", m1.ID, time.Unix(1700000010, 0))
	require.NoError(t, s.AppendMessage(ctx, "c1", m1))
	require.NoError(t, s.AppendMessage(ctx, "c1", m2))

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "inc-c1", got.IncidentID)
	require.Len(t, got.Messages, 2)
	require.Equal(t, "first", got.Messages[0].Content)
	require.Equal(t, m1.ID, got.Messages[1].ReplyTo)
	require.NotNil(t, got.Messages[0].Metadata)
	require.Equal(t, 0.6, got.Messages[0].Metadata.Confidence)
	require.Nil(t, got.Messages[1].Metadata)
}

func TestGetUnknownConversation(t *testing.T) {
	s := openStore(t)
	_, err := s.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateConversation(ctx, conversation("c1", time.Now())))

	require.NoError(t, s.UpdateStatus(ctx, "c1", agents.StatusConcluded))
	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, agents.StatusConcluded, got.Status)

	require.ErrorIs(t, s.UpdateStatus(ctx, "missing", agents.StatusConcluded), ErrNotFound)
}

func TestSaveConclusionExactlyOnce(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateConversation(ctx, conversation("c1", time.Now())))

	first := conclusion("c1", agents.VerdictConfirmedThreat, true)
	require.NoError(t, s.SaveConclusion(ctx, first))

	second := conclusion("c1", agents.VerdictFalsePositive, false)
	require.ErrorIs(t, s.SaveConclusion(ctx, second), ErrConcluded)

	got, err := s.Conclusion(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, agents.VerdictConfirmedThreat, got.FinalVerdict)
	require.True(t, got.ConsensusReached)
}

func TestAnalysesRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateConversation(ctx, conversation("c1", time.Now())))

	a := agents.AgentAnalysis{
		AgentID:            agents.AudioAgentID,
		IsSuspicious:       true,
		Confidence:         0.6,
		Reasoning:          "keywords",
		EvidencePoints:     []string{"keyword detected: \"steal\""},
		FalsePositiveRisks: []string{"keyword matching only"},
		RecommendedAction:  agents.ActionMonitor,
	}
	require.NoError(t, s.SaveAnalysis(ctx, "c1", a))

	got, err := s.Analyses(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, a, got[0])
}

func TestRecentOrderedNewestFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, s.CreateConversation(ctx, conversation(id, base.Add(time.Duration(i)*time.Minute))))
	}

	got, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "new", got[0].ConversationID)
	require.Equal(t, "mid", got[1].ConversationID)
}

func TestStatistics(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)
	for i, id := range []string{"c1", "c2", "c3", "c4"} {
		require.NoError(t, s.CreateConversation(ctx, conversation(id, base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, s.SaveConclusion(ctx, conclusion("c1", agents.VerdictConfirmedThreat, true)))
	require.NoError(t, s.SaveConclusion(ctx, conclusion("c2", agents.VerdictFalsePositive, true)))
	require.NoError(t, s.SaveConclusion(ctx, conclusion("c3", agents.VerdictNeedsHumanReview, false)))

	st, err := s.Statistics(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, st.TotalConversations)
	require.Equal(t, 1, st.ConfirmedThreats)
	require.Equal(t, 1, st.FalsePositives)
	require.InDelta(t, 2.0/3.0, st.ConsensusRate, 1e-9)
}

func TestStatisticsEmptyStore(t *testing.T) {
	s := openStore(t)
	st, err := s.Statistics(context.Background())
	require.NoError(t, err)
	require.Zero(t, st.TotalConversations)
	require.Zero(t, st.ConsensusRate)
}
