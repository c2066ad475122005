package inmemdb_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sistira/core/question"
	"github.com/trezcool/sistira/core/room"
	"github.com/trezcool/sistira/core/user"
	inmemdb "github.com/trezcool/sistira/storage/database/inmem"
)

func TestQuestionRepository_CreateAlternative(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewQuestionRepository(inmemdb.Open())

	q, err := repo.CreateQuestion(ctx, question.Question{
		Type:         question.Objective,
		Statement:    question.Statement{Text: "2 + 2?"},
		Alternatives: []question.Alternative{{Content: "3", Position: 0}, {Content: "4", Correct: true, Position: 1}},
		Creator:      user.Summary{ID: "alice"},
	}, nil)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteAlternative(ctx, q.Alternatives[0].ID))
	alt, err := repo.CreateAlternative(ctx, question.Alternative{QuestionID: q.ID, Content: "5"})
	require.NoError(t, err)
	assert.Equal(t, 2, alt.Position)

	_, err = repo.CreateAlternative(ctx, question.Alternative{QuestionID: "lol", Content: "5"})
	assert.Equal(t, question.ErrNotFound, err)

	q.Type = question.Subjective
	q.Alternatives = nil
	_, err = repo.UpdateQuestion(ctx, q, nil, true)
	require.NoError(t, err)

	_, err = repo.CreateAlternative(ctx, question.Alternative{QuestionID: q.ID, Content: "4", Correct: true})
	assert.Equal(t, question.ErrNotObjective, err)
	alts, err := repo.QueryAlternatives(ctx, question.AlternativeFilter{Question: q.ID})
	require.NoError(t, err)
	assert.Empty(t, alts)
}

func TestCounts(t *testing.T) {
	ctx := context.Background()
	db := inmemdb.Open()
	questions := inmemdb.NewQuestionRepository(db)
	rooms := inmemdb.NewRoomRepository(db)

	for _, creator := range []string{"alice", "alice", "bob"} {
		_, err := questions.CreateQuestion(ctx, question.Question{
			Type:      question.Subjective,
			Statement: question.Statement{Text: "Why?"},
			Creator:   user.Summary{ID: creator},
		}, nil)
		require.NoError(t, err)
	}
	_, err := rooms.CreateRoom(ctx, room.Room{
		Title:        "Room 1",
		AccessCode:   "ABC123",
		Owner:        user.Summary{ID: "alice"},
		Participants: []user.Summary{{ID: "carol"}},
	})
	require.NoError(t, err)

	tests := []struct {
		name  string
		count func() (int, error)
		want  int
	}{
		{name: "all questions", count: func() (int, error) { return questions.CountQuestions(ctx, question.QueryFilter{}) }, want: 3},
		{name: "questions by creator", count: func() (int, error) {
			return questions.CountQuestions(ctx, question.QueryFilter{CreatorID: "alice"})
		}, want: 2},
		{name: "questions by search", count: func() (int, error) {
			return questions.CountQuestions(ctx, question.QueryFilter{Search: "how"})
		}, want: 0},
		{name: "rooms joined", count: func() (int, error) { return rooms.CountRooms(ctx, room.QueryFilter{MemberID: "carol"}) }, want: 1},
		{name: "rooms of others", count: func() (int, error) { return rooms.CountRooms(ctx, room.QueryFilter{MemberID: "bob"}) }, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := tt.count()
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}
