package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sistira/core/question"
	"github.com/trezcool/sistira/core/user"
	sqlxrepos "github.com/trezcool/sistira/storage/database/sqlx"
	testutil "github.com/trezcool/sistira/tests"
)

func TestQuestionRepository_alternatives(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	usr := testutil.CreateUser(t, sqlxrepos.NewUserRepository(db), "Alice", "", "alice@test.cd", testPassword, false, true)
	repo := sqlxrepos.NewQuestionRepository(db)
	now := time.Now().UTC()

	q, err := repo.CreateQuestion(ctx, question.Question{
		Type:         question.Objective,
		Statement:    question.Statement{Text: "2 + 2?"},
		Alternatives: []question.Alternative{{Content: "3", Position: 0}, {Content: "4", Correct: true, Position: 1}},
		Creator:      usr.Summary(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil)
	require.NoError(t, err)
	require.Len(t, q.Alternatives, 2)

	t.Run("appended after the last position", func(t *testing.T) {
		require.NoError(t, repo.DeleteAlternative(ctx, q.Alternatives[0].ID))

		alt, err := repo.CreateAlternative(ctx, question.Alternative{QuestionID: q.ID, Content: "5"})
		require.NoError(t, err)
		assert.Equal(t, 2, alt.Position)
	})

	t.Run("unknown question", func(t *testing.T) {
		_, err := repo.CreateAlternative(ctx, question.Alternative{QuestionID: "3f1c6a52-0000-4000-8000-000000000000", Content: "5"})
		assert.Equal(t, question.ErrNotFound, err)
	})

	t.Run("question turned subjective", func(t *testing.T) {
		q.Type = question.Subjective
		q.Alternatives = nil
		q.UpdatedAt = time.Now().UTC()
		_, err := repo.UpdateQuestion(ctx, q, nil, true)
		require.NoError(t, err)

		_, err = repo.CreateAlternative(ctx, question.Alternative{QuestionID: q.ID, Content: "4", Correct: true})
		assert.Equal(t, question.ErrNotObjective, err)

		alts, err := repo.QueryAlternatives(ctx, question.AlternativeFilter{Question: q.ID})
		require.NoError(t, err)
		assert.Empty(t, alts)
	})
}

func TestQuestionRepository_CountQuestions(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	users := sqlxrepos.NewUserRepository(db)
	alice := testutil.CreateUser(t, users, "Alice", "", "alice@test.cd", testPassword, false, true)
	bob := testutil.CreateUser(t, users, "Bob", "", "bob@test.cd", testPassword, false, true)
	repo := sqlxrepos.NewQuestionRepository(db)

	for _, tt := range []struct {
		creator user.User
		text    string
	}{{alice, "Why the sky is blue?"}, {alice, "Why water is wet?"}, {bob, "How old is the earth?"}} {
		now := time.Now().UTC()
		_, err := repo.CreateQuestion(ctx, question.Question{
			Type:      question.Subjective,
			Statement: question.Statement{Text: tt.text},
			Creator:   tt.creator.Summary(),
			CreatedAt: now,
			UpdatedAt: now,
		}, nil)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter question.QueryFilter
		want   int
	}{
		{name: "all", want: 3},
		{name: "by creator", filter: question.QueryFilter{CreatorID: alice.ID}, want: 2},
		{name: "by creator and search", filter: question.QueryFilter{CreatorID: alice.ID, Search: "WATER"}, want: 1},
		{name: "by type", filter: question.QueryFilter{Type: string(question.Objective)}, want: 0},
		{name: "invalid creator", filter: question.QueryFilter{CreatorID: "lol"}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := repo.CountQuestions(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)

			qs, err := repo.QueryQuestions(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, qs, n)
		})
	}
}
