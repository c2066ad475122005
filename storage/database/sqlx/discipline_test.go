package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sistira/core/discipline"
	sqlxrepos "github.com/trezcool/sistira/storage/database/sqlx"
	testutil "github.com/trezcool/sistira/tests"
)

func TestDisciplineRepository(t *testing.T) {
	ctx := context.Background()
	repo := sqlxrepos.NewDisciplineRepository(testutil.PrepareDB(t))
	now := time.Now().UTC()

	humanities, err := repo.CreateStudyArea(ctx, discipline.StudyArea{Name: "Humanities", CreatedAt: now})
	require.NoError(t, err)
	_, err = repo.CreateStudyArea(ctx, discipline.StudyArea{Name: "HUMANITIES", CreatedAt: now})
	assert.Equal(t, discipline.ErrStudyAreaExists, err)

	t.Run("create in an existing area", func(t *testing.T) {
		d, err := repo.CreateDiscipline(ctx, discipline.Discipline{Name: "History", CreatedAt: now}, discipline.StudyAreaRef{ID: humanities.ID})
		require.NoError(t, err)
		assert.Equal(t, "History", d.Name)
		assert.Equal(t, humanities.ID, d.StudyArea.ID)

		_, err = repo.CreateDiscipline(ctx, discipline.Discipline{Name: "history", CreatedAt: now}, discipline.StudyAreaRef{ID: humanities.ID})
		assert.Equal(t, discipline.ErrDisciplineExists, err)

		_, err = repo.CreateDiscipline(ctx, discipline.Discipline{Name: "Geography", CreatedAt: now}, discipline.StudyAreaRef{ID: "lol"})
		assert.Equal(t, discipline.ErrStudyAreaNotFound, err)
	})

	t.Run("create in an inline area", func(t *testing.T) {
		d, err := repo.CreateDiscipline(ctx, discipline.Discipline{Name: "Algebra", CreatedAt: now}, discipline.StudyAreaRef{Name: "Mathematics"})
		require.NoError(t, err)
		assert.Equal(t, "Mathematics", d.StudyArea.Name)

		// inline areas resolve by name
		d2, err := repo.CreateDiscipline(ctx, discipline.Discipline{Name: "Calculus", CreatedAt: now}, discipline.StudyAreaRef{Name: "mathematics"})
		require.NoError(t, err)
		assert.Equal(t, d.StudyArea.ID, d2.StudyArea.ID)

		areas, err := repo.QueryStudyAreas(ctx, "")
		require.NoError(t, err)
		require.Len(t, areas, 2)
		assert.Equal(t, "Humanities", areas[0].Name)
		assert.Equal(t, "Mathematics", areas[1].Name)
	})

	t.Run("query", func(t *testing.T) {
		all, err := repo.QueryDisciplines(ctx, discipline.QueryFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "Algebra", all[0].Name)

		inArea, err := repo.QueryDisciplines(ctx, discipline.QueryFilter{StudyArea: humanities.ID})
		require.NoError(t, err)
		require.Len(t, inArea, 1)
		assert.Equal(t, "History", inArea[0].Name)

		found, err := repo.QueryDisciplines(ctx, discipline.QueryFilter{Search: "CALC"})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "Calculus", found[0].Name)
	})

	t.Run("move to another area", func(t *testing.T) {
		found, err := repo.QueryDisciplines(ctx, discipline.QueryFilter{Search: "History"})
		require.NoError(t, err)
		require.Len(t, found, 1)

		d := found[0]
		d.Description = "The past"
		moved, err := repo.UpdateDiscipline(ctx, d, &discipline.StudyAreaRef{Name: "Social Sciences"})
		require.NoError(t, err)
		assert.Equal(t, "Social Sciences", moved.StudyArea.Name)
		assert.Equal(t, "The past", moved.Description)
	})

	t.Run("deleting an area deletes its disciplines", func(t *testing.T) {
		d, err := repo.CreateDiscipline(ctx, discipline.Discipline{Name: "Philosophy", CreatedAt: now}, discipline.StudyAreaRef{ID: humanities.ID})
		require.NoError(t, err)

		require.NoError(t, repo.DeleteStudyArea(ctx, humanities.ID))
		_, err = repo.GetDiscipline(ctx, d.ID)
		assert.Equal(t, discipline.ErrNotFound, err)
		assert.Equal(t, discipline.ErrStudyAreaNotFound, repo.DeleteStudyArea(ctx, humanities.ID))
	})
}
