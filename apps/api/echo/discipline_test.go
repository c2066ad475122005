package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sistira/core/discipline"
)

func Test_disciplineApi_scenario(t *testing.T) {
	env := setup(t)
	adminToken := env.getToken(t, env.createUser(t, "Admin", "admin@test.cd", true))
	token := env.getToken(t, env.createUser(t, "Alice", "alice@test.cd", false))

	var humanities, sciences discipline.StudyArea
	rec := env.do(t, http.MethodPost, "/api/study-areas", token, map[string]string{"name": " Humanities "}, &humanities)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Humanities", humanities.Name)
	rec = env.do(t, http.MethodPost, "/api/study-areas", token, map[string]string{"name": "Sciences"}, &sciences)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var geography discipline.Discipline
	rec = env.do(t, http.MethodPost, "/api/disciplines", token, map[string]string{
		"name":       "Geography",
		"study_area": humanities.ID,
	}, &geography)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Geography", geography.Name)
	assert.Equal(t, humanities, geography.StudyArea)

	env.run(t, []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: "/api/study-areas", body: []byte(`{"name": "Arts"}`),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated),
		},
		{
			name: "duplicate study area", method: http.MethodPost, path: "/api/study-areas", token: token,
			body:     []byte(`{"name": "HUMANITIES"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"name": discipline.ErrStudyAreaExists.Error()}),
		},
		{
			name: "blank study area name", method: http.MethodPost, path: "/api/study-areas", token: token,
			body:     []byte(`{"name": "   "}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"name": "this field is required"}),
		},
		{
			name: "duplicate discipline in the same study area", method: http.MethodPost, path: "/api/disciplines", token: token,
			body:     marchallObj(t, map[string]string{"name": "geography", "study_area": humanities.ID}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"name": discipline.ErrDisciplineExists.Error()}),
		},
		{
			name: "duplicate discipline with an inline study area", method: http.MethodPost, path: "/api/disciplines", token: token,
			body:     []byte(`{"name": "Geography", "study_area": {"name": "humanities"}}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"name": discipline.ErrDisciplineExists.Error()}),
		},
		{
			name: "missing study area", method: http.MethodPost, path: "/api/disciplines", token: token,
			body:     []byte(`{"name": "History"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"study_area": "this field is required"}),
		},
		{
			name: "unknown study area", method: http.MethodPost, path: "/api/disciplines", token: token,
			body:     []byte(`{"name": "History", "study_area": "3f1c6a52-0000-4000-8000-000000000000"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"study_area": "study area not found"}),
		},
		{
			name: "unknown discipline", path: "/api/disciplines/3f1c6a52-0000-4000-8000-000000000000", token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "discipline not found"}),
		},
		{
			name: "users cannot update reference data", method: http.MethodPut, path: "/api/disciplines/" + geography.ID, token: token,
			body: []byte(`{"name": "Geo"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "users cannot delete reference data", method: http.MethodDelete, path: "/api/study-areas/" + humanities.ID, token: token,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
	})

	t.Run("same name in another study area", func(t *testing.T) {
		var d discipline.Discipline
		rec := env.do(t, http.MethodPost, "/api/disciplines", token, map[string]string{
			"name":       "Geography",
			"study_area": sciences.ID,
		}, &d)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.NotEqual(t, geography.ID, d.ID)
		assert.Equal(t, sciences.ID, d.StudyArea.ID)
	})

	t.Run("inline study areas are resolved by name", func(t *testing.T) {
		var history, algebra discipline.Discipline
		rec := env.do(t, http.MethodPost, "/api/disciplines", token, map[string]interface{}{
			"name":       "History",
			"study_area": map[string]string{"name": "HUMANITIES"},
		}, &history)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, humanities.ID, history.StudyArea.ID)

		rec = env.do(t, http.MethodPost, "/api/disciplines", token, map[string]interface{}{
			"name":       "Algebra",
			"study_area": map[string]string{"name": "Mathematics", "description": "Numbers"},
		}, &algebra)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, "Mathematics", algebra.StudyArea.Name)
		assert.NotEmpty(t, algebra.StudyArea.ID)

		var areas []discipline.StudyArea
		env.do(t, http.MethodGet, "/api/study-areas", token, nil, &areas)
		names := make([]string, 0, len(areas))
		for _, sa := range areas {
			names = append(names, sa.Name)
		}
		assert.Equal(t, []string{"Humanities", "Mathematics", "Sciences"}, names)
	})

	t.Run("filter by study area", func(t *testing.T) {
		var ds []discipline.Discipline
		rec := env.do(t, http.MethodGet, "/api/disciplines?study_area="+humanities.ID, token, nil, &ds)
		require.Equal(t, http.StatusOK, rec.Code)
		names := make([]string, 0, len(ds))
		for _, d := range ds {
			names = append(names, d.Name)
		}
		assert.Equal(t, []string{"Geography", "History"}, names)
	})

	t.Run("admins manage reference data", func(t *testing.T) {
		var d discipline.Discipline
		rec := env.do(t, http.MethodPut, "/api/disciplines/"+geography.ID, adminToken, map[string]interface{}{
			"description": "Maps",
			"study_area":  sciences.ID,
		}, &d)
		require.Equal(t, http.StatusBadRequest, rec.Code, "Geography already exists in Sciences")

		rec = env.do(t, http.MethodPut, "/api/disciplines/"+geography.ID, adminToken, map[string]interface{}{
			"name":        "Human Geography",
			"description": "Maps",
		}, &d)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Human Geography", d.Name)
		assert.Equal(t, "Maps", d.Description)
		assert.Equal(t, humanities.ID, d.StudyArea.ID)

		var sa discipline.StudyArea
		rec = env.do(t, http.MethodPut, "/api/study-areas/"+humanities.ID, adminToken, map[string]string{"description": "People"}, &sa)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Humanities", sa.Name)
		assert.Equal(t, "People", sa.Description)

		// deleting a study area deletes its disciplines
		rec = env.do(t, http.MethodDelete, "/api/study-areas/"+humanities.ID, adminToken, nil, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
		rec = env.do(t, http.MethodGet, "/api/disciplines/"+geography.ID, token, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = env.do(t, http.MethodGet, "/api/study-areas/"+humanities.ID, token, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
