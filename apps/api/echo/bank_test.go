package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sistira/core/bank"
	"github.com/trezcool/sistira/core/question"
	"github.com/trezcool/sistira/core/user"
)

// createQuestion creates a subjective question in the disciplines of the Mathematics study area.
func (env *testEnv) createQuestion(t *testing.T, token, text string, disciplines ...string) question.Question {
	t.Helper()
	refs := make([]interface{}, 0, len(disciplines))
	for _, name := range disciplines {
		refs = append(refs, map[string]interface{}{"name": name, "study_area": map[string]string{"name": "Mathematics"}})
	}
	var q question.Question
	rec := env.do(t, http.MethodPost, "/api/questions", token, map[string]interface{}{
		"type":        "SUB",
		"text":        text,
		"disciplines": refs,
	}, &q)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return q
}

func summaries(usrs ...user.User) []user.Summary {
	s := make([]user.Summary, 0, len(usrs))
	for _, u := range usrs {
		s = append(s, u.Summary())
	}
	return s
}

func Test_bankApi_create(t *testing.T) {
	env := setup(t)
	alice := env.createUser(t, "Alice", "alice@test.cd", false)
	bob := env.createUser(t, "Bob", "bob@test.cd", false)
	token := env.getToken(t, alice)
	adminToken := env.getToken(t, env.createUser(t, "Admin", "admin@test.cd", true))

	q1 := env.createQuestion(t, token, "1 + 1?", "Algebra")
	q2 := env.createQuestion(t, token, "Area of a circle?", "Algebra", "Geometry")
	q3 := env.createQuestion(t, token, "d/dx x²?", "Calculus")

	var b bank.QuestionBank
	rec := env.do(t, http.MethodPost, "/api/question-banks", token, map[string]interface{}{
		"name":          " Algebra I ",
		"description":   "First term",
		"collaborators": []string{bob.ID, alice.ID, bob.ID},
		"questions":     []string{q1.ID, q2.ID, q3.ID},
		"disciplines":   []string{q1.Disciplines[0].ID},
	}, &b)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, "Algebra I", b.Name)
	assert.Equal(t, alice.Summary(), b.Owner)
	assert.Equal(t, summaries(bob), b.Collaborators)
	assert.Equal(t, []question.Summary{q1.Summary(), q2.Summary(), q3.Summary()}, b.Questions)
	require.Len(t, b.Disciplines, 1)
	assert.Equal(t, "Algebra", b.Disciplines[0].Name)
	assert.Equal(t, []string{"Algebra", "Calculus"}, b.PredominantDisciplines)

	t.Run("collaborators are invited", func(t *testing.T) {
		msgs := env.mailSvc.SentMessages()
		require.Len(t, msgs, 1)
		require.Len(t, msgs[0].To, 1)
		assert.Equal(t, bob.Email, msgs[0].To[0].Address)
		assert.Equal(t, "You have been added to the question bank Algebra I", msgs[0].Subject)
		assert.Contains(t, msgs[0].TextContent, "Alice added you as a collaborator")
		assert.Contains(t, msgs[0].TextContent, env.conf.FrontendBaseURL+"/question-banks/"+b.ID)
	})

	env.run(t, []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: "/api/question-banks", body: []byte(`{"name": "Geometry"}`),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated),
		},
		{
			name: "required fields", method: http.MethodPost, path: "/api/question-banks", token: token, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"name": "this field is required"}),
		},
		{
			name: "duplicate name", method: http.MethodPost, path: "/api/question-banks", token: adminToken,
			body:     []byte(`{"name": "ALGEBRA I"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"name": bank.ErrNameExists.Error()}),
		},
		{
			name: "unknown collaborator", method: http.MethodPost, path: "/api/question-banks", token: token,
			body:     []byte(`{"name": "Geometry", "collaborators": ["3f1c6a52-0000-4000-8000-000000000000"]}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"collaborators": `user "3f1c6a52-0000-4000-8000-000000000000" not found`}),
		},
		{
			name: "unknown question", method: http.MethodPost, path: "/api/question-banks", token: token,
			body:     []byte(`{"name": "Geometry", "questions": ["3f1c6a52-0000-4000-8000-000000000000"]}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"questions": `question "3f1c6a52-0000-4000-8000-000000000000" not found`}),
		},
		{
			name: "rejected banks are not stored", path: "/api/question-banks", token: adminToken,
			wantCode: http.StatusOK, wantData: marchallList(t, b),
		},
	})

	t.Run("bank ids are listed on questions", func(t *testing.T) {
		var got question.Question
		env.do(t, http.MethodGet, "/api/questions/"+q2.ID, token, nil, &got)
		assert.Equal(t, []string{b.ID}, got.QuestionBanks)
	})
}

func Test_bankApi_detail(t *testing.T) {
	env := setup(t)
	alice := env.createUser(t, "Alice", "alice@test.cd", false)
	bob := env.createUser(t, "Bob", "bob@test.cd", false)
	carol := env.createUser(t, "Carol", "carol@test.cd", false)
	token := env.getToken(t, alice)
	bobToken := env.getToken(t, bob)
	carolToken := env.getToken(t, carol)

	var b bank.QuestionBank
	rec := env.do(t, http.MethodPost, "/api/question-banks", token, map[string]interface{}{
		"name":          "Algebra I",
		"collaborators": []string{bob.ID},
	}, &b)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	path := "/api/question-banks/" + b.ID

	env.run(t, []httpTest{
		{name: "Auth required", path: path, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated)},
		{name: "owner", path: path, token: token, wantCode: http.StatusOK, wantData: marchallObj(t, b)},
		{name: "collaborator", path: path, token: bobToken, wantCode: http.StatusOK, wantData: marchallObj(t, b)},
		{name: "other user", path: path, token: carolToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "unknown", path: "/api/question-banks/3f1c6a52-0000-4000-8000-000000000000", token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "question bank not found"}),
		},
		{name: "collaborators list shared banks", path: "/api/question-banks", token: bobToken, wantCode: http.StatusOK, wantData: marchallList(t, b)},
		{name: "others list nothing", path: "/api/question-banks", token: carolToken, wantCode: http.StatusOK, wantData: marchallList(t)},
		{name: "search", path: "/api/question-banks?search=algebra", token: token, wantCode: http.StatusOK, wantData: marchallList(t, b)},
		{
			name: "collaborators cannot change collaborators", method: http.MethodPut, path: path, token: bobToken,
			body:     marchallObj(t, map[string][]string{"collaborators": {bob.ID, carol.ID}}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "collaborators cannot delete", method: http.MethodDelete, path: path, token: bobToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "blank name", method: http.MethodPut, path: path, token: token, body: []byte(`{"name": " "}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"name": "this field cannot be blank"}),
		},
	})

	t.Run("collaborators edit content", func(t *testing.T) {
		q := env.createQuestion(t, bobToken, "1 + 1?", "Algebra")

		var updated bank.QuestionBank
		rec := env.do(t, http.MethodPut, path, bobToken, map[string]interface{}{
			"description":   "Shared",
			"collaborators": []string{bob.ID},
			"questions":     []string{q.ID},
		}, &updated)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Shared", updated.Description)
		assert.Equal(t, b.Name, updated.Name)
		assert.Equal(t, summaries(bob), updated.Collaborators)
		assert.Equal(t, []question.Summary{q.Summary()}, updated.Questions)
		assert.Equal(t, []string{"Algebra"}, updated.PredominantDisciplines)
	})

	t.Run("owner adds collaborators", func(t *testing.T) {
		env.mailSvc.Reset()

		var updated bank.QuestionBank
		rec := env.do(t, http.MethodPut, path, token, map[string]interface{}{
			"collaborators": []string{bob.ID, carol.ID},
		}, &updated)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, summaries(bob, carol), updated.Collaborators)

		// only the new collaborator is invited
		msgs := env.mailSvc.SentMessages()
		require.Len(t, msgs, 1)
		assert.Equal(t, carol.Email, msgs[0].To[0].Address)

		rec = env.do(t, http.MethodGet, path, carolToken, nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("renaming to a taken name", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/question-banks", carolToken, map[string]string{"name": "Geometry"}, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = env.do(t, http.MethodPut, path, token, map[string]string{"name": "geometry"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, string(marchallObj(t, map[string]string{"name": bank.ErrNameExists.Error()})), rec.Body.String())

		// a bank keeps its own name
		rec = env.do(t, http.MethodPut, path, token, map[string]string{"name": "ALGEBRA I"}, nil)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("owner deletes", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, path, token, nil, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
		rec = env.do(t, http.MethodGet, path, token, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
