package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/sistira/core/stats"
)

func Test_statsApi_counts(t *testing.T) {
	env := setup(t)
	alice := env.createUser(t, "Alice", "alice@test.cd", false)
	bob := env.createUser(t, "Bob", "bob@test.cd", false)
	token := env.getToken(t, alice)
	bobToken := env.getToken(t, bob)
	adminToken := env.getToken(t, env.createUser(t, "Admin", "admin@test.cd", true))

	q := env.createQuestion(t, token, "1 + 1?")
	env.createQuestion(t, token, "2 + 2?")
	env.createQuestion(t, bobToken, "3 + 3?")
	env.createBank(t, token, "Sums", q)
	e := env.createExam(t, token, "Midterm")
	rec := env.do(t, http.MethodPost, "/api/rooms", token, map[string]interface{}{
		"title":        "Room 1",
		"participants": []string{bob.ID},
		"exams":        []string{e.ID},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	env.run(t, []httpTest{
		{name: "Auth required", path: "/api/stats/counts", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated)},
		{
			name: "owner", path: "/api/stats/counts", token: token, wantCode: http.StatusOK,
			wantData: marchallObj(t, stats.Counts{Questions: 2, QuestionBanks: 1, Exams: 1, Rooms: 1}),
		},
		{
			name: "participant", path: "/api/stats/counts", token: bobToken, wantCode: http.StatusOK,
			wantData: marchallObj(t, stats.Counts{Questions: 1, Rooms: 1}),
		},
		{
			name: "admin", path: "/api/stats/counts", token: adminToken, wantCode: http.StatusOK,
			wantData: marchallObj(t, stats.Counts{Questions: 3, QuestionBanks: 1, Exams: 1, Rooms: 1}),
		},
	})
}
