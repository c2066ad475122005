// Package inmemdb implements the repositories in memory, for development and tests.
package inmemdb

import (
	"strings"
	"sync"
	"time"

	"github.com/trezcool/sistira/core/auth"
	"github.com/trezcool/sistira/core/discipline"
	"github.com/trezcool/sistira/core/question"
	"github.com/trezcool/sistira/core/user"
)

type (
	// DB holds every table behind a single lock, so multi-table writes are atomic.
	DB struct {
		mutex sync.RWMutex

		users        map[string]*user.User
		tokens       map[string]auth.Token // {key: token}
		studyAreas   map[string]*discipline.StudyArea
		disciplines  map[string]*disciplineRecord
		questions    map[string]*questionRecord
		alternatives map[string]*question.Alternative
		banks        map[string]*bankRecord
		exams        map[string]*examRecord
		rooms        map[string]*roomRecord
	}

	disciplineRecord struct {
		ID          string
		Name        string
		Description string
		StudyAreaID string
		CreatedAt   time.Time
	}

	questionRecord struct {
		question.Question
		CreatorID     string
		DisciplineIDs []string
	}

	bankRecord struct {
		ID            string
		Name          string
		Description   string
		OwnerID       string
		CollabIDs     []string
		DisciplineIDs []string
		QuestionIDs   []string
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	examRecord struct {
		ID          string
		Title       string
		Description string
		Duration    int
		BankID      string
		OwnerID     string
		CollabIDs   []string
		QuestionIDs []string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	roomRecord struct {
		ID             string
		Title          string
		Description    string
		AccessCode     string
		OwnerID        string
		CollabIDs      []string
		ParticipantIDs []string
		ExamIDs        []string
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}
)

func Open() *DB {
	return &DB{
		users:        make(map[string]*user.User),
		tokens:       make(map[string]auth.Token),
		studyAreas:   make(map[string]*discipline.StudyArea),
		disciplines:  make(map[string]*disciplineRecord),
		questions:    make(map[string]*questionRecord),
		alternatives: make(map[string]*question.Alternative),
		banks:        make(map[string]*bankRecord),
		exams:        make(map[string]*examRecord),
		rooms:        make(map[string]*roomRecord),
	}
}

func now() time.Time {
	return time.Now().UTC()
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func contains(ids []string, id string) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}

// appendMissing appends the ids not yet in dst.
func appendMissing(dst []string, ids ...string) []string {
	for _, id := range ids {
		if !contains(dst, id) {
			dst = append(dst, id)
		}
	}
	return dst
}

func remove(ids []string, id string) []string {
	out := ids[:0:0]
	for _, i := range ids {
		if i != id {
			out = append(out, i)
		}
	}
	return out
}

func copyIDs(ids []string) []string {
	return append([]string{}, ids...)
}

// userSummaries resolves ids into summaries, skipping deleted users.
func (db *DB) userSummaries(ids []string) []user.Summary {
	summaries := make([]user.Summary, 0, len(ids))
	for _, id := range ids {
		if usr, ok := db.users[id]; ok {
			summaries = append(summaries, usr.Summary())
		}
	}
	return summaries
}

func summaryIDs(summaries []user.Summary) []string {
	ids := make([]string, 0, len(summaries))
	for _, s := range summaries {
		ids = append(ids, s.ID)
	}
	return ids
}

func (db *DB) questionSummaries(ids []string) []question.Summary {
	qs := make([]question.Summary, 0, len(ids))
	for _, id := range ids {
		if rec, ok := db.questions[id]; ok {
			qs = append(qs, question.Summary{ID: rec.ID, Type: rec.Type, Text: rec.Statement.Text})
		}
	}
	return qs
}

// deleteUser removes the user with what they own and their memberships.
func (db *DB) deleteUser(id string) {
	delete(db.users, id)
	for key, tkn := range db.tokens {
		if tkn.UserID == id {
			delete(db.tokens, key)
		}
	}
	for qid, rec := range db.questions {
		if rec.CreatorID == id {
			db.deleteQuestion(qid)
		}
	}
	for bid, b := range db.banks {
		if b.OwnerID == id {
			db.deleteBank(bid)
			continue
		}
		b.CollabIDs = remove(b.CollabIDs, id)
	}
	for eid, e := range db.exams {
		if e.OwnerID == id {
			db.deleteExam(eid)
			continue
		}
		e.CollabIDs = remove(e.CollabIDs, id)
	}
	for rid, r := range db.rooms {
		if r.OwnerID == id {
			delete(db.rooms, rid)
			continue
		}
		r.CollabIDs = remove(r.CollabIDs, id)
		r.ParticipantIDs = remove(r.ParticipantIDs, id)
	}
}

func (db *DB) deleteDiscipline(id string) {
	delete(db.disciplines, id)
	for _, q := range db.questions {
		q.DisciplineIDs = remove(q.DisciplineIDs, id)
	}
	for _, b := range db.banks {
		b.DisciplineIDs = remove(b.DisciplineIDs, id)
	}
}

func (db *DB) deleteQuestion(id string) {
	delete(db.questions, id)
	for aid, alt := range db.alternatives {
		if alt.QuestionID == id {
			delete(db.alternatives, aid)
		}
	}
	for _, b := range db.banks {
		b.QuestionIDs = remove(b.QuestionIDs, id)
	}
	for _, e := range db.exams {
		e.QuestionIDs = remove(e.QuestionIDs, id)
	}
}

func (db *DB) deleteBank(id string) {
	delete(db.banks, id)
	for _, e := range db.exams {
		if e.BankID == id {
			e.BankID = ""
		}
	}
}

func (db *DB) deleteExam(id string) {
	delete(db.exams, id)
	for _, r := range db.rooms {
		r.ExamIDs = remove(r.ExamIDs, id)
	}
}
