package room

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/sistira/core"
	"github.com/trezcool/sistira/core/access"
	"github.com/trezcool/sistira/core/exam"
	"github.com/trezcool/sistira/core/user"
)

// maxCodeAttempts bounds the retries on access code collisions.
const maxCodeAttempts = 5

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("room")
	ErrAccessCodeExists = errors.New("a room with this access code already exists")
	ErrInvalidCode      = errors.New("invalid access code")
)

type (
	Repository interface {
		// CreateRoom stores r with its collaborators, participants and exams, atomically.
		// It fails with ErrAccessCodeExists when r.AccessCode is taken.
		CreateRoom(ctx context.Context, r Room) (Room, error)
		GetRoom(ctx context.Context, id string) (Room, error)
		GetRoomByAccessCode(ctx context.Context, code string) (Room, error)
		QueryRooms(ctx context.Context, filter QueryFilter) ([]Room, error)
		CountRooms(ctx context.Context, filter QueryFilter) (int, error)
		// UpdateRoom stores r, replacing its collaborators, participants and exams.
		UpdateRoom(ctx context.Context, r Room) (Room, error)
		DeleteRoom(ctx context.Context, id string) error
		// AddParticipant adds the User to the Room participants, if not already in.
		AddParticipant(ctx context.Context, id, userID string) (Room, error)
	}

	Service struct {
		repo    Repository
		userSvc *user.Service
		examSvc *exam.Service
		mailSvc core.EmailService
	}
)

func NewService(repo Repository, userSvc *user.Service, examSvc *exam.Service, mailSvc core.EmailService) *Service {
	return &Service{
		repo:    repo,
		userSvc: userSvc,
		examSvc: examSvc,
		mailSvc: mailSvc,
	}
}

func (svc *Service) members(ctx context.Context, field, ownerID string, ids []string) ([]user.Summary, error) {
	summaries, err := svc.userSvc.Summaries(ctx, field, ids)
	if err != nil {
		return nil, err
	}
	members := make([]user.Summary, 0, len(summaries))
	for _, s := range summaries {
		if s.ID != ownerID {
			members = append(members, s)
		}
	}
	return members, nil
}

// exams resolves ids into the summaries of Exams actor may read.
func (svc *Service) exams(ctx context.Context, actor user.User, ids []string) ([]exam.Summary, error) {
	exams := make([]exam.Summary, 0, len(ids))
	for _, id := range ids {
		e, err := svc.examSvc.Retrieve(ctx, actor, id)
		switch errors.Cause(err) {
		case nil:
			exams = append(exams, e.Summary())
		case exam.ErrNotFound:
			return nil, core.NewFieldError("exams", "exam \""+id+"\" not found")
		case core.ErrPermissionDenied:
			return nil, core.NewFieldError("exams", "exam \""+id+"\": permission denied")
		default:
			return nil, errors.Wrap(err, "finding exam by ID")
		}
	}
	return exams, nil
}

func (svc *Service) invite(actor user.User, r Room, role string, invitees []user.Summary) {
	access.Invitation{
		Inviter:  actor,
		Invitees: invitees,
		Role:     role,
		Kind:     "room",
		Title:    r.Title,
		Path:     "rooms/" + r.ID,
	}.Send(svc.mailSvc)
}

func (svc *Service) Create(ctx context.Context, actor user.User, nr NewRoom) (Room, error) {
	collabs, err := svc.members(ctx, "collaborators", actor.ID, nr.Collaborators)
	if err != nil {
		return Room{}, err
	}
	participants, err := svc.members(ctx, "participants", actor.ID, nr.Participants)
	if err != nil {
		return Room{}, err
	}
	exams, err := svc.exams(ctx, actor, nr.Exams)
	if err != nil {
		return Room{}, err
	}

	now := time.Now().UTC()
	r := Room{
		Title:         nr.Title,
		Description:   nr.Description,
		Owner:         actor.Summary(),
		Collaborators: collabs,
		Participants:  participants,
		Exams:         exams,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for attempt := 0; ; attempt++ {
		if r.AccessCode, err = NewAccessCode(); err != nil {
			return Room{}, errors.Wrap(err, "generating access code")
		}
		created, err := svc.repo.CreateRoom(ctx, r)
		if err == nil {
			r = created
			break
		}
		if errors.Cause(err) != ErrAccessCodeExists || attempt+1 >= maxCodeAttempts {
			return Room{}, errors.Wrap(err, "creating room")
		}
	}

	svc.invite(actor, r, "collaborator", r.Collaborators)
	svc.invite(actor, r, "participant", r.Participants)
	return r, nil
}

// Retrieve returns the Room with id if actor may read it.
func (svc *Service) Retrieve(ctx context.Context, actor user.User, id string) (Room, error) {
	r, err := svc.repo.GetRoom(ctx, id)
	if err != nil {
		return Room{}, err
	}
	if !access.CanRead(actor, r.Owner.ID, r.Collaborators, r.Participants) {
		return Room{}, core.ErrPermissionDenied
	}
	return r, nil
}

// Query lists Rooms: admins see every Room, others the ones they own, collaborate on or joined.
func (svc *Service) Query(ctx context.Context, actor user.User, filter QueryFilter) ([]Room, error) {
	filter.Search = core.CleanString(filter.Search)
	if !actor.IsAdmin {
		filter.MemberID = actor.ID
	}
	return svc.repo.QueryRooms(ctx, filter)
}

func (svc *Service) Count(ctx context.Context, actor user.User, filter QueryFilter) (int, error) {
	filter.Search = core.CleanString(filter.Search)
	if !actor.IsAdmin {
		filter.MemberID = actor.ID
	}
	return svc.repo.CountRooms(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, actor user.User, r Room, ur UpdateRoom) (Room, error) {
	if !access.CanWrite(actor, r.Owner.ID, r.Collaborators) {
		return Room{}, core.ErrPermissionDenied
	}

	prevCollabs, prevParticipants := r.Collaborators, r.Participants
	if ur.Collaborators != nil && !access.SameMembers(*ur.Collaborators, r.Collaborators) {
		if !access.CanDelete(actor, r.Owner.ID) {
			return Room{}, core.ErrPermissionDenied
		}
		collabs, err := svc.members(ctx, "collaborators", r.Owner.ID, *ur.Collaborators)
		if err != nil {
			return Room{}, err
		}
		r.Collaborators = collabs
	}
	if ur.Participants != nil {
		participants, err := svc.members(ctx, "participants", r.Owner.ID, *ur.Participants)
		if err != nil {
			return Room{}, err
		}
		r.Participants = participants
	}
	if ur.Exams != nil {
		exams, err := svc.exams(ctx, actor, *ur.Exams)
		if err != nil {
			return Room{}, err
		}
		r.Exams = exams
	}
	if ur.Title != nil {
		r.Title = *ur.Title
	}
	if ur.Description != nil {
		r.Description = *ur.Description
	}
	r.UpdatedAt = time.Now().UTC()

	r, err := svc.repo.UpdateRoom(ctx, r)
	if err != nil {
		return Room{}, errors.Wrap(err, "updating room")
	}
	svc.invite(actor, r, "collaborator", access.NewMembers(r.Collaborators, prevCollabs))
	svc.invite(actor, r, "participant", access.NewMembers(r.Participants, prevParticipants))
	return r, nil
}

func (svc *Service) Delete(ctx context.Context, actor user.User, r Room) error {
	if !access.CanDelete(actor, r.Owner.ID) {
		return core.ErrPermissionDenied
	}
	return svc.repo.DeleteRoom(ctx, r.ID)
}

// Join adds actor to the participants of the Room with the access code.
func (svc *Service) Join(ctx context.Context, actor user.User, jr JoinRoom) (Room, error) {
	r, err := svc.repo.GetRoomByAccessCode(ctx, strings.ToUpper(jr.AccessCode))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Room{}, core.NewFieldError("access_code", ErrInvalidCode.Error())
		}
		return Room{}, errors.Wrap(err, "finding room by access code")
	}
	if actor.ID == r.Owner.ID || access.IsMember(actor.ID, r.Collaborators) || access.IsMember(actor.ID, r.Participants) {
		return r, nil
	}
	r, err = svc.repo.AddParticipant(ctx, r.ID, actor.ID)
	return r, errors.Wrap(err, "adding participant")
}
