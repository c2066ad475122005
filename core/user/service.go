package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/sistira/core"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("user")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	Repository interface {
		// CheckUsernameUniqueness returns ErrUsernameExists or ErrEmailExists when another User,
		// not listed in excludedIDs, already uses username or email.
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedIDs ...string) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		// SetLastLogin writes only the LastLogin of the User identified by id.
		SetLastLogin(ctx context.Context, id string, at time.Time) error
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	ids := make([]string, 0, len(exclUsers))
	for _, u := range exclUsers {
		ids = append(ids, u.ID)
	}
	return uniquenessError(svc.repo.CheckUsernameUniqueness(ctx, uname, email, ids...))
}

// uniquenessError maps repository uniqueness errors to field validation errors.
func uniquenessError(err error) error {
	if err == nil {
		return nil
	}
	var field string
	switch errors.Cause(err) {
	case ErrUsernameExists:
		field = "username"
	case ErrEmailExists:
		field = "email"
	default:
		return err
	}
	return core.NewValidationError(errors.Cause(err), core.FieldError{Field: field, Error: errors.Cause(err).Error()})
}

// Create creates a new User. Only admins may create other admins; actor is nil for self-registration.
func (svc *Service) Create(ctx context.Context, actor *User, nu NewUser) (User, error) {
	if nu.IsAdmin && (actor == nil || !actor.IsAdmin) {
		return User{}, core.ErrPermissionDenied
	}
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsAdmin:   nu.IsAdmin,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, uniquenessError(err)
	}
	return usr, nil
}

// Query lists Users visible to actor: admins see every User, others only themselves.
func (svc *Service) Query(ctx context.Context, actor User, filter QueryFilter, orderings []core.DBOrdering) ([]User, error) {
	if !actor.IsAdmin {
		filter.ID = actor.ID
	}
	return svc.repo.QueryUsers(ctx, filter, core.CleanOrderings(orderings, OrderingFields...)...)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

// Retrieve returns the User with id if actor is that User or an admin.
func (svc *Service) Retrieve(ctx context.Context, actor User, id string) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if usr.ID != actor.ID && !actor.IsAdmin {
		return User{}, core.ErrPermissionDenied
	}
	return usr, nil
}

// CanManage reports whether actor may update or delete usr.
func CanManage(actor, usr User) bool {
	return actor.ID == usr.ID || actor.IsAdmin
}

// Update modifies usr with uu, which must have been validated against usr.
func (svc *Service) Update(ctx context.Context, actor, usr User, uu UpdateUser) (User, error) {
	if !CanManage(actor, usr) {
		return User{}, core.ErrPermissionDenied
	}
	// `IsActive` and `IsAdmin` can only be changed by admins
	if !actor.IsAdmin && (uu.IsActive != nil || uu.IsAdmin != nil) {
		return User{}, core.ErrPermissionDenied
	}

	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.IsAdmin != nil {
		usr.IsAdmin = *uu.IsAdmin
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()

	usr, err := svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, uniquenessError(err)
	}
	return usr, nil
}

func (svc *Service) Delete(ctx context.Context, actor, usr User) error {
	if !CanManage(actor, usr) {
		return core.ErrPermissionDenied
	}
	return svc.repo.DeleteUsersByID(ctx, usr.ID)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := time.Now().UTC()
	if err := svc.repo.SetLastLogin(ctx, usr.ID, now); err != nil {
		return User{}, err
	}
	usr.LastLogin = &now
	return usr, nil
}

// SetPassword replaces the password of usr without going through the password policy.
func (svc *Service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// Summaries resolves ids to User summaries, failing with a field error on unknown ids.
func (svc *Service) Summaries(ctx context.Context, field string, ids []string) ([]Summary, error) {
	summaries := make([]Summary, 0, len(ids))
	for _, id := range core.UniqueStrings(ids) {
		usr, err := svc.GetByID(ctx, id)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				return nil, core.NewFieldError(field, "user \""+id+"\" not found")
			}
			return nil, errors.Wrap(err, "finding user by ID")
		}
		summaries = append(summaries, usr.Summary())
	}
	return summaries, nil
}
