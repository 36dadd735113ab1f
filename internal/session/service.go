package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rp-jtw/storefront/internal/apperr"
	"github.com/rp-jtw/storefront/internal/backend"
	"github.com/rp-jtw/storefront/internal/logging"
	"github.com/rp-jtw/storefront/internal/store"
)

var (
	// ErrNoToken is returned by operations that need a verified session.
	ErrNoToken = apperr.ErrNoToken
	// ErrOTPNotRequested is returned when a code is submitted before requesting one.
	ErrOTPNotRequested = apperr.Invalid("otp", "Request an OTP before verifying.")
)

// Backend is the subset of the remote API the session flow uses.
type Backend interface {
	RequestOTP(ctx context.Context, isdCode, phone string) error
	VerifyOTP(ctx context.Context, isdCode, phone, otp string) (backend.VerifyResult, error)
	Profile(ctx context.Context, token string) (backend.Profile, error)
	UpdateProfile(ctx context.Context, token string, update backend.ProfileUpdate) (backend.Profile, error)
}

// LogoutHook runs after a session is cleared, e.g. to drop its cart mirror.
type LogoutHook func(ctx context.Context, sessionID string) error

// Service drives the sign-in and approval state machine.
type Service struct {
	backend  Backend
	store    store.Store
	ttl      time.Duration
	logger   *slog.Logger
	onLogout []LogoutHook
	order    *ordering
	now      func() time.Time
}

// NewService builds a session service. ttl bounds how long idle sessions are kept.
func NewService(b Backend, s store.Store, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{
		backend: b,
		store:   s,
		ttl:     ttl,
		logger:  logging.Component(logger, "session"),
		order:   newOrdering(),
		now:     time.Now,
	}
}

// OnLogout registers a hook run after Logout clears the session.
func (s *Service) OnLogout(hook LogoutHook) {
	s.onLogout = append(s.onLogout, hook)
}

func sessionKey(id string) string { return "session:" + id }

// Current returns the stored session, or a fresh anonymous one.
func (s *Service) Current(ctx context.Context, id string) (Session, error) {
	var sess Session
	err := store.GetJSON(ctx, s.store, sessionKey(id), &sess)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return Session{ID: id}, nil
	case err != nil:
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	sess.ID = id
	return sess, nil
}

// AccessToken returns the backend token held by the session.
func (s *Service) AccessToken(ctx context.Context, id string) (string, error) {
	sess, err := s.Current(ctx, id)
	if err != nil {
		return "", err
	}
	if !sess.Authenticated() {
		return "", ErrNoToken
	}
	return sess.AccessToken, nil
}

func (s *Service) save(ctx context.Context, sess Session) error {
	sess.UpdatedAt = s.now().UTC()
	if err := store.SetJSON(ctx, s.store, sessionKey(sess.ID), sess, s.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// RequestOTP validates the number and asks the backend to send a code. A
// new OTP cycle drops any token the session held.
func (s *Service) RequestOTP(ctx context.Context, id, isdCode, phone string) (Session, error) {
	phone, err := ValidatePhone(phone)
	if err != nil {
		return Session{}, err
	}
	isdCode, err = ValidateISDCode(isdCode)
	if err != nil {
		return Session{}, err
	}

	if err := s.backend.RequestOTP(ctx, isdCode, phone); err != nil {
		return Session{}, err
	}

	sess := Session{ID: id, ISDCode: isdCode, PhoneNumber: phone, OTPRequested: true}
	if err := s.order.barrier(id, func() error { return s.save(ctx, sess) }); err != nil {
		return Session{}, err
	}
	s.logger.Info("otp requested", slog.String("session_id", id), slog.String("isd_code", isdCode))
	return sess, nil
}

// VerifyOTP exchanges the code for an access token. The returned status is
// trusted until the next profile refresh.
func (s *Service) VerifyOTP(ctx context.Context, id, code string) (Session, error) {
	sess, err := s.Current(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !sess.OTPRequested || sess.PhoneNumber == "" {
		return Session{}, ErrOTPNotRequested
	}
	code, err = ValidateOTP(code)
	if err != nil {
		return Session{}, err
	}

	res, err := s.backend.VerifyOTP(ctx, sess.ISDCode, sess.PhoneNumber, code)
	if err != nil {
		return Session{}, err
	}
	if res.AccessToken == "" {
		return Session{}, &apperr.RemoteError{Op: "verify OTP", Message: "backend did not issue an access token"}
	}
	status, err := ParseStatus(res.Status)
	if err != nil {
		return Session{}, &apperr.RemoteError{Op: "verify OTP", Message: err.Error()}
	}

	sess.AccessToken = res.AccessToken
	sess.Status = status
	sess.OTPRequested = false
	if err := s.order.barrier(id, func() error { return s.save(ctx, sess) }); err != nil {
		return Session{}, err
	}
	s.logger.Info("otp verified", slog.String("session_id", id), slog.String("status", status.String()))
	return sess, nil
}

// SubmitProfile sends the completed profile form. The status the backend
// returns (normally pending) replaces the session's.
func (s *Service) SubmitProfile(ctx context.Context, id string, form ProfileForm) (Session, backend.Profile, error) {
	sess, err := s.Current(ctx, id)
	if err != nil {
		return Session{}, backend.Profile{}, err
	}
	if !sess.Authenticated() {
		return Session{}, backend.Profile{}, ErrNoToken
	}
	update, err := form.Validate()
	if err != nil {
		return Session{}, backend.Profile{}, err
	}

	profile, err := s.backend.UpdateProfile(ctx, sess.AccessToken, update)
	if err != nil {
		return Session{}, backend.Profile{}, err
	}
	status, err := ParseStatus(profile.Status)
	if err != nil {
		return Session{}, backend.Profile{}, &apperr.RemoteError{Op: "update profile", Message: err.Error()}
	}

	sess.Status = status
	if err := s.order.barrier(id, func() error { return s.save(ctx, sess) }); err != nil {
		return Session{}, backend.Profile{}, err
	}
	s.logger.Info("profile submitted", slog.String("session_id", id), slog.String("status", status.String()))
	return sess, profile, nil
}

// Refresh re-reads the profile from the backend. It is the only way a
// pending account becomes approved without a new OTP cycle. A response that
// arrives after a newer refresh, a logout or a re-verification is discarded.
func (s *Service) Refresh(ctx context.Context, id string) (Session, backend.Profile, error) {
	t := s.order.next(id)
	applied := false
	defer func() {
		if !applied {
			s.order.abandon(t)
		}
	}()

	sess, err := s.Current(ctx, id)
	if err != nil {
		return Session{}, backend.Profile{}, err
	}
	if !sess.Authenticated() {
		return sess, backend.Profile{}, ErrNoToken
	}

	profile, err := s.backend.Profile(ctx, sess.AccessToken)
	if err != nil {
		return Session{}, backend.Profile{}, err
	}
	status, err := ParseStatus(profile.Status)
	if err != nil {
		return Session{}, backend.Profile{}, &apperr.RemoteError{Op: "fetch profile", Message: err.Error()}
	}

	var latest Session
	applied = true
	ok, err := s.order.commit(t, func() error {
		current, err := s.Current(ctx, id)
		if err != nil {
			return err
		}
		if current.AccessToken != sess.AccessToken {
			// token changed underneath us; the response belongs to an old login
			latest = current
			return errStale
		}
		current.Status = status
		if profile.PhoneNumber != "" {
			current.PhoneNumber = profile.PhoneNumber
		}
		if profile.ISDCode != "" {
			current.ISDCode = profile.ISDCode
		}
		latest = current
		return s.save(ctx, current)
	})
	if errors.Is(err, errStale) {
		ok = false
		err = nil
	}
	if err != nil {
		return Session{}, backend.Profile{}, err
	}
	if !ok {
		s.logger.Debug("stale profile response discarded", slog.String("session_id", id))
		if latest.ID == "" {
			if latest, err = s.Current(ctx, id); err != nil {
				return Session{}, backend.Profile{}, err
			}
		}
	}
	return latest, profile, nil
}

// Logout forgets the token and derived status. The backend is not told.
func (s *Service) Logout(ctx context.Context, id string) (Session, error) {
	err := s.order.barrier(id, func() error {
		if err := s.store.Delete(ctx, sessionKey(id)); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	for _, hook := range s.onLogout {
		if err := hook(ctx, id); err != nil {
			s.logger.Warn("logout hook failed", slog.String("session_id", id), slog.Any("error", err))
		}
	}
	s.logger.Info("logged out", slog.String("session_id", id))
	return Session{ID: id}, nil
}

// CatalogAccess re-derives the status from the backend and decides whether
// the catalog may be shown.
func (s *Service) CatalogAccess(ctx context.Context, id string) (Access, error) {
	sess, err := s.Current(ctx, id)
	if err != nil {
		return Access{}, err
	}
	if !sess.Authenticated() {
		return accessFor(sess), nil
	}
	sess, _, err = s.Refresh(ctx, id)
	if err != nil && !errors.Is(err, ErrNoToken) {
		return Access{}, err
	}
	return accessFor(sess), nil
}

var errStale = errors.New("stale session snapshot")

// ordering hands out per-session tickets so that only the newest profile
// response is applied. Writers other than Refresh raise a barrier that
// invalidates every ticket issued before it. Each session has its own lock;
// o.mu only guards the table.
type ordering struct {
	mu     sync.Mutex
	states map[string]*ticketState
}

type ticketState struct {
	mu      sync.Mutex
	issued  uint64
	applied uint64
	refs    int // outstanding tickets plus running barriers, guarded by ordering.mu
}

// ticket is a claim on a session's next profile write.
type ticket struct {
	id string
	st *ticketState
	n  uint64
}

func newOrdering() *ordering {
	return &ordering{states: make(map[string]*ticketState)}
}

func (o *ordering) acquire(id string) *ticketState {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.states[id]
	if !ok {
		st = &ticketState{}
		o.states[id] = st
	}
	st.refs++
	return st
}

func (o *ordering) release(id string, st *ticketState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st.refs--
	if st.refs <= 0 && o.states[id] == st {
		delete(o.states, id)
	}
}

func (o *ordering) next(id string) ticket {
	st := o.acquire(id)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.issued++
	return ticket{id: id, st: st, n: st.issued}
}

// abandon settles a ticket that never reached commit.
func (o *ordering) abandon(t ticket) {
	o.release(t.id, t.st)
}

// commit runs write when t is newer than everything applied so far.
func (o *ordering) commit(t ticket, write func() error) (bool, error) {
	defer o.release(t.id, t.st)
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	if t.n <= t.st.applied {
		return false, nil
	}
	if err := write(); err != nil {
		return false, err
	}
	t.st.applied = t.n
	return true, nil
}

// barrier runs write and invalidates all tickets issued so far.
func (o *ordering) barrier(id string, write func() error) error {
	st := o.acquire(id)
	defer o.release(id, st)
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := write(); err != nil {
		return err
	}
	st.issued++
	st.applied = st.issued
	return nil
}
