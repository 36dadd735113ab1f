package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rp-jtw/storefront/internal/apperr"
	"github.com/rp-jtw/storefront/internal/backend"
	"github.com/rp-jtw/storefront/internal/logging"
	"github.com/rp-jtw/storefront/internal/store"
)

type fakeBackend struct {
	mu          sync.Mutex
	otpCalls    int
	verifyCalls int
	lastPhone   string
	verify      backend.VerifyResult
	verifyErr   error
	profile     backend.Profile
	profileFn   func(ctx context.Context) (backend.Profile, error)
	updated     backend.ProfileUpdate
}

func (f *fakeBackend) RequestOTP(_ context.Context, isd, phone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.otpCalls++
	f.lastPhone = isd + phone
	return nil
}

func (f *fakeBackend) VerifyOTP(context.Context, string, string, string) (backend.VerifyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	return f.verify, f.verifyErr
}

func (f *fakeBackend) Profile(ctx context.Context, _ string) (backend.Profile, error) {
	f.mu.Lock()
	fn := f.profileFn
	p := f.profile
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return p, nil
}

func (f *fakeBackend) UpdateProfile(_ context.Context, _ string, u backend.ProfileUpdate) (backend.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = u
	return backend.Profile{FirstName: u.FirstName, BusinessName: u.BusinessName, Status: "pending"}, nil
}

func newTestService(fb *fakeBackend) *Service {
	return NewService(fb, store.NewMemory(), time.Hour, logging.Discard())
}

const sid = "5f0c3a1e-2b4d-4c6e-8f10-123456789abc"

func signIn(t *testing.T, svc *Service, status string) {
	t.Helper()
	fb := svc.backend.(*fakeBackend)
	fb.verify = backend.VerifyResult{AccessToken: "tok-1", Status: status}
	ctx := context.Background()
	if _, err := svc.RequestOTP(ctx, sid, "+91", "98765-43210"); err != nil {
		t.Fatalf("request otp: %v", err)
	}
	if _, err := svc.VerifyOTP(ctx, sid, "123456"); err != nil {
		t.Fatalf("verify otp: %v", err)
	}
}

func TestRequestOTPRejectsBadPhoneBeforeNetwork(t *testing.T) {
	fb := &fakeBackend{}
	svc := newTestService(fb)

	for _, phone := range []string{"12345", "98765432101", "", "abcdefghij"} {
		_, err := svc.RequestOTP(context.Background(), sid, "+91", phone)
		if !apperr.IsValidation(err) {
			t.Fatalf("%q: expected validation error, got %v", phone, err)
		}
	}
	if fb.otpCalls != 0 {
		t.Fatalf("backend should not be called, got %d calls", fb.otpCalls)
	}
}

func TestRequestOTPNormalizesAndMovesToOTPSent(t *testing.T) {
	fb := &fakeBackend{}
	svc := newTestService(fb)

	sess, err := svc.RequestOTP(context.Background(), sid, "", "(987) 654-3210")
	if err != nil {
		t.Fatalf("request otp: %v", err)
	}
	if fb.lastPhone != "+919876543210" {
		t.Fatalf("unexpected backend phone %q", fb.lastPhone)
	}
	if sess.Stage() != StageOTPSent {
		t.Fatalf("expected otp_sent, got %s", sess.Stage())
	}
}

func TestVerifyOTPRequiresRequestAndSixDigits(t *testing.T) {
	fb := &fakeBackend{verify: backend.VerifyResult{AccessToken: "tok", Status: "pending_details"}}
	svc := newTestService(fb)
	ctx := context.Background()

	if _, err := svc.VerifyOTP(ctx, sid, "123456"); !errors.Is(err, ErrOTPNotRequested) {
		t.Fatalf("expected ErrOTPNotRequested, got %v", err)
	}
	if _, err := svc.RequestOTP(ctx, sid, "+91", "9876543210"); err != nil {
		t.Fatalf("request otp: %v", err)
	}
	if _, err := svc.VerifyOTP(ctx, sid, "12345"); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for short code, got %v", err)
	}
	if fb.verifyCalls != 0 {
		t.Fatalf("backend should not see incomplete codes")
	}

	sess, err := svc.VerifyOTP(ctx, sid, "123 456")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sess.Stage() != StageProfilePending || !sess.Authenticated() {
		t.Fatalf("unexpected session %+v", sess)
	}
}

func TestVerifyOTPRejectsUnknownStatus(t *testing.T) {
	fb := &fakeBackend{verify: backend.VerifyResult{AccessToken: "tok", Status: "banned"}}
	svc := newTestService(fb)
	ctx := context.Background()
	if _, err := svc.RequestOTP(ctx, sid, "+91", "9876543210"); err != nil {
		t.Fatalf("request otp: %v", err)
	}
	_, err := svc.VerifyOTP(ctx, sid, "123456")
	if !apperr.IsRemote(err) {
		t.Fatalf("expected remote error, got %v", err)
	}
	sess, _ := svc.Current(ctx, sid)
	if sess.Authenticated() {
		t.Fatalf("session must not be signed in on an unknown status")
	}
}

func TestSubmitProfileMovesToAwaitingApproval(t *testing.T) {
	fb := &fakeBackend{}
	svc := newTestService(fb)
	signIn(t, svc, "pending_details")

	form := ProfileForm{FirstName: "Asha", LastName: "Rao", BusinessName: "Asha Gems", Email: "asha@example.com", City: "Jaipur", State: "RJ", GSTNumber: "08abcde1234f1z5"}
	sess, _, err := svc.SubmitProfile(context.Background(), sid, form)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sess.Stage() != StageAwaitingApproval {
		t.Fatalf("expected awaiting_approval, got %s", sess.Stage())
	}
	if fb.updated.GSTNumber != "08ABCDE1234F1Z5" {
		t.Fatalf("gst not normalized: %q", fb.updated.GSTNumber)
	}
}

func TestSubmitProfileRequiresToken(t *testing.T) {
	svc := newTestService(&fakeBackend{})
	_, _, err := svc.SubmitProfile(context.Background(), sid, ProfileForm{})
	if !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestRefreshPromotesToApproved(t *testing.T) {
	fb := &fakeBackend{profile: backend.Profile{Status: "active"}}
	svc := newTestService(fb)
	signIn(t, svc, "pending")

	access, err := svc.CatalogAccess(context.Background(), sid)
	if err != nil {
		t.Fatalf("access: %v", err)
	}
	if !access.Allowed || access.Stage != StageApproved {
		t.Fatalf("expected approved access, got %+v", access)
	}
}

func TestCatalogAccessRedirects(t *testing.T) {
	cases := []struct {
		status   string
		redirect string
	}{
		{"pending", RedirectProfile},
		{"pending_details", RedirectProfile},
	}
	for _, tc := range cases {
		fb := &fakeBackend{profile: backend.Profile{Status: tc.status}}
		svc := newTestService(fb)
		signIn(t, svc, tc.status)
		access, err := svc.CatalogAccess(context.Background(), sid)
		if err != nil {
			t.Fatalf("%s: %v", tc.status, err)
		}
		if access.Allowed || access.Redirect != tc.redirect {
			t.Fatalf("%s: unexpected access %+v", tc.status, access)
		}
	}

	anon := newTestService(&fakeBackend{})
	access, err := anon.CatalogAccess(context.Background(), sid)
	if err != nil {
		t.Fatalf("anonymous: %v", err)
	}
	if access.Allowed || access.Redirect != RedirectHome {
		t.Fatalf("anonymous: unexpected access %+v", access)
	}
}

func TestLogoutClearsSessionAndRunsHooks(t *testing.T) {
	fb := &fakeBackend{}
	svc := newTestService(fb)
	signIn(t, svc, "active")

	var hooked string
	svc.OnLogout(func(_ context.Context, id string) error {
		hooked = id
		return errors.New("ignored")
	})

	sess, err := svc.Logout(context.Background(), sid)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if sess.Authenticated() || sess.Stage() != StageAnonymous {
		t.Fatalf("unexpected session after logout %+v", sess)
	}
	if hooked != sid {
		t.Fatalf("logout hook not run")
	}
	if _, err := svc.AccessToken(context.Background(), sid); !errors.Is(err, ErrNoToken) {
		t.Fatalf("token should be gone, got %v", err)
	}
}

// blockingProfiles hands each Profile call its own release channel.
type blockingProfiles struct {
	started chan chan backend.Profile
}

func (b blockingProfiles) fn(ctx context.Context) (backend.Profile, error) {
	reply := make(chan backend.Profile)
	b.started <- reply
	select {
	case p := <-reply:
		return p, nil
	case <-ctx.Done():
		return backend.Profile{}, ctx.Err()
	}
}

func TestRefreshDiscardsOutOfOrderResponse(t *testing.T) {
	fb := &fakeBackend{}
	svc := newTestService(fb)
	signIn(t, svc, "pending")

	bp := blockingProfiles{started: make(chan chan backend.Profile)}
	fb.profileFn = bp.fn

	ctx := context.Background()
	done := make(chan Session, 2)
	go func() { s, _, _ := svc.Refresh(ctx, sid); done <- s }()
	older := <-bp.started
	go func() { s, _, _ := svc.Refresh(ctx, sid); done <- s }()
	newer := <-bp.started

	newer <- backend.Profile{Status: "active"}
	<-done
	older <- backend.Profile{Status: "pending"}
	<-done

	sess, err := svc.Current(ctx, sid)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if sess.Status != StatusApproved {
		t.Fatalf("older response overwrote newer one: %s", sess.Status)
	}
}

func TestRefreshInFlightCannotResurrectLoggedOutSession(t *testing.T) {
	fb := &fakeBackend{}
	svc := newTestService(fb)
	signIn(t, svc, "pending")

	bp := blockingProfiles{started: make(chan chan backend.Profile)}
	fb.profileFn = bp.fn

	ctx := context.Background()
	done := make(chan struct{})
	go func() { svc.Refresh(ctx, sid); close(done) }()
	reply := <-bp.started

	if _, err := svc.Logout(ctx, sid); err != nil {
		t.Fatalf("logout: %v", err)
	}
	reply <- backend.Profile{Status: "active"}
	<-done

	sess, _ := svc.Current(ctx, sid)
	if sess.Authenticated() || sess.Status != StatusUnverified {
		t.Fatalf("logout was undone by a stale refresh: %+v", sess)
	}
	if len(svc.order.states) != 0 {
		t.Fatalf("ticket state leaked: %d entries", len(svc.order.states))
	}
}

// stallingStore blocks writes to one key until release is closed.
type stallingStore struct {
	store.Store
	key     string
	entered chan struct{}
	release chan struct{}
}

func (s *stallingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == s.key {
		close(s.entered)
		<-s.release
	}
	return s.Store.Set(ctx, key, value, ttl)
}

func TestStalledWriteDoesNotBlockOtherSessions(t *testing.T) {
	const slow = "aaaaaaaa-0000-4000-8000-000000000001"
	const fast = "bbbbbbbb-0000-4000-8000-000000000002"
	st := &stallingStore{
		Store:   store.NewMemory(),
		key:     sessionKey(slow),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := NewService(&fakeBackend{}, st, time.Hour, logging.Discard())
	ctx := context.Background()

	slowDone := make(chan error, 1)
	go func() {
		_, err := svc.RequestOTP(ctx, slow, "+91", "9876543210")
		slowDone <- err
	}()
	<-st.entered

	fastDone := make(chan error, 1)
	go func() {
		_, err := svc.RequestOTP(ctx, fast, "+91", "9123456780")
		fastDone <- err
	}()
	select {
	case err := <-fastDone:
		if err != nil {
			t.Fatalf("fast session: %v", err)
		}
	case <-time.After(2 * time.Second):
		close(st.release)
		t.Fatalf("second session waited on the first session's store write")
	}

	close(st.release)
	if err := <-slowDone; err != nil {
		t.Fatalf("slow session: %v", err)
	}
	if len(svc.order.states) != 0 {
		t.Fatalf("ticket state leaked: %d entries", len(svc.order.states))
	}
}
