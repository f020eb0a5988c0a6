package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lifenippon/apiserver/internal/mailer"
	"github.com/lifenippon/apiserver/internal/store"
	"github.com/lifenippon/apiserver/types"
)

// --- mocks ---

type mockUserRepo struct {
	getByIDFn        func(ctx context.Context, id int) (types.User, error)
	getByEmailFn     func(ctx context.Context, email string) (types.User, error)
	getByUsernameFn  func(ctx context.Context, username string) (types.User, error)
	getByResetLinkFn func(ctx context.Context, link string) (types.User, error)
	createFn         func(ctx context.Context, user types.User) (types.User, error)
	updateFn         func(ctx context.Context, user types.User) (types.User, error)
	setPasswordFn    func(ctx context.Context, id int, salt, hashedPassword string) error
	setResetLinkFn   func(ctx context.Context, id int, link string) error
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return types.User{}, store.ErrNotFound
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	if m.getByEmailFn != nil {
		return m.getByEmailFn(ctx, email)
	}
	return types.User{}, store.ErrNotFound
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	if m.getByUsernameFn != nil {
		return m.getByUsernameFn(ctx, username)
	}
	return types.User{}, store.ErrNotFound
}

func (m *mockUserRepo) GetByResetLink(ctx context.Context, link string) (types.User, error) {
	if m.getByResetLinkFn != nil {
		return m.getByResetLinkFn(ctx, link)
	}
	return types.User{}, store.ErrNotFound
}

func (m *mockUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	user.ID = 1
	return user, nil
}

func (m *mockUserRepo) Update(ctx context.Context, user types.User) (types.User, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, user)
	}
	return user, nil
}

func (m *mockUserRepo) SetPassword(ctx context.Context, id int, salt, hashedPassword string) error {
	if m.setPasswordFn != nil {
		return m.setPasswordFn(ctx, id, salt, hashedPassword)
	}
	return nil
}

func (m *mockUserRepo) SetResetLink(ctx context.Context, id int, link string) error {
	if m.setResetLinkFn != nil {
		return m.setResetLinkFn(ctx, id, link)
	}
	return nil
}

type mockSender struct {
	sendFn func(ctx context.Context, email mailer.Email) error
	sent   []mailer.Email
}

func (m *mockSender) Send(ctx context.Context, email mailer.Email) error {
	if m.sendFn != nil {
		if err := m.sendFn(ctx, email); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, email)
	return nil
}

type mockIdentityVerifier struct {
	verifyFn func(ctx context.Context, assertion string) (IdentityClaims, error)
}

func (m *mockIdentityVerifier) VerifyAssertion(ctx context.Context, assertion string) (IdentityClaims, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, assertion)
	}
	return IdentityClaims{}, ErrIdentityInvalid
}

// --- compile-time interface checks ---
var _ UserRepository = (*mockUserRepo)(nil)
var _ mailer.Sender = (*mockSender)(nil)
var _ IdentityVerifier = (*mockIdentityVerifier)(nil)

type authFixture struct {
	users    *mockUserRepo
	mail     *mockSender
	identity *mockIdentityVerifier
	svc      *AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		users:    &mockUserRepo{},
		mail:     &mockSender{},
		identity: &mockIdentityVerifier{},
	}
	f.svc = NewAuthService(AuthParams{
		Users:      f.users,
		Mail:       f.mail,
		Identity:   f.identity,
		Activation: NewTokenService("activation-secret", ActivationTokenTTL),
		Reset:      NewTokenService("reset-secret", ResetTokenTTL),
		Session:    NewTokenService("session-secret", SessionTokenTTL),
		ClientURL:  "https://blog.example.com",
	})
	return f
}

// --- pre-signup ---

func TestPreSignup_SendsActivationEmail(t *testing.T) {
	f := newAuthFixture(t)

	err := f.svc.PreSignup(context.Background(), "Alice", "Alice@Example.com", "secret123")
	if err != nil {
		t.Fatalf("PreSignup() error = %v", err)
	}

	if len(f.mail.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(f.mail.sent))
	}
	email := f.mail.sent[0]
	if len(email.To) != 1 || email.To[0] != "alice@example.com" {
		t.Errorf("email to = %v, want [alice@example.com]", email.To)
	}
	if !strings.Contains(email.HTML, "https://blog.example.com/auth/account/activate/") {
		t.Errorf("email body missing activation link: %q", email.HTML)
	}

	// The link must carry a token the activation verifier accepts.
	token := extractToken(t, email.HTML, "/auth/account/activate/")
	claims, err := NewTokenService("activation-secret", ActivationTokenTTL).VerifyActivation(token)
	if err != nil {
		t.Fatalf("emailed token did not verify: %v", err)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("token email = %q, want %q", claims.Email, "alice@example.com")
	}
	if claims.Name != "Alice" || claims.Password != "secret123" {
		t.Errorf("token claims = %+v", claims)
	}
}

func TestPreSignup_EmailTaken_SendsNothing(t *testing.T) {
	f := newAuthFixture(t)
	f.users.getByEmailFn = func(ctx context.Context, email string) (types.User, error) {
		return types.User{ID: 7, Email: email}, nil
	}

	err := f.svc.PreSignup(context.Background(), "Alice", "alice@example.com", "secret123")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("PreSignup() error = %v, want ErrEmailTaken", err)
	}
	if len(f.mail.sent) != 0 {
		t.Errorf("sent %d emails, want 0", len(f.mail.sent))
	}
}

// --- signup ---

func TestSignup_CreatesAccountFromToken(t *testing.T) {
	f := newAuthFixture(t)
	var created types.User
	f.users.createFn = func(ctx context.Context, user types.User) (types.User, error) {
		created = user
		user.ID = 1
		return user, nil
	}

	token, err := NewTokenService("activation-secret", ActivationTokenTTL).
		IssueActivation("Alice", "Alice@Example.com", "secret123")
	if err != nil {
		t.Fatalf("IssueActivation() error = %v", err)
	}

	user, err := f.svc.Signup(context.Background(), token)
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	if created.Email != "alice@example.com" {
		t.Errorf("stored email = %q, want %q", created.Email, "alice@example.com")
	}
	if created.Role != types.RoleUser {
		t.Errorf("role = %q, want %q", created.Role, types.RoleUser)
	}
	if len(created.Username) != 12 {
		t.Errorf("username %q length = %d, want 12", created.Username, len(created.Username))
	}
	if want := "https://blog.example.com/profile/" + created.Username; created.Profile != want {
		t.Errorf("profile = %q, want %q", created.Profile, want)
	}
	if !VerifyPassword("secret123", created.Salt, created.HashedPassword) {
		t.Error("stored digest does not verify the chosen password")
	}

	// The returned projection must not leak credentials.
	if user.Salt != "" || user.HashedPassword != "" {
		t.Error("public projection leaked credential fields")
	}
	if user.ID != 1 {
		t.Errorf("user id = %d, want 1", user.ID)
	}
}

func TestSignup_ExpiredToken(t *testing.T) {
	f := newAuthFixture(t)

	token, err := NewTokenService("activation-secret", -time.Minute).
		IssueActivation("Alice", "alice@example.com", "secret123")
	if err != nil {
		t.Fatalf("IssueActivation() error = %v", err)
	}

	if _, err := f.svc.Signup(context.Background(), token); !errors.Is(err, ErrActivationExpired) {
		t.Errorf("Signup() error = %v, want ErrActivationExpired", err)
	}
}

func TestSignup_TamperedToken(t *testing.T) {
	f := newAuthFixture(t)

	token, err := NewTokenService("some-other-secret", ActivationTokenTTL).
		IssueActivation("Alice", "alice@example.com", "secret123")
	if err != nil {
		t.Fatalf("IssueActivation() error = %v", err)
	}

	if _, err := f.svc.Signup(context.Background(), token); !errors.Is(err, ErrActivationInvalid) {
		t.Errorf("Signup() error = %v, want ErrActivationInvalid", err)
	}
}

func TestSignup_ReplayedToken(t *testing.T) {
	f := newAuthFixture(t)
	f.users.createFn = func(ctx context.Context, user types.User) (types.User, error) {
		return types.User{}, store.ErrConflict
	}

	token, err := NewTokenService("activation-secret", ActivationTokenTTL).
		IssueActivation("Alice", "alice@example.com", "secret123")
	if err != nil {
		t.Fatalf("IssueActivation() error = %v", err)
	}

	if _, err := f.svc.Signup(context.Background(), token); !errors.Is(err, ErrDuplicateAccount) {
		t.Errorf("Signup() error = %v, want ErrDuplicateAccount", err)
	}
}

// --- signin ---

func signinUser(t *testing.T, password string) types.User {
	t.Helper()
	salt := MakeSalt()
	return types.User{
		ID:             42,
		Username:       "alice",
		Email:          "alice@example.com",
		Salt:           salt,
		HashedPassword: DeriveDigest(password, salt),
	}
}

func TestSignin_IssuesSessionToken(t *testing.T) {
	f := newAuthFixture(t)
	stored := signinUser(t, "secret123")
	f.users.getByEmailFn = func(ctx context.Context, email string) (types.User, error) {
		if email != "alice@example.com" {
			return types.User{}, store.ErrNotFound
		}
		return stored, nil
	}

	token, user, err := f.svc.Signin(context.Background(), "Alice@Example.com", "secret123")
	if err != nil {
		t.Fatalf("Signin() error = %v", err)
	}
	if user.ID != 42 {
		t.Errorf("user id = %d, want 42", user.ID)
	}
	if user.HashedPassword != "" || user.Salt != "" {
		t.Error("public projection leaked credential fields")
	}

	id, err := f.svc.VerifySession(token)
	if err != nil {
		t.Fatalf("VerifySession() error = %v", err)
	}
	if id != 42 {
		t.Errorf("session subject = %d, want 42", id)
	}
}

func TestSignin_WrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	stored := signinUser(t, "secret123")
	f.users.getByEmailFn = func(ctx context.Context, email string) (types.User, error) {
		return stored, nil
	}

	if _, _, err := f.svc.Signin(context.Background(), "alice@example.com", "wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("Signin() error = %v, want ErrBadCredentials", err)
	}
}

func TestSignin_UnknownEmail(t *testing.T) {
	f := newAuthFixture(t)

	if _, _, err := f.svc.Signin(context.Background(), "ghost@example.com", "secret123"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Signin() error = %v, want ErrUserNotFound", err)
	}
}

// --- forgot / reset password ---

func TestForgotPassword_StoresAndMailsLink(t *testing.T) {
	f := newAuthFixture(t)
	stored := signinUser(t, "secret123")
	f.users.getByEmailFn = func(ctx context.Context, email string) (types.User, error) {
		return stored, nil
	}
	var storedLink string
	f.users.setResetLinkFn = func(ctx context.Context, id int, link string) error {
		if id != 42 {
			t.Errorf("SetResetLink id = %d, want 42", id)
		}
		storedLink = link
		return nil
	}

	if err := f.svc.ForgotPassword(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("ForgotPassword() error = %v", err)
	}

	if storedLink == "" {
		t.Fatal("reset link was not stored")
	}
	if len(f.mail.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(f.mail.sent))
	}
	emailed := extractToken(t, f.mail.sent[0].HTML, "/auth/password/reset/")
	if emailed != storedLink {
		t.Error("emailed link differs from stored link")
	}

	subject, err := NewTokenService("reset-secret", ResetTokenTTL).VerifySubject(storedLink)
	if err != nil {
		t.Fatalf("stored link did not verify: %v", err)
	}
	if subject != "42" {
		t.Errorf("reset subject = %q, want %q", subject, "42")
	}
}

func TestForgotPassword_UnknownEmail_SendsNothing(t *testing.T) {
	f := newAuthFixture(t)

	if err := f.svc.ForgotPassword(context.Background(), "ghost@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("ForgotPassword() error = %v, want ErrUserNotFound", err)
	}
	if len(f.mail.sent) != 0 {
		t.Errorf("sent %d emails, want 0", len(f.mail.sent))
	}
}

func TestResetPassword_SetsNewCredential(t *testing.T) {
	f := newAuthFixture(t)

	link, err := NewTokenService("reset-secret", ResetTokenTTL).IssueSubject("42")
	if err != nil {
		t.Fatalf("IssueSubject() error = %v", err)
	}

	f.users.getByResetLinkFn = func(ctx context.Context, got string) (types.User, error) {
		if got != link {
			return types.User{}, store.ErrNotFound
		}
		return types.User{ID: 42, ResetPasswordLink: link}, nil
	}
	var newSalt, newDigest string
	f.users.setPasswordFn = func(ctx context.Context, id int, salt, hashedPassword string) error {
		if id != 42 {
			t.Errorf("SetPassword id = %d, want 42", id)
		}
		newSalt, newDigest = salt, hashedPassword
		return nil
	}

	if err := f.svc.ResetPassword(context.Background(), link, "brand-new-pass"); err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}
	if !VerifyPassword("brand-new-pass", newSalt, newDigest) {
		t.Error("stored digest does not verify the new password")
	}
}

// A link that verifies cryptographically but no longer matches any
// stored row was superseded by a newer request.
func TestResetPassword_SupersededLink(t *testing.T) {
	f := newAuthFixture(t)

	link, err := NewTokenService("reset-secret", ResetTokenTTL).IssueSubject("42")
	if err != nil {
		t.Fatalf("IssueSubject() error = %v", err)
	}

	if err := f.svc.ResetPassword(context.Background(), link, "brand-new-pass"); !errors.Is(err, ErrResetLinkStale) {
		t.Errorf("ResetPassword() error = %v, want ErrResetLinkStale", err)
	}
}

func TestResetPassword_ExpiredLink(t *testing.T) {
	f := newAuthFixture(t)

	link, err := NewTokenService("reset-secret", -time.Minute).IssueSubject("42")
	if err != nil {
		t.Fatalf("IssueSubject() error = %v", err)
	}

	if err := f.svc.ResetPassword(context.Background(), link, "brand-new-pass"); !errors.Is(err, ErrResetExpired) {
		t.Errorf("ResetPassword() error = %v, want ErrResetExpired", err)
	}
}

func TestResetPassword_GarbageLink(t *testing.T) {
	f := newAuthFixture(t)

	if err := f.svc.ResetPassword(context.Background(), "not-a-token", "brand-new-pass"); !errors.Is(err, ErrResetInvalid) {
		t.Errorf("ResetPassword() error = %v, want ErrResetInvalid", err)
	}
}

// --- google login ---

func TestGoogleLogin_UnverifiedEmail_CreatesNothing(t *testing.T) {
	f := newAuthFixture(t)
	f.identity.verifyFn = func(ctx context.Context, assertion string) (IdentityClaims, error) {
		return IdentityClaims{Email: "alice@example.com", EmailVerified: false, Name: "Alice"}, nil
	}
	f.users.createFn = func(ctx context.Context, user types.User) (types.User, error) {
		t.Error("Create must not be called for an unverified email")
		return types.User{}, nil
	}

	if _, _, err := f.svc.GoogleLogin(context.Background(), "assertion"); !errors.Is(err, ErrIdentityNotVerified) {
		t.Errorf("GoogleLogin() error = %v, want ErrIdentityNotVerified", err)
	}
}

func TestGoogleLogin_BadAssertion(t *testing.T) {
	f := newAuthFixture(t)

	if _, _, err := f.svc.GoogleLogin(context.Background(), "garbage"); !errors.Is(err, ErrIdentityInvalid) {
		t.Errorf("GoogleLogin() error = %v, want ErrIdentityInvalid", err)
	}
}

func TestGoogleLogin_FirstLogin_CreatesAccount(t *testing.T) {
	f := newAuthFixture(t)
	f.identity.verifyFn = func(ctx context.Context, assertion string) (IdentityClaims, error) {
		return IdentityClaims{Email: "Alice@Example.com", EmailVerified: true, Name: "Alice", Nonce: "jti-1"}, nil
	}
	var created types.User
	f.users.createFn = func(ctx context.Context, user types.User) (types.User, error) {
		created = user
		user.ID = 9
		return user, nil
	}

	token, user, err := f.svc.GoogleLogin(context.Background(), "assertion")
	if err != nil {
		t.Fatalf("GoogleLogin() error = %v", err)
	}
	if created.Email != "alice@example.com" {
		t.Errorf("stored email = %q, want %q", created.Email, "alice@example.com")
	}
	if created.HashedPassword == "" || created.Salt == "" {
		t.Error("federated account created without a baseline credential")
	}
	if user.ID != 9 {
		t.Errorf("user id = %d, want 9", user.ID)
	}

	id, err := f.svc.VerifySession(token)
	if err != nil {
		t.Fatalf("VerifySession() error = %v", err)
	}
	if id != 9 {
		t.Errorf("session subject = %d, want 9", id)
	}
}

func TestGoogleLogin_ExistingAccount_NoCreate(t *testing.T) {
	f := newAuthFixture(t)
	f.identity.verifyFn = func(ctx context.Context, assertion string) (IdentityClaims, error) {
		return IdentityClaims{Email: "alice@example.com", EmailVerified: true, Name: "Alice"}, nil
	}
	f.users.getByEmailFn = func(ctx context.Context, email string) (types.User, error) {
		return types.User{ID: 42, Email: email}, nil
	}
	f.users.createFn = func(ctx context.Context, user types.User) (types.User, error) {
		t.Error("Create must not be called for an existing account")
		return types.User{}, nil
	}

	token, user, err := f.svc.GoogleLogin(context.Background(), "assertion")
	if err != nil {
		t.Fatalf("GoogleLogin() error = %v", err)
	}
	if user.ID != 42 {
		t.Errorf("user id = %d, want 42", user.ID)
	}
	if id, err := f.svc.VerifySession(token); err != nil || id != 42 {
		t.Errorf("VerifySession() = (%d, %v), want (42, nil)", id, err)
	}
}

// --- session ---

func TestVerifySession_RejectsNonNumericSubject(t *testing.T) {
	f := newAuthFixture(t)

	token, err := NewTokenService("session-secret", SessionTokenTTL).IssueSubject("not-a-number")
	if err != nil {
		t.Fatalf("IssueSubject() error = %v", err)
	}

	if _, err := f.svc.VerifySession(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("VerifySession() error = %v, want ErrTokenInvalid", err)
	}
}

// extractToken pulls the token segment that follows marker out of an
// email body.
func extractToken(t *testing.T, body, marker string) string {
	t.Helper()
	idx := strings.Index(body, marker)
	if idx < 0 {
		t.Fatalf("body does not contain %q", marker)
	}
	rest := body[idx+len(marker):]
	if end := strings.Index(rest, "<"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}
