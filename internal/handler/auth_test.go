package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authware/rbac-starter/internal/config"
	"github.com/authware/rbac-starter/internal/repository"
	"github.com/authware/rbac-starter/internal/utils"
)

func newAuthFixture(t *testing.T) (*AuthHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{BcryptCost: 4, DefaultRole: "user"}
	issuer := utils.NewTokenIssuer("handler-test-secret", 15, 5)
	h := NewAuthHandler(cfg, issuer,
		repository.NewUserRepo(db),
		repository.NewRoleRepo(db),
		repository.NewResetTokenRepo(db))
	return h, mock
}

func jsonReq(t *testing.T, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// errDuplicate fakes the driver error for a violated unique index.
func errDuplicate(key string) error {
	return errors.New("Error 1062 (23000): Duplicate entry 'x' for key '" + key + "'")
}

func mockUserRow(t *testing.T, id uint64, email, username, password string, active bool) *sqlmock.Rows {
	t.Helper()
	hash, err := utils.HashPassword(password, 4)
	require.NoError(t, err)
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "email", "username", "password_hash", "role_id", "is_active", "created_at", "updated_at"}).
		AddRow(id, email, username, hash, 2, active, now, now)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	h, mock := newAuthFixture(t)

	c, rec := jsonReq(t, http.MethodPost, "/v1/auth/register",
		`{"email":"a@b.c","username":"alice","password":"short"}`)
	require.NoError(t, h.Register(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet()) // nothing touched the DB
}

func TestRegisterConflictOnDuplicateEmail(t *testing.T) {
	h, mock := newAuthFixture(t)
	now := time.Now()

	mock.ExpectQuery("SELECT .+ FROM roles WHERE name=").
		WithArgs("user").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_at", "updated_at"}).
			AddRow(2, "user", "", now, now))
	mock.ExpectQuery("FROM roles_permissions rp JOIN permissions p").
		WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"role_id", "id", "name", "description", "created_at", "updated_at"}))
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(errDuplicate("uq_users_email"))

	c, rec := jsonReq(t, http.MethodPost, "/v1/auth/register",
		`{"email":"taken@example.com","username":"alice","password":"longenough"}`)
	require.NoError(t, h.Register(c))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "email already registered")
}

// Unknown account, wrong password and disabled account must be
// indistinguishable from outside.
func TestLoginFailuresLookIdentical(t *testing.T) {
	bodies := make([]string, 0, 3)

	// unknown account: neither username nor email matches
	h, mock := newAuthFixture(t)
	mock.ExpectQuery("SELECT .+ FROM users WHERE username=").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT .+ FROM users WHERE email=").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	c, rec := jsonReq(t, http.MethodPost, "/v1/auth/login", `{"username":"ghost","password":"whatever1"}`)
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	bodies = append(bodies, rec.Body.String())

	// wrong password
	h, mock = newAuthFixture(t)
	mock.ExpectQuery("SELECT .+ FROM users WHERE username=").
		WithArgs("alice").
		WillReturnRows(mockUserRow(t, 1, "alice@example.com", "alice", "correct-password", true))
	c, rec = jsonReq(t, http.MethodPost, "/v1/auth/login", `{"username":"alice","password":"wrong-password"}`)
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	bodies = append(bodies, rec.Body.String())

	// disabled account, correct password
	h, mock = newAuthFixture(t)
	mock.ExpectQuery("SELECT .+ FROM users WHERE username=").
		WithArgs("bob").
		WillReturnRows(mockUserRow(t, 2, "bob@example.com", "bob", "correct-password", false))
	c, rec = jsonReq(t, http.MethodPost, "/v1/auth/login", `{"username":"bob","password":"correct-password"}`)
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	bodies = append(bodies, rec.Body.String())

	assert.Equal(t, bodies[0], bodies[1])
	assert.Equal(t, bodies[1], bodies[2])
}

func TestLoginSuccessByEmailFallback(t *testing.T) {
	h, mock := newAuthFixture(t)

	mock.ExpectQuery("SELECT .+ FROM users WHERE username=").
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT .+ FROM users WHERE email=").
		WithArgs("alice@example.com").
		WillReturnRows(mockUserRow(t, 1, "alice@example.com", "alice", "correct-password", true))

	c, rec := jsonReq(t, http.MethodPost, "/v1/auth/login",
		`{"username":"alice@example.com","password":"correct-password"}`)
	require.NoError(t, h.Login(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token"`)
}

func TestForgotPasswordUnknownEmailSameResponse(t *testing.T) {
	h, mock := newAuthFixture(t)

	mock.ExpectQuery("SELECT .+ FROM users WHERE email=").
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	c, rec := jsonReq(t, http.MethodPost, "/v1/auth/forgot-password", `{"email":"ghost@example.com"}`)
	require.NoError(t, h.ForgotPassword(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), forgotRespMsg)
	// No token row may be written for an unknown address.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestForgotPasswordStoresTokenHash(t *testing.T) {
	h, mock := newAuthFixture(t)

	mock.ExpectQuery("SELECT .+ FROM users WHERE email=").
		WithArgs("alice@example.com").
		WillReturnRows(mockUserRow(t, 1, "alice@example.com", "alice", "correct-password", true))
	mock.ExpectExec("INSERT INTO password_reset_tokens").
		WithArgs(uint64(1), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	// Housekeeping rides on the write path.
	mock.ExpectExec("DELETE FROM password_reset_tokens WHERE expires_at <").
		WillReturnResult(sqlmock.NewResult(0, 0))

	c, rec := jsonReq(t, http.MethodPost, "/v1/auth/forgot-password", `{"email":"alice@example.com"}`)
	require.NoError(t, h.ForgotPassword(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), forgotRespMsg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetPasswordRejectsAccessToken(t *testing.T) {
	h, _ := newAuthFixture(t)

	st, err := h.Issuer.IssueAccess(1)
	require.NoError(t, err)

	c, rec := jsonReq(t, http.MethodPost, "/v1/auth/reset-password",
		`{"token":"`+st.Token+`","new_password":"longenough"}`)
	require.NoError(t, h.ResetPassword(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestResetPasswordHappyPath(t *testing.T) {
	h, mock := newAuthFixture(t)

	st, err := h.Issuer.IssueReset(5)
	require.NoError(t, err)
	tokenHash := utils.HashResetRaw(st.Token)

	mock.ExpectQuery("SELECT .+ FROM users WHERE id=").
		WithArgs(uint64(5)).
		WillReturnRows(mockUserRow(t, 5, "alice@example.com", "alice", "old-password", true))
	mock.ExpectQuery("SELECT 1 FROM password_reset_tokens WHERE token_hash=").
		WithArgs(tokenHash).
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE password_reset_tokens SET used_at=NOW\\(\\) WHERE token_hash=").
		WithArgs(tokenHash, uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users SET password_hash=").
		WithArgs(sqlmock.AnyArg(), uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE password_reset_tokens SET used_at=NOW\\(\\) WHERE user_id=").
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	c, rec := jsonReq(t, http.MethodPost, "/v1/auth/reset-password",
		`{"token":"`+st.Token+`","new_password":"brand-new-password"}`)
	require.NoError(t, h.ResetPassword(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetPasswordConsumedTokenIs401(t *testing.T) {
	h, mock := newAuthFixture(t)

	st, err := h.Issuer.IssueReset(5)
	require.NoError(t, err)

	// No live row for the hash: the pre-check ends the request before
	// any hashing or transaction work.
	mock.ExpectQuery("SELECT .+ FROM users WHERE id=").
		WithArgs(uint64(5)).
		WillReturnRows(mockUserRow(t, 5, "alice@example.com", "alice", "old-password", true))
	mock.ExpectQuery("SELECT 1 FROM password_reset_tokens WHERE token_hash=").
		WithArgs(utils.HashResetRaw(st.Token)).
		WillReturnRows(sqlmock.NewRows([]string{"one"}))

	c, rec := jsonReq(t, http.MethodPost, "/v1/auth/reset-password",
		`{"token":"`+st.Token+`","new_password":"brand-new-password"}`)
	require.NoError(t, h.ResetPassword(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid or expired reset token")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetPasswordLosesClaimRace(t *testing.T) {
	h, mock := newAuthFixture(t)

	st, err := h.Issuer.IssueReset(5)
	require.NoError(t, err)
	tokenHash := utils.HashResetRaw(st.Token)

	// The pre-check still sees a live row, but a concurrent reset
	// consumes it before this transaction claims it: zero rows from the
	// guarded update, hash untouched.
	mock.ExpectQuery("SELECT .+ FROM users WHERE id=").
		WithArgs(uint64(5)).
		WillReturnRows(mockUserRow(t, 5, "alice@example.com", "alice", "old-password", true))
	mock.ExpectQuery("SELECT 1 FROM password_reset_tokens WHERE token_hash=").
		WithArgs(tokenHash).
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE password_reset_tokens SET used_at=NOW\\(\\) WHERE token_hash=").
		WithArgs(tokenHash, uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	c, rec := jsonReq(t, http.MethodPost, "/v1/auth/reset-password",
		`{"token":"`+st.Token+`","new_password":"brand-new-password"}`)
	require.NoError(t, h.ResetPassword(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid or expired reset token")
	assert.NoError(t, mock.ExpectationsWereMet())
}
