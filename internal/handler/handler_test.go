package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dan9191/memo-service/internal/middleware"
	"github.com/Dan9191/memo-service/internal/models"
	"github.com/Dan9191/memo-service/internal/repository"
	"github.com/Dan9191/memo-service/internal/service"
	"github.com/Dan9191/memo-service/internal/token"
)

// newRouter wires the handler stack the same way cmd/api does, backed by sqlmock.
func newRouter(t *testing.T) (*mux.Router, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	repo := repository.NewRepository(db)
	tokens := token.NewManager([]byte("test-secret"), time.Hour)
	svc := service.NewService(repo, tokens, log)
	h := NewHandler(svc, log)

	r := mux.NewRouter()
	r.HandleFunc("/api/users/register", h.Register).Methods("POST")
	r.HandleFunc("/api/users/login", h.Login).Methods("POST")
	authRouter := r.PathPrefix("/api/memos").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(tokens, repo, log))
	authRouter.HandleFunc("", h.CreateMemo).Methods("POST")
	authRouter.HandleFunc("/{id:[0-9]+}", h.GetMemo).Methods("GET")
	authRouter.HandleFunc("/{id:[0-9]+}", h.UpdateMemo).Methods("PUT")
	authRouter.HandleFunc("/{id:[0-9]+}", h.DeleteMemo).Methods("DELETE")
	return r, mock
}

func doJSON(t *testing.T, r http.Handler, method, path, authToken string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func userRows(id int64, username, hash string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "password_hash", "created_at"}).
		AddRow(id, username, hash, time.Now())
}

func TestEndToEndMemoFlow(t *testing.T) {
	r, mock := newRouter(t)

	aliceHash, err := bcrypt.GenerateFromPassword([]byte("pw1"), bcrypt.DefaultCost)
	require.NoError(t, err)
	bobHash, err := bcrypt.GenerateFromPassword([]byte("pw2"), bcrypt.DefaultCost)
	require.NoError(t, err)

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	updated := created.Add(time.Minute)

	// register alice and bob
	mock.ExpectQuery("INSERT INTO users").WithArgs("alice", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), created))
	rec := doJSON(t, r, http.MethodPost, "/api/users/register", "", map[string]string{"username": "alice", "password": "pw1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var registered struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &registered))
	require.Equal(t, int64(1), registered.ID)
	require.Equal(t, "alice", registered.Username)

	mock.ExpectQuery("INSERT INTO users").WithArgs("bob", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(2), created))
	rec = doJSON(t, r, http.MethodPost, "/api/users/register", "", map[string]string{"username": "bob", "password": "pw2"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// login both users
	mock.ExpectQuery("SELECT id, username, password_hash, created_at").WithArgs("alice").
		WillReturnRows(userRows(1, "alice", string(aliceHash)))
	rec = doJSON(t, r, http.MethodPost, "/api/users/login", "", map[string]string{"username": "alice", "password": "pw1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var loginResp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loginResp))
	aliceToken := loginResp.Token
	require.NotEmpty(t, aliceToken)

	mock.ExpectQuery("SELECT id, username, password_hash, created_at").WithArgs("bob").
		WillReturnRows(userRows(2, "bob", string(bobHash)))
	rec = doJSON(t, r, http.MethodPost, "/api/users/login", "", map[string]string{"username": "bob", "password": "pw2"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loginResp))
	bobToken := loginResp.Token

	// alice creates a memo
	mock.ExpectQuery("SELECT id, username, password_hash, created_at").WithArgs(int64(1)).
		WillReturnRows(userRows(1, "alice", string(aliceHash)))
	mock.ExpectQuery("INSERT INTO memos").WithArgs("x", "y", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(10), created, created))
	rec = doJSON(t, r, http.MethodPost, "/api/memos", aliceToken, map[string]string{"title": "x", "content": "y"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var memo models.Memo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &memo))
	require.Equal(t, int64(10), memo.ID)
	require.Equal(t, "x", memo.Title)
	require.Equal(t, "y", memo.Content)

	// no token: rejected before any data access
	rec = doJSON(t, r, http.MethodGet, "/api/memos/10", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// alice reads her memo back
	mock.ExpectQuery("SELECT id, username, password_hash, created_at").WithArgs(int64(1)).
		WillReturnRows(userRows(1, "alice", string(aliceHash)))
	mock.ExpectQuery("SELECT id, title, content, created_at, updated_at, owner_id").WithArgs(int64(10), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "content", "created_at", "updated_at", "owner_id"}).
			AddRow(int64(10), "x", "y", created, created, int64(1)))
	rec = doJSON(t, r, http.MethodGet, "/api/memos/10", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &memo))
	require.Equal(t, "x", memo.Title)
	require.Equal(t, "y", memo.Content)

	// bob cannot see alice's memo
	mock.ExpectQuery("SELECT id, username, password_hash, created_at").WithArgs(int64(2)).
		WillReturnRows(userRows(2, "bob", string(bobHash)))
	mock.ExpectQuery("SELECT id, title, content, created_at, updated_at, owner_id").WithArgs(int64(10), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "content", "created_at", "updated_at", "owner_id"}))
	rec = doJSON(t, r, http.MethodGet, "/api/memos/10", bobToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// alice updates the memo
	mock.ExpectQuery("SELECT id, username, password_hash, created_at").WithArgs(int64(1)).
		WillReturnRows(userRows(1, "alice", string(aliceHash)))
	mock.ExpectQuery("UPDATE memos").WithArgs("x2", "y2", int64(10), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "content", "created_at", "updated_at", "owner_id"}).
			AddRow(int64(10), "x2", "y2", created, updated, int64(1)))
	rec = doJSON(t, r, http.MethodPut, "/api/memos/10", aliceToken, map[string]string{"title": "x2", "content": "y2"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &memo))
	require.Equal(t, "x2", memo.Title)
	require.True(t, memo.UpdatedAt.After(memo.CreatedAt))

	// alice deletes the memo
	mock.ExpectQuery("SELECT id, username, password_hash, created_at").WithArgs(int64(1)).
		WillReturnRows(userRows(1, "alice", string(aliceHash)))
	mock.ExpectExec("DELETE FROM memos").WithArgs(int64(10), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	rec = doJSON(t, r, http.MethodDelete, "/api/memos/10", aliceToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, rec.Body.Bytes())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_Duplicate(t *testing.T) {
	r, mock := newRouter(t)

	mock.ExpectQuery("INSERT INTO users").WithArgs("alice", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505"})

	rec := doJSON(t, r, http.MethodPost, "/api/users/register", "", map[string]string{"username": "alice", "password": "pw"})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegister_MissingFields(t *testing.T) {
	r, _ := newRouter(t)

	for _, body := range []map[string]string{
		{"username": "alice"},
		{"password": "pw"},
		{},
	} {
		rec := doJSON(t, r, http.MethodPost, "/api/users/register", "", body)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	r, mock := newRouter(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("pw1"), bcrypt.DefaultCost)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, username, password_hash, created_at").WithArgs("alice").
		WillReturnRows(userRows(1, "alice", string(hash)))

	rec := doJSON(t, r, http.MethodPost, "/api/users/login", "", map[string]string{"username": "alice", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "login failed", body["message"])
}

func TestCreateMemo_MissingFields(t *testing.T) {
	r, mock := newRouter(t)

	tokens := token.NewManager([]byte("test-secret"), time.Hour)
	tok, err := tokens.Issue(1)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, username, password_hash, created_at").WithArgs(int64(1)).
		WillReturnRows(userRows(1, "alice", "hash"))

	rec := doJSON(t, r, http.MethodPost, "/api/memos", tok, map[string]string{"title": "only a title"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMemo_NonNumericID(t *testing.T) {
	r, _ := newRouter(t)

	tokens := token.NewManager([]byte("test-secret"), time.Hour)
	tok, err := tokens.Issue(1)
	require.NoError(t, err)

	// the route constraint rejects non-numeric ids before any handler runs
	rec := doJSON(t, r, http.MethodGet, "/api/memos/abc", tok, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
