package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ctchen222/Four-In-A-Row/internal/api/models"
	"ctchen222/Four-In-A-Row/internal/api/service"
	"ctchen222/Four-In-A-Row/internal/api/service/mocks"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Extras  json.RawMessage `json:"extras"`
}

func newRouter(uc *UserController, hc *HistoryController) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if uc != nil {
		r.POST("/api/users/register", uc.Register)
		r.POST("/api/users/login", uc.Login)
		r.POST("/api/users/guest", uc.GuestLogin)
	}
	if hc != nil {
		r.GET("/api/players/:id/history", hc.History)
		r.GET("/api/players/:id/stats", hc.Stats)
	}
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestUserController_Register(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(svc *mocks.MockUserService)
		wantStatus int
	}{
		{
			name: "Created",
			body: `{"username":"alice","password":"password"}`,
			setup: func(svc *mocks.MockUserService) {
				svc.EXPECT().Register(gomock.Any(), &models.RegisterRequest{Username: "alice", Password: "password"}).Return(nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "Password too short",
			body:       `{"username":"alice","password":"pw"}`,
			setup:      func(*mocks.MockUserService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "Taken",
			body: `{"username":"alice","password":"password"}`,
			setup: func(svc *mocks.MockUserService) {
				svc.EXPECT().Register(gomock.Any(), gomock.Any()).Return(service.ErrUsernameTaken)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "Storage failure",
			body: `{"username":"alice","password":"password"}`,
			setup: func(svc *mocks.MockUserService) {
				svc.EXPECT().Register(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			svc := mocks.NewMockUserService(ctrl)
			tt.setup(svc)

			w, env := do(t, newRouter(NewUserController(svc), nil), http.MethodPost, "/api/users/register", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantStatus, env.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, env.Success)
		})
	}
}

func TestUserController_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockUserService(ctrl)
	svc.EXPECT().Login(gomock.Any(), &models.LoginRequest{Username: "alice", Password: "password"}).Return("signed.jwt.token", nil)
	svc.EXPECT().Login(gomock.Any(), &models.LoginRequest{Username: "alice", Password: "wrong"}).Return("", service.ErrInvalidCredentials)
	r := newRouter(NewUserController(svc), nil)

	w, env := do(t, r, http.MethodPost, "/api/users/login", `{"username":"alice","password":"password"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var login models.LoginResponse
	require.NoError(t, json.Unmarshal(env.Extras, &login))
	assert.Equal(t, "signed.jwt.token", login.Token)

	w, env = do(t, r, http.MethodPost, "/api/users/login", `{"username":"alice","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)

	w, _ = do(t, r, http.MethodPost, "/api/users/login", `{"username":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserController_GuestLogin(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockUserService(ctrl)
	svc.EXPECT().GuestLogin(gomock.Any()).Return("guest-1234", nil)

	w, env := do(t, newRouter(NewUserController(svc), nil), http.MethodPost, "/api/users/guest", "")
	require.Equal(t, http.StatusOK, w.Code)
	var guest models.GuestResponse
	require.NoError(t, json.Unmarshal(env.Extras, &guest))
	assert.Equal(t, "guest-1234", guest.PlayerID)
}

func TestHistoryController_History(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockHistoryService(ctrl)
	items := []models.GameHistoryItem{
		{GameRecord: models.GameRecord{RoomID: "r1", PlayerID: "alice", PlayerMark: "X", Winner: "X"}, Outcome: models.OutcomeWon},
	}
	svc.EXPECT().History(gomock.Any(), "alice", 5).Return(items, nil)
	svc.EXPECT().History(gomock.Any(), "alice", 0).Return(nil, errors.New("db down"))
	r := newRouter(nil, NewHistoryController(svc))

	w, env := do(t, r, http.MethodGet, "/api/players/alice/history?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		List []models.GameHistoryItem `json:"list"`
	}
	require.NoError(t, json.Unmarshal(env.Extras, &body))
	require.Len(t, body.List, 1)
	assert.Equal(t, models.OutcomeWon, body.List[0].Outcome)
	assert.Equal(t, "r1", body.List[0].RoomID)

	w, _ = do(t, r, http.MethodGet, "/api/players/alice/history?limit=1000", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodGet, "/api/players/alice/history", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHistoryController_Stats(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockHistoryService(ctrl)
	svc.EXPECT().Stats(gomock.Any(), "alice").Return(&models.PlayerStats{PlayerID: "alice", Played: 4, Won: 2, Lost: 1, Drawn: 1}, nil)

	w, env := do(t, newRouter(nil, NewHistoryController(svc)), http.MethodGet, "/api/players/alice/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats models.PlayerStats
	require.NoError(t, json.Unmarshal(env.Extras, &stats))
	assert.Equal(t, models.PlayerStats{PlayerID: "alice", Played: 4, Won: 2, Lost: 1, Drawn: 1}, stats)
}
