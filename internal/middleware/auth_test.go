package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"appcc_edu_backend/internal/config"
	"appcc_edu_backend/internal/middleware"
	"appcc_edu_backend/internal/model"
	"appcc_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	auth := r.Group("/", middleware.AuthMiddleware(cfg))
	auth.GET("/me", func(c *gin.Context) {
		util.Success(c, util.GetUserFromContext(c).UserID)
	})
	auth.GET("/admin", middleware.RoleMiddleware(model.RoleAdmin), func(c *gin.Context) {
		util.Success(c, "ok")
	})
	return r
}

func tokenFor(t *testing.T, cfg *config.Config, role model.UserRole) string {
	t.Helper()
	u := &model.User{Role: role, CompanyID: 1}
	u.ID = 5
	token, err := util.GenerateJWT(u, cfg.JWT.Secret, time.Hour)
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "middleware-secret"}}
	r := newRouter(cfg)

	cases := []struct {
		name   string
		path   string
		header string
		code   int
	}{
		{"missing token", "/me", "", http.StatusUnauthorized},
		{"garbage token", "/me", "Bearer nope", http.StatusUnauthorized},
		{"learner token", "/me", "Bearer " + tokenFor(t, cfg, model.RoleLearner), http.StatusOK},
		{"learner on admin route", "/admin", "Bearer " + tokenFor(t, cfg, model.RoleLearner), http.StatusForbidden},
		{"admin on admin route", "/admin", "Bearer " + tokenFor(t, cfg, model.RoleAdmin), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.code, w.Code)
		})
	}
}
