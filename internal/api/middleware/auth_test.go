package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Nari0122/Mathlearningdashboard-sub000/config"
	"github.com/Nari0122/Mathlearningdashboard-sub000/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupAuthTestRouter(t *testing.T) (*gin.Engine, *jwt.Manager) {
	t.Helper()

	jwtMgr := jwt.NewManager(&config.AuthConfig{
		JWTSecret:      "test-secret-key-for-unit-testing-2026",
		AccessTokenTTL: 30 * time.Minute,
	})

	r := gin.New()
	authorized := r.Group("/api/v1")
	authorized.Use(JWTAuth(jwtMgr, nil))
	authorized.Use(RoleAuth("admin", "teacher"))
	authorized.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	return r, jwtMgr
}

func doAuthRequest(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth_MissingHeader(t *testing.T) {
	r, _ := setupAuthTestRouter(t)

	w := doAuthRequest(r, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("期望 401，实际 %d", w.Code)
	}
}

func TestJWTAuth_InvalidToken(t *testing.T) {
	r, _ := setupAuthTestRouter(t)

	w := doAuthRequest(r, "not-a-valid-token")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("期望 401，实际 %d", w.Code)
	}
}

func TestRoleAuth_AllowedRoles(t *testing.T) {
	r, jwtMgr := setupAuthTestRouter(t)

	for _, role := range []string{"admin", "teacher"} {
		token, err := jwtMgr.GenerateAccessToken("op-1", role)
		if err != nil {
			t.Fatalf("生成 Token 失败: %v", err)
		}

		w := doAuthRequest(r, token)
		if w.Code != http.StatusOK {
			t.Errorf("角色 %s 期望 200，实际 %d: %s", role, w.Code, w.Body.String())
		}
	}
}

func TestRoleAuth_DisallowedRole(t *testing.T) {
	r, jwtMgr := setupAuthTestRouter(t)

	token, err := jwtMgr.GenerateAccessToken("stu-1", "student")
	if err != nil {
		t.Fatalf("生成 Token 失败: %v", err)
	}

	w := doAuthRequest(r, token)
	if w.Code != http.StatusForbidden {
		t.Errorf("期望 403，实际 %d: %s", w.Code, w.Body.String())
	}
}
