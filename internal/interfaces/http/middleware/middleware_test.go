package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/civicplan/planschedule/pkg/types/common"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func privilegeRouter(header string) (*gin.Engine, *common.Privilege, *common.UserID) {
	var gotPrivilege common.Privilege
	var gotUser common.UserID

	r := gin.New()
	r.Use(NewPrivilegeMiddleware(header).Handler())
	r.GET("/probe", func(c *gin.Context) {
		gotPrivilege = ContextPrivilege(c)
		gotUser = ContextUserID(c)
		c.Status(http.StatusOK)
	})
	return r, &gotPrivilege, &gotUser
}

func TestPrivilegeMiddleware(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  common.Privilege
	}{
		{"admin", "admin", common.PrivilegeAdmin},
		{"edit", "edit", common.PrivilegeEdit},
		{"browse", "browse", common.PrivilegeBrowse},
		{"unknown degrades to none", "superuser", common.PrivilegeNone},
		{"absent is none", "", common.PrivilegeNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, gotPrivilege, _ := privilegeRouter("X-Edit-Privilege")

			req := httptest.NewRequest(http.MethodGet, "/probe", nil)
			if tc.value != "" {
				req.Header.Set("X-Edit-Privilege", tc.value)
			}
			r.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tc.want, *gotPrivilege)
		})
	}
}

func TestPrivilegeMiddleware_UserID(t *testing.T) {
	r, _, gotUser := privilegeRouter("X-Edit-Privilege")

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(UserIDHeader, "maija.m")
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, common.UserID("maija.m"), *gotUser)

	req = httptest.NewRequest(http.MethodGet, "/probe", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, common.UserID("anonymous"), *gotUser)
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(NewCORSMiddleware(CORSConfig{
		AllowedOrigins: []string{"https://planning.example.fi"},
		AllowedMethods: []string{http.MethodGet, http.MethodPut},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         "600",
	}).Handler())
	r.GET("/probe", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/probe", nil)
	req.Header.Set("Origin", "https://planning.example.fi")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://planning.example.fi", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, PUT", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORSMiddleware_RejectsUnknownOriginPreflight(t *testing.T) {
	r := gin.New()
	r.Use(NewCORSMiddleware(CORSConfig{AllowedOrigins: []string{"https://planning.example.fi"}}).Handler())
	r.GET("/probe", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/probe", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLoggingMiddleware_PropagatesRequestID(t *testing.T) {
	r := gin.New()
	r.Use(NewLoggingMiddleware(nil).Handler())
	r.GET("/probe", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}
