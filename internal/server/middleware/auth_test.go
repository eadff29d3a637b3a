package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/smartystreets/goconvey/convey"

	"magpie/internal/pkg/ctxutil"
	httpkg "magpie/internal/pkg/http"
	"magpie/internal/pkg/jwt"
)

const testSecret = "test-secret"

func authedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(testSecret))
	r.GET("/protected", func(c *gin.Context) {
		client, _ := ctxutil.GetClient(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"client": client})
	})
	return r
}

func getProtected(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	Convey("Auth 中间件验证 Bearer token", t, func() {
		r := authedRouter()

		Convey("缺少 Authorization 头返回 40101", func() {
			w := getProtected(r, "")
			So(w.Code, ShouldEqual, http.StatusUnauthorized)

			var resp httpkg.ErrorResponse
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Code, ShouldEqual, 40101)
		})

		Convey("非 Bearer 格式返回 40101", func() {
			w := getProtected(r, "Basic dXNlcjpwYXNz")
			So(w.Code, ShouldEqual, http.StatusUnauthorized)

			var resp httpkg.ErrorResponse
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Code, ShouldEqual, 40101)
		})

		Convey("伪造 token 返回 40102", func() {
			w := getProtected(r, "Bearer not-a-real-token")
			So(w.Code, ShouldEqual, http.StatusUnauthorized)

			var resp httpkg.ErrorResponse
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Code, ShouldEqual, 40102)
		})

		Convey("过期 token 返回 40103", func() {
			token, err := jwt.NewJWT(testSecret, -time.Hour).GenerateToken("shim")
			So(err, ShouldBeNil)

			w := getProtected(r, "Bearer "+token)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)

			var resp httpkg.ErrorResponse
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Code, ShouldEqual, 40103)
		})

		Convey("错误密钥签发的 token 被拒", func() {
			token, err := jwt.NewJWT("other-secret", time.Hour).GenerateToken("shim")
			So(err, ShouldBeNil)

			w := getProtected(r, "Bearer "+token)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("有效 token 放行并注入调用方标识", func() {
			token, err := jwt.NewJWT(testSecret, time.Hour).GenerateToken("shim")
			So(err, ShouldBeNil)

			w := getProtected(r, "Bearer "+token)
			So(w.Code, ShouldEqual, http.StatusOK)

			var resp map[string]string
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp["client"], ShouldEqual, "shim")
		})
	})
}
