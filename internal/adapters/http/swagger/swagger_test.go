package swagger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func serve(mux *http.ServeMux, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(method, path, http.NoBody))
	return w
}

func TestRegister(t *testing.T) {
	convey.Convey("Given a mux with the documentation routes", t, func() {
		mux := http.NewServeMux()
		Register(context.Background(), mux)

		convey.Convey("Then the OpenAPI document is served as yaml", func() {
			w := serve(mux, http.MethodGet, SpecPath)
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "application/yaml; charset=utf-8")
			convey.So(w.Body.Bytes(), convey.ShouldResemble, OpenAPI)
		})

		convey.Convey("Then the docs page loads ReDoc against the document", func() {
			w := serve(mux, http.MethodGet, DocsPath)
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "text/html; charset=utf-8")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "Ladder API Docs")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "Redoc.init('/openapi.yaml'")
		})

		convey.Convey("Then HEAD returns headers without a body", func() {
			w := serve(mux, http.MethodHead, SpecPath)
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Cache-Control"), convey.ShouldNotBeEmpty)
			convey.So(w.Body.Len(), convey.ShouldEqual, 0)
		})

		convey.Convey("Then other methods are rejected", func() {
			w := serve(mux, http.MethodPost, DocsPath)
			convey.So(w.Code, convey.ShouldEqual, http.StatusMethodNotAllowed)
			convey.So(w.Header().Get("Allow"), convey.ShouldEqual, "GET, HEAD")
		})
	})

	convey.Convey("Given a nil mux", t, func() {
		convey.So(func() { Register(context.Background(), nil) }, convey.ShouldPanic)
	})
}

func TestOpenAPIDocument(t *testing.T) {
	convey.Convey("Given the embedded document", t, func() {
		doc := string(OpenAPI)

		convey.Convey("Then every served route is described", func() {
			for _, path := range []string{"/scores:", "/leaderboard:", "/leaderboard/player:", "/stats:", "/healthz:"} {
				convey.So(doc, convey.ShouldContainSubstring, path)
			}
		})

		convey.Convey("Then bearer auth is declared", func() {
			convey.So(doc, convey.ShouldContainSubstring, "bearerFormat: JWT")
		})
	})
}
