package openapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v3"
)

func TestOpenAPIHandler(t *testing.T) {
	convey.Convey("Given a registered OpenAPI handler", t, func() {
		mux := http.NewServeMux()
		Register(context.Background(), mux)

		convey.Convey("Then it serves the embedded document", func() {
			req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "application/yaml; charset=utf-8")
			convey.So(w.Body.Bytes(), convey.ShouldResemble, Document)
		})

		convey.Convey("Then a nil mux panics", func() {
			convey.So(func() { Register(context.Background(), nil) }, convey.ShouldPanic)
		})
	})
}

func TestDocumentCoversRoutes(t *testing.T) {
	convey.Convey("Given the embedded document", t, func() {
		var doc struct {
			OpenAPI string                    `yaml:"openapi"`
			Paths   map[string]map[string]any `yaml:"paths"`
		}
		convey.So(yaml.Unmarshal(Document, &doc), convey.ShouldBeNil)

		convey.Convey("Then every served route is described with its method", func() {
			convey.So(doc.OpenAPI, convey.ShouldStartWith, "3.")
			routes := map[string]string{
				"/recommendations":         "post",
				"/optimize":                "post",
				"/allocations":             "post",
				"/allocations/remove":      "post",
				"/allocations/confirm":     "post",
				"/projects/{id}/complete":  "post",
				"/projects/{id}/status":    "post",
				"/employees/{id}/capacity": "get",
				"/stats":                   "get",
				"/healthz":                 "get",
				"/metrics":                 "get",
			}
			convey.So(doc.Paths, convey.ShouldHaveLength, len(routes))
			for path, method := range routes {
				convey.So(doc.Paths, convey.ShouldContainKey, path)
				convey.So(doc.Paths[path], convey.ShouldContainKey, method)
			}
		})
	})
}
