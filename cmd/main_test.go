package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	app "github.com/okian/mapcheck/internal/app"
	"github.com/okian/mapcheck/pkg/logger"
)

const minifiedEventJSON = `{
  "id": "cli-1",
  "platform": "java",
  "entries": [
    {"type": "exception", "data": {"values": [
      {"type": "NullPointerException", "stacktrace": {"frames": [{"module": "a.b.C"}]}}
    ]}}
  ]
}`

func execute(args []string, stdin string) (string, error) {
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	convey.Convey("Given the version command", t, func() {
		convey.Convey("Then it prints a one line summary", func() {
			out, err := execute([]string{"version"}, "")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldStartWith, "mapcheck dev (")
		})

		convey.Convey("Then --json prints structured info", func() {
			out, err := execute([]string{"version", "--json"}, "")
			convey.So(err, convey.ShouldBeNil)
			var info versionInfo
			convey.So(json.Unmarshal([]byte(out), &info), convey.ShouldBeNil)
			convey.So(info.Version, convey.ShouldEqual, "dev")
		})
	})
}

func TestCheckCommand(t *testing.T) {
	convey.Convey("Given a temporary registry database", t, func() {
		dir := t.TempDir()
		_ = os.Setenv("MAPCHECK_DEBUG_FILES__DSN", filepath.Join(dir, "cli.db"))
		defer func() { _ = os.Unsetenv("MAPCHECK_DEBUG_FILES__DSN") }()

		convey.Convey("When an event with minified frames is checked from stdin", func() {
			out, err := execute([]string{"check", "--org", "acme", "--project", "android", "-"}, minifiedEventJSON)

			convey.Convey("Then the plugin diagnostic is printed", func() {
				convey.So(err, convey.ShouldBeNil)
				var res checkOutput
				convey.So(json.Unmarshal([]byte(out), &res), convey.ShouldBeNil)
				convey.So(res.EventID, convey.ShouldEqual, "cli-1")
				convey.So(len(res.Diagnostics), convey.ShouldEqual, 1)
				convey.So(res.Diagnostics[0].Type, convey.ShouldEqual, "proguard_incorrectly_configured_plugin")
				convey.So(res.Banner.HasErrors, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the event file is read from disk", func() {
			path := filepath.Join(dir, "event.json")
			convey.So(os.WriteFile(path, []byte(minifiedEventJSON), 0o600), convey.ShouldBeNil)
			_, err := execute([]string{"check", "--org", "acme", "--project", "android", path}, "")
			convey.So(err, convey.ShouldBeNil)
		})

		convey.Convey("When required flags are missing", func() {
			_, err := execute([]string{"check", "-"}, minifiedEventJSON)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the event is not JSON", func() {
			_, err := execute([]string{"check", "--org", "a", "--project", "b", "-"}, "nope")
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "decoding event")
		})
	})
}

func TestRouter(t *testing.T) {
	convey.Convey("Given the server router over a started service", t, func() {
		ctx := context.Background()
		svc := app.New(
			app.WithLogger(logger.Nop()),
			app.WithDatabase("sqlite", filepath.Join(t.TempDir(), "router.db")),
			app.WithWorkerCount(1),
		)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()
		h := newRouter(ctx, svc)

		for _, path := range []string{"/openapi.yaml", "/api-docs", "/stats", "/healthz"} {
			req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			convey.Convey("Then "+path+" is served", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			})
		}

		convey.Convey("Then a registered mapping is found through the API", func() {
			body := `{"uuid":"abc-1","objectName":"proguard-mapping","symbolType":"proguard"}`
			req := httptest.NewRequest(http.MethodPost, "/api/0/projects/acme/android/files/dsyms/", strings.NewReader(body))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			convey.So(w.Code, convey.ShouldEqual, http.StatusCreated)

			req = httptest.NewRequest(http.MethodGet, "/api/0/projects/acme/android/files/dsyms/?query=abc-1", http.NoBody)
			w = httptest.NewRecorder()
			h.ServeHTTP(w, req)
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, `"uuid":"abc-1"`)
		})

		convey.Convey("Then updating system metrics does not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})
	})
}
