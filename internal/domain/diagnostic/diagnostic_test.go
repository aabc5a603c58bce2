package diagnostic

import (
	"encoding/json"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDiagnostics(t *testing.T) {
	Convey("Given the diagnostic variants", t, func() {
		missing := MissingMapping{UUID: "abc-123", Cause: CauseLookupFailed}
		plugin := IncorrectlyConfiguredPlugin{}

		Convey("When projecting a missing mapping", func() {
			e := ToEventError(missing)

			Convey("Then the uuid is carried in data and the cause is not", func() {
				So(e.Type, ShouldEqual, "proguard_missing_mapping")
				So(e.Data["mapping_uuid"], ShouldEqual, "abc-123")
				So(len(e.Data), ShouldEqual, 1)
			})
		})

		Convey("When projecting a plugin misconfiguration", func() {
			e := ToEventError(plugin)

			Convey("Then the message links the setup guide", func() {
				So(e.Type, ShouldEqual, "proguard_incorrectly_configured_plugin")
				So(e.Message, ShouldContainSubstring, "Sentry Gradle Plugin")
				So(e.Message, ShouldContainSubstring, DefaultDocsURL)
				So(e.Data, ShouldBeNil)
			})

			Convey("Then a custom docs url replaces the default", func() {
				e := ToEventError(IncorrectlyConfiguredPlugin{DocsURL: "https://example.test/gradle"})
				So(e.Message, ShouldContainSubstring, "https://example.test/gradle")
			})
		})

		Convey("When serializing a list", func() {
			out, err := json.Marshal(ToEventErrors([]Diagnostic{missing}))

			Convey("Then it uses the shared error shape", func() {
				So(err, ShouldBeNil)
				So(string(out), ShouldEqual, `[{"type":"proguard_missing_mapping","message":"A proguard mapping file was missing.","data":{"mapping_uuid":"abc-123"}}]`)
			})

			Convey("Then an empty list encodes as an array", func() {
				out, _ := json.Marshal(ToEventErrors(nil))
				So(string(out), ShouldEqual, "[]")
			})
		})

		Convey("When listing kinds", func() {
			So(Kinds([]Diagnostic{plugin, missing}), ShouldResemble, []Kind{KindIncorrectlyConfiguredPlugin, KindMissingMapping})
		})
	})
}
