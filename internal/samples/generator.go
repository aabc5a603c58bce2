package samples

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/okian/mapcheck/internal/domain/diagnostic"
	model "github.com/okian/mapcheck/internal/domain/model"
)

var (
	minifiedModules = []string{"a.a.a", "b.c.Q", "ab.cd.Foo", "abc.d.e", "x"}
	readableModules = []string{
		"com.example.app.MainActivity",
		"io.sentry.samples.android.MyApplication",
		"org.example.payments.CheckoutFragment",
	}
)

// Generate creates n samples cycling through Kinds. Ids are random, shapes
// are deterministic by index.
func Generate(n int) []Sample {
	out := make([]Sample, 0, max(n, 0))
	for i := 0; i < n; i++ {
		out = append(out, newSample(i, Kinds[i%len(Kinds)]))
	}
	return out
}

func newSample(i int, kind Kind) Sample {
	s := Sample{
		Kind: kind,
		Event: model.Event{
			ID:       uuid.NewString(),
			GroupID:  strconv.Itoa(1000 + i%7),
			Platform: "java",
		},
		Expect: []string{},
	}

	threadID := model.ID(strconv.Itoa(1 + i%3))
	module := readableModules[i%len(readableModules)]
	if kind == KindMinified {
		module = minifiedModules[i%len(minifiedModules)]
	}
	s.Event.Entries = append(s.Event.Entries,
		mustEntry(model.EntryException, model.ExceptionData{Values: []model.ExceptionValue{{
			Type:     "java.lang.IllegalStateException",
			Value:    fmt.Sprintf("sample failure %d", i),
			ThreadID: threadID,
			Stacktrace: &model.Stacktrace{Frames: []model.Frame{
				{Module: "android.os.Looper", Function: "loop"},
				{Module: module, Function: "onCreate", InApp: true},
			}},
		}}}),
		mustEntry(model.EntryThreads, model.ThreadsData{Values: []model.Thread{
			{ID: threadID, Name: "main", Crashed: true, Current: true},
		}}),
	)

	switch kind {
	case KindMapped, KindUnmapped, KindReported:
		s.MappingUUID = uuid.NewString()
		s.Event.Entries = append(s.Event.Entries, mustEntry(model.EntryDebugMeta, model.DebugMetaData{
			Images: []model.DebugImage{{Type: model.ImageTypeProguard, UUID: s.MappingUUID}},
		}))
	}

	switch kind {
	case KindUnmapped:
		s.Expect = []string{string(diagnostic.KindMissingMapping)}
	case KindMinified:
		s.Expect = []string{string(diagnostic.KindIncorrectlyConfiguredPlugin)}
	case KindReported:
		s.Event.Errors = []model.EventError{{
			Type:    string(diagnostic.KindMissingMapping),
			Message: "A proguard mapping file was missing.",
			Data:    map[string]any{"mapping_uuid": s.MappingUUID},
		}}
	}
	return s
}

// NeedsMapping reports whether the sample's mapping must be uploaded first.
func (s *Sample) NeedsMapping() bool {
	return s.Kind == KindMapped
}

func mustEntry(t model.EntryType, v any) model.Entry {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("samples: marshal %s entry: %v", t, err))
	}
	return model.Entry{Type: t, Data: raw}
}
