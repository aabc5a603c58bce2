// Package threads picks the thread that best represents an event and
// extracts the exception values that belong to it.
package threads

import model "github.com/okian/mapcheck/internal/domain/model"

// FindBestThread returns the crashed thread, falling back to the current
// thread with a stacktrace, then any thread with a stacktrace, then the first
// thread. It returns nil for an empty list.
func FindBestThread(threads []model.Thread) *model.Thread {
	if len(threads) == 0 {
		return nil
	}
	for i := range threads {
		if threads[i].Crashed {
			return &threads[i]
		}
	}
	for i := range threads {
		if threads[i].Current && threads[i].Stacktrace != nil {
			return &threads[i]
		}
	}
	for i := range threads {
		if threads[i].Stacktrace != nil {
			return &threads[i]
		}
	}
	return &threads[0]
}

// ThreadException returns the exception values raised on thread.
//
// A lone exception without its own stacktrace borrows the thread's. When the
// values carry thread ids only the matching ones are kept; without ids the
// whole chain belongs to the crashed thread. The event is never modified.
func ThreadException(event *model.Event, thread *model.Thread) *model.ExceptionData {
	if thread == nil {
		return nil
	}
	exc := event.Exception()
	if exc == nil || len(exc.Values) == 0 {
		return nil
	}

	if len(exc.Values) == 1 && exc.Values[0].Stacktrace == nil {
		value := exc.Values[0]
		value.Stacktrace = thread.Stacktrace
		out := *exc
		out.Values = []model.ExceptionValue{value}
		return &out
	}

	hasThreadIDs := false
	for _, v := range exc.Values {
		if v.ThreadID != "" {
			hasThreadIDs = true
			break
		}
	}
	if hasThreadIDs {
		out := *exc
		out.Values = nil
		for _, v := range exc.Values {
			if v.ThreadID == thread.ID {
				out.Values = append(out.Values, v)
			}
		}
		return &out
	}

	if thread.Crashed {
		return exc
	}
	return nil
}
