// Package model contains the event data model passed between layers.
//
// Events arrive already normalized by the ingestion pipeline. The types here
// only decode what the diagnostics need and keep everything else as raw JSON.
// Accessors never mutate the event and return nil for absent or malformed data.
package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// EntryType tags an event entry.
type EntryType string

// Known entry types.
const (
	EntryException   EntryType = "exception"
	EntryThreads     EntryType = "threads"
	EntryDebugMeta   EntryType = "debugmeta"
	EntryStacktrace  EntryType = "stacktrace"
	EntryMessage     EntryType = "message"
	EntryBreadcrumbs EntryType = "breadcrumbs"
	EntryRequest     EntryType = "request"
)

// ImageTypeProguard tags a ProGuard/R8 mapping debug image.
const ImageTypeProguard = "proguard"

// Event is a normalized error event.
type Event struct {
	ID          string          `json:"id"`
	GroupID     string          `json:"groupID,omitempty"`
	Platform    string          `json:"platform,omitempty"`
	Entries     []Entry         `json:"entries"`
	Errors      []EventError    `json:"errors,omitempty"`
	User        json.RawMessage `json:"user,omitempty"`
	Contexts    json.RawMessage `json:"contexts,omitempty"`
	SDK         json.RawMessage `json:"sdk,omitempty"`
	DateCreated string          `json:"dateCreated,omitempty"`
}

// Entry is one tagged section of an event. Data is decoded on demand
// according to Type.
type Entry struct {
	Type EntryType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EventError is a processing error attached to an event upstream.
type EventError struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// ExceptionData is the payload of an exception entry.
type ExceptionData struct {
	Values          []ExceptionValue `json:"values"`
	ExcOmitted      []int            `json:"excOmitted,omitempty"`
	HasSystemFrames bool             `json:"hasSystemFrames,omitempty"`
}

// ExceptionValue is a single exception in a chain.
type ExceptionValue struct {
	Type       string      `json:"type"`
	Value      string      `json:"value"`
	Module     string      `json:"module,omitempty"`
	ThreadID   ID          `json:"threadId,omitempty"`
	Stacktrace *Stacktrace `json:"stacktrace,omitempty"`
}

// ThreadsData is the payload of a threads entry.
type ThreadsData struct {
	Values []Thread `json:"values"`
}

// Thread is one thread captured with the event.
type Thread struct {
	ID         ID          `json:"id"`
	Name       string      `json:"name,omitempty"`
	Crashed    bool        `json:"crashed"`
	Current    bool        `json:"current"`
	Stacktrace *Stacktrace `json:"stacktrace,omitempty"`
}

// Stacktrace holds frames, oldest first.
type Stacktrace struct {
	Frames []Frame `json:"frames"`
}

// Frame is a single stack frame. Module is empty when the wire value is null.
type Frame struct {
	Module   string `json:"module"`
	Function string `json:"function,omitempty"`
	Filename string `json:"filename,omitempty"`
	LineNo   int    `json:"lineNo,omitempty"`
	InApp    bool   `json:"inApp,omitempty"`
}

// DebugMetaData is the payload of a debugmeta entry.
type DebugMetaData struct {
	Images []DebugImage `json:"images"`
}

// DebugImage describes a binary or mapping referenced by the event.
type DebugImage struct {
	Type      string `json:"type"`
	UUID      string `json:"uuid,omitempty"`
	DebugID   string `json:"debug_id,omitempty"`
	CodeFile  string `json:"code_file,omitempty"`
	ImageAddr string `json:"image_addr,omitempty"`
}

// ID is an identifier that may be sent as a JSON string or number.
type ID string

// UnmarshalJSON accepts strings, numbers and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes numeric ids as numbers and everything else as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Entry returns the first entry of type t, or nil.
func (e *Event) Entry(t EntryType) *Entry {
	if e == nil {
		return nil
	}
	for i := range e.Entries {
		if e.Entries[i].Type == t {
			return &e.Entries[i]
		}
	}
	return nil
}

// HasError reports whether the event already carries an error of errType.
func (e *Event) HasError(errType string) bool {
	if e == nil {
		return false
	}
	for _, err := range e.Errors {
		if err.Type == errType {
			return true
		}
	}
	return false
}

// Exception decodes the exception entry, or returns nil.
func (e *Event) Exception() *ExceptionData {
	var data ExceptionData
	if !decodeEntry(e.Entry(EntryException), &data) {
		return nil
	}
	return &data
}

// Threads decodes the threads entry values, or returns nil.
func (e *Event) Threads() []Thread {
	var data ThreadsData
	if !decodeEntry(e.Entry(EntryThreads), &data) {
		return nil
	}
	return data.Values
}

// DebugImages decodes the debugmeta entry images, or returns nil.
func (e *Event) DebugImages() []DebugImage {
	var data DebugMetaData
	if !decodeEntry(e.Entry(EntryDebugMeta), &data) {
		return nil
	}
	return data.Images
}

func decodeEntry(entry *Entry, v any) bool {
	if entry == nil || len(entry.Data) == 0 {
		return false
	}
	return json.Unmarshal(entry.Data, v) == nil
}

// FramesOf returns the frames of a possibly nil stacktrace.
func FramesOf(st *Stacktrace) []Frame {
	if st == nil {
		return nil
	}
	return st.Frames
}
