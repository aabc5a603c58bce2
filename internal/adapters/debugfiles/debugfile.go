// Package debugfiles stores debug information files (ProGuard mappings,
// dSYMs, breakpad symbols, ...) per project and answers lookups against them.
package debugfiles

import (
	"context"
	"time"
)

// DebugFile is one registered debug information file.
type DebugFile struct {
	ID           string    `json:"id"`
	ProjectOwner string    `json:"-"`
	Project      string    `json:"-"`
	UUID         string    `json:"uuid"`
	CodeID       string    `json:"codeId,omitempty"`
	ObjectName   string    `json:"objectName"`
	SymbolType   string    `json:"symbolType"`
	CPUName      string    `json:"cpuName,omitempty"`
	Size         int64     `json:"size"`
	SHA1         string    `json:"sha1,omitempty"`
	DateCreated  time.Time `json:"dateCreated"`
}

// ProjectRef names the project a file belongs to.
type ProjectRef struct {
	Owner   string
	Project string
}

// Query selects files of one project. Text matches the debug id or code id
// exactly, or an object name prefix. Empty Text lists every file. A nil
// Formats means any format.
type Query struct {
	ProjectRef
	Text    string
	Formats []string
	Limit   int
}

// DefaultLimit caps Find when Query.Limit is not set.
const DefaultLimit = 100

// Store persists debug files.
type Store interface {
	Create(ctx context.Context, f DebugFile) (DebugFile, error)
	Find(ctx context.Context, q Query) ([]DebugFile, error)
	Delete(ctx context.Context, ref ProjectRef, id string) error
	Count(ctx context.Context) (int64, error)
	Close() error
}

// KnownFormats are the accepted symbol types.
var KnownFormats = []string{"proguard", "breakpad", "macho", "elf", "pe", "pdb", "sourcebundle", "wasm", "portablepdb", "bcsymbolmap", "uuidmap", "il2cpp"}
