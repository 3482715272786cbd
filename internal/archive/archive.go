// Package archive keeps a copy of every submitted import file so an import
// can be audited or replayed later.
package archive

import (
	"context"
	"path"
	"strings"
	"time"
)

// Metadata describes an archived import file.
type Metadata struct {
	ContentType  string
	OriginalName string
	BatchID      string
	ArchivedAt   time.Time
}

// Store persists archived files under slash-separated keys.
type Store interface {
	Put(ctx context.Context, key string, content []byte, meta Metadata) error
}

// Key builds imports/YYYY/MM/DD/<batchID>/<fileName> for an import file.
// Directory parts of fileName are dropped.
func Key(batchID, fileName string, at time.Time) string {
	name := path.Base(strings.ReplaceAll(fileName, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	return path.Join("imports", at.UTC().Format("2006/01/02"), batchID, name)
}

// Nop discards everything. It is used when archiving is disabled.
type Nop struct{}

func (Nop) Put(context.Context, string, []byte, Metadata) error { return nil }
