package backend

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Object stores keep one object per row. Keys are laid out as
//
//	<prefix>/_<scope>/segments/<id>/<segment, 10 digits>
//	<prefix>/_<scope>/index/_<name>
//
// Scope and name are path-escaped, so neither contains a '/' and no scope's
// keys can fall under another scope's prefix. The '_' marker keeps empty
// scopes and names from producing empty path elements.
//
// Zero padding keeps lexical key order equal to segment order, so a prefix
// listing doubles as a range scan.
const (
	segmentsDir = "segments"
	indexDir    = "index"
	elemMarker  = "_"
)

// ObjectLayout maps rows onto object keys below a root prefix.
type ObjectLayout struct {
	Prefix string
}

func escapeElem(s string) string {
	return elemMarker + url.PathEscape(s)
}

func unescapeElem(elem string) (string, bool) {
	rest, ok := strings.CutPrefix(elem, elemMarker)
	if !ok || strings.Contains(rest, "/") {
		return "", false
	}
	s, err := url.PathUnescape(rest)
	if err != nil {
		return "", false
	}
	return s, true
}

func (l ObjectLayout) root(scope string) string {
	if l.Prefix == "" {
		return escapeElem(scope) + "/"
	}
	return strings.TrimSuffix(l.Prefix, "/") + "/" + escapeElem(scope) + "/"
}

// SegmentsPrefix is the key prefix shared by all segments of a scope.
func (l ObjectLayout) SegmentsPrefix(scope string) string {
	return l.root(scope) + segmentsDir + "/"
}

// FilePrefix is the key prefix shared by all segments of one file.
func (l ObjectLayout) FilePrefix(scope string, id uuid.UUID) string {
	return l.SegmentsPrefix(scope) + id.String() + "/"
}

// SegmentKey is the object key of one segment row.
func (l ObjectLayout) SegmentKey(scope string, id uuid.UUID, segment uint32) string {
	return fmt.Sprintf("%s%010d", l.FilePrefix(scope, id), segment)
}

// IndexPrefix is the key prefix of the index entries of a scope.
func (l ObjectLayout) IndexPrefix(scope string) string {
	return l.root(scope) + indexDir + "/"
}

// IndexKey is the object key of one index entry.
func (l ObjectLayout) IndexKey(scope, name string) string {
	return l.IndexPrefix(scope) + escapeElem(name)
}

// ParseSegmentKey extracts the segment number from a key below FilePrefix.
func (l ObjectLayout) ParseSegmentKey(scope string, id uuid.UUID, key string) (uint32, bool) {
	rest, ok := strings.CutPrefix(key, l.FilePrefix(scope, id))
	if !ok || len(rest) != 10 {
		return 0, false
	}
	n, err := strconv.ParseUint(rest, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// ParseFileID extracts the file id from a key below SegmentsPrefix.
func (l ObjectLayout) ParseFileID(scope, key string) (uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(key, l.SegmentsPrefix(scope))
	if !ok {
		return uuid.Nil, false
	}
	idPart, _, found := strings.Cut(rest, "/")
	if !found {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// ParseIndexKey extracts the file name from a key below IndexPrefix.
// Keys that IndexKey cannot produce are rejected.
func (l ObjectLayout) ParseIndexKey(scope, key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, l.IndexPrefix(scope))
	if !ok {
		return "", false
	}
	return unescapeElem(rest)
}
