package fetch

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// TagParam is the sub-query parameter that carries the caller tag through the backend.
const TagParam = "__suggest_caller"

var errMalformedTag = errors.New("malformed caller tag")

// Tag attributes a sub-query, and the response it produces, to its origin source.
// Seq is the position of the sub-query among those declared by the origin.
type Tag struct {
	Origin string
	Seq    int
}

// String encodes the tag as "<seq>:<origin>".
func (t Tag) String() string {
	return strconv.Itoa(t.Seq) + ":" + t.Origin
}

// ParseTag decodes a tag produced by Tag.String.
func ParseTag(raw string) (Tag, error) {
	seqStr, origin, ok := strings.Cut(raw, ":")
	if !ok || origin == "" {
		return Tag{}, fmt.Errorf("%w: %q", errMalformedTag, raw)
	}
	seq, err := strconv.Atoi(seqStr)
	if err != nil || seq < 0 {
		return Tag{}, fmt.Errorf("%w: %q", errMalformedTag, raw)
	}
	return Tag{Origin: origin, Seq: seq}, nil
}
