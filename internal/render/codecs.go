package render

import (
	"errors"
	"fmt"
	"mime/multipart"
	"regexp"
	"strings"
	"time"
)

var hhmmPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// ErrInvalidTime is returned when a time input is not HH:mm.
var ErrInvalidTime = errors.New("time must be HH:mm")

// ReadTime normalizes a stored time to HH:mm. Stored values are either
// epoch milliseconds or an HH:mm(:ss) string. Unreadable values yield "".
func ReadTime(v any, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if len(s) >= 5 && hhmmPattern.MatchString(s[:5]) && (len(s) == 5 || s[5] == ':') {
			return s[:5]
		}
		if !numericPattern.MatchString(s) {
			return ""
		}
	}
	ms, ok := toFloat(v)
	if !ok {
		return ""
	}
	return time.UnixMilli(int64(ms)).In(loc).Format("15:04")
}

// ParseTime validates a time input. Only HH:mm is accepted.
func ParseTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !hhmmPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return s, nil
}

// ReadDate normalizes a stored date to the YYYY-MM-DD value of a date
// input. Unparsable values yield "".
func ReadDate(v any) string {
	t, ok := toTime(v)
	if !ok {
		return ""
	}
	return t.Format("2006-01-02")
}

// ParseDate validates a date input and returns its canonical form.
func ParseDate(s string) (string, error) {
	t, ok := toTime(strings.TrimSpace(s))
	if !ok {
		return "", fmt.Errorf("invalid date %q", s)
	}
	return t.Format("2006-01-02"), nil
}

// TagList is the editable value of a list field. It is stored as a
// comma-joined string and never holds duplicates or empty tags.
type TagList struct {
	tags []string
}

// ParseTagList reads a comma-joined string.
func ParseTagList(s string) *TagList {
	l := &TagList{}
	for _, t := range strings.Split(s, ",") {
		l.Add(t)
	}
	return l
}

// TagListOf reads a stored list value: a comma-joined string or a slice.
func TagListOf(v any) *TagList {
	l := &TagList{}
	for _, t := range listTags(v) {
		l.Add(t)
	}
	return l
}

// Add appends tag unless it is empty or already present.
func (l *TagList) Add(tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" || l.Contains(tag) {
		return false
	}
	l.tags = append(l.tags, tag)
	return true
}

// Remove deletes tag, reporting whether it was present.
func (l *TagList) Remove(tag string) bool {
	for i, t := range l.tags {
		if t == tag {
			l.tags = append(l.tags[:i], l.tags[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether tag is in the list.
func (l *TagList) Contains(tag string) bool {
	for _, t := range l.tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Tags returns a copy of the tags in insertion order.
func (l *TagList) Tags() []string {
	return append([]string(nil), l.tags...)
}

func (l *TagList) String() string {
	return strings.Join(l.tags, ",")
}

// FileValue is the value of a file or image field: either an upload that
// has not been persisted yet or the URL of a stored file.
type FileValue struct {
	Upload *multipart.FileHeader
	URL    string
}

// FileValueOf reads a stored file value.
func FileValueOf(v any) FileValue {
	switch x := v.(type) {
	case FileValue:
		return x
	case *multipart.FileHeader:
		return FileValue{Upload: x}
	case string:
		return FileValue{URL: x}
	}
	return FileValue{}
}

// Pending reports whether the value holds an upload not yet persisted.
func (f FileValue) Pending() bool { return f.Upload != nil }

// Empty reports whether there is neither an upload nor a URL.
func (f FileValue) Empty() bool { return f.Upload == nil && f.URL == "" }

// Name returns the upload's file name or the last segment of the URL.
func (f FileValue) Name() string {
	if f.Upload != nil {
		return f.Upload.Filename
	}
	if i := strings.LastIndex(f.URL, "/"); i >= 0 {
		return f.URL[i+1:]
	}
	return f.URL
}
