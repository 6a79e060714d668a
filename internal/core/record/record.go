// Package record implements the slash separated key/value line form used
// by checkpoint leaf records and section entries.
//
// A record is one line of tokens separated by '/':
//
//	chunkinfo/fid/1a/chunkid/7/offset/0/chunkVersion/1
//
// Integers are written in hexadecimal (the checkpoint body follows a
// setintbase/16 marker). Free-form names are URL path escaped so they
// never contain '/', '%' or a newline.
package record

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/chunkmeta-go/internal/core/domain"
)

// Sep separates tokens within a record.
const Sep = "/"

// TimeLayout is the ISO 8601 layout used for timestamps in checkpoints.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime formats t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a timestamp written by FormatTime.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, domain.ErrMalformed.WithDetails("timestamp " + strconv.Quote(s)).WithCause(err)
	}
	return t, nil
}

// EscapeName escapes a path component for embedding in a record.
func EscapeName(name string) string {
	return url.PathEscape(name)
}

// UnescapeName reverses EscapeName.
func UnescapeName(s string) (string, error) {
	name, err := url.PathUnescape(s)
	if err != nil {
		return "", domain.ErrMalformed.WithDetails("name " + strconv.Quote(s)).WithCause(err)
	}
	return name, nil
}

// Prefix returns the first token of a line.
func Prefix(line string) string {
	if i := strings.IndexByte(line, '/'); i >= 0 {
		return line[:i]
	}
	return line
}

// Builder assembles a record line.
type Builder struct {
	b strings.Builder
}

// NewBuilder starts a record with the given leading tokens.
func NewBuilder(tokens ...string) *Builder {
	b := &Builder{}
	for _, t := range tokens {
		b.Str(t)
	}
	return b
}

func (b *Builder) sep() {
	if b.b.Len() > 0 {
		b.b.WriteString(Sep)
	}
}

// Str appends a raw token. The token must not contain '/'.
func (b *Builder) Str(s string) *Builder {
	b.sep()
	b.b.WriteString(s)
	return b
}

// Name appends an escaped free-form token.
func (b *Builder) Name(s string) *Builder {
	return b.Str(EscapeName(s))
}

// Hex appends a signed integer in base 16.
func (b *Builder) Hex(v int64) *Builder {
	return b.Str(strconv.FormatInt(v, 16))
}

// Uhex appends an unsigned integer in base 16.
func (b *Builder) Uhex(v uint64) *Builder {
	return b.Str(strconv.FormatUint(v, 16))
}

// KV appends a key token followed by a raw value token.
func (b *Builder) KV(key, value string) *Builder {
	return b.Str(key).Str(value)
}

// KHex appends a key token followed by a hex integer.
func (b *Builder) KHex(key string, v int64) *Builder {
	return b.Str(key).Hex(v)
}

// KUhex appends a key token followed by an unsigned hex integer.
func (b *Builder) KUhex(key string, v uint64) *Builder {
	return b.Str(key).Uhex(v)
}

// Bool appends 1 or 0.
func (b *Builder) Bool(v bool) *Builder {
	if v {
		return b.Str("1")
	}
	return b.Str("0")
}

// String returns the record without a trailing newline.
func (b *Builder) String() string {
	return b.b.String()
}

// Line returns the record terminated by a newline.
func (b *Builder) Line() string {
	return b.b.String() + "\n"
}

// Fields is a cursor over the tokens of a record line. The first parse
// error is sticky; callers check Err (or Done) once after extracting all
// values.
type Fields struct {
	line   string
	tokens []string
	pos    int
	err    error
}

// Parse splits line into tokens.
func Parse(line string) *Fields {
	return &Fields{line: line, tokens: strings.Split(line, Sep)}
}

func (f *Fields) fail(format string, args ...any) {
	if f.err == nil {
		f.err = domain.ErrMalformed.WithDetails(fmt.Sprintf(format, args...) + " in " + strconv.Quote(f.line))
	}
}

// Remaining returns the number of unconsumed tokens.
func (f *Fields) Remaining() int {
	return len(f.tokens) - f.pos
}

// Next consumes and returns the next raw token.
func (f *Fields) Next() string {
	if f.err != nil {
		return ""
	}
	if f.pos >= len(f.tokens) {
		f.fail("missing token %d", f.pos)
		return ""
	}
	t := f.tokens[f.pos]
	f.pos++
	return t
}

// Expect consumes the next token and requires it to equal want.
func (f *Fields) Expect(want string) {
	if got := f.Next(); f.err == nil && got != want {
		f.fail("token %d is %q, want %q", f.pos-1, got, want)
	}
}

// Name consumes an escaped token and returns it unescaped.
func (f *Fields) Name() string {
	s := f.Next()
	if f.err != nil {
		return ""
	}
	name, err := UnescapeName(s)
	if err != nil {
		f.err = err
		return ""
	}
	return name
}

// Hex consumes a signed base 16 integer.
func (f *Fields) Hex() int64 {
	return f.HexN(64)
}

// HexN consumes a signed base 16 integer that must fit in bits bits.
func (f *Fields) HexN(bits int) int64 {
	s := f.Next()
	if f.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(s, 16, bits)
	if err != nil {
		f.fail("bad int%d %q", bits, s)
		return 0
	}
	return v
}

// Dec consumes a signed base 10 integer, the form used by checkpoint
// header lines written before setintbase/16.
func (f *Fields) Dec() int64 {
	s := f.Next()
	if f.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f.fail("bad decimal %q", s)
		return 0
	}
	return v
}

// Uhex consumes an unsigned base 16 integer.
func (f *Fields) Uhex() uint64 {
	return f.UhexN(64)
}

// UhexN consumes an unsigned base 16 integer that must fit in bits bits.
func (f *Fields) UhexN(bits int) uint64 {
	s := f.Next()
	if f.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(s, 16, bits)
	if err != nil {
		f.fail("bad uint%d %q", bits, s)
		return 0
	}
	return v
}

// Bool consumes a 1/0 token. Any other token, the empty one included, is
// malformed.
func (f *Fields) Bool() bool {
	switch s := f.Next(); s {
	case "1":
		return true
	case "0":
		return false
	default:
		f.fail("bad bool %q", s)
		return false
	}
}

// KHex consumes key/value and returns value as a signed hex integer.
func (f *Fields) KHex(key string) int64 {
	f.Expect(key)
	return f.Hex()
}

// KUhex consumes key/value and returns value as an unsigned hex integer.
func (f *Fields) KUhex(key string) uint64 {
	f.Expect(key)
	return f.Uhex()
}

// KHexN is KHex for a value that must fit in bits bits.
func (f *Fields) KHexN(key string, bits int) int64 {
	f.Expect(key)
	return f.HexN(bits)
}

// KUhexN is KUhex for a value that must fit in bits bits.
func (f *Fields) KUhexN(key string, bits int) uint64 {
	f.Expect(key)
	return f.UhexN(bits)
}

// KStr consumes key/value and returns the raw value token.
func (f *Fields) KStr(key string) string {
	f.Expect(key)
	return f.Next()
}

// Err returns the first parse error.
func (f *Fields) Err() error {
	return f.err
}

// Done reports the first parse error, or an error if tokens remain.
func (f *Fields) Done() error {
	if f.err == nil && f.pos != len(f.tokens) {
		f.fail("%d trailing tokens", len(f.tokens)-f.pos)
	}
	return f.err
}
