package tile

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"tilesync.ai/internal/nbt"
)

const (
	SignLines         = 4
	SignMaxLineLength = 100

	TagText = "Text"
)

var ErrLineIndex = errors.New("tile: sign line index out of range")

// SignChangeFunc may veto or rewrite a client edit. Returning false rejects it.
type SignChangeFunc func(s *Sign, o Observer, lines [SignLines]string) ([SignLines]string, bool)

// Sign holds four lines of text. Edits are accepted only from the player that
// placed it.
type Sign struct {
	*Spawnable

	lines    [SignLines]string
	creator  string
	onChange SignChangeFunc
}

func NewSign(id int64, pos Pos, opts ...Option) *Sign {
	s := &Sign{}
	s.Spawnable = New(id, pos, s, opts...)
	return s
}

func (*Sign) SaveID() string { return KindSign }

func (s *Sign) AppendSpawnData(c *nbt.Compound) {
	c.SetString(TagText, strings.Join(s.lines[:], "\n"))
}

func (s *Sign) Text() [SignLines]string { return s.lines }

// SetText replaces all lines; missing lines become empty, extra lines are ignored.
func (s *Sign) SetText(lines ...string) {
	var next [SignLines]string
	copy(next[:], lines)
	s.setLines(next)
}

func (s *Sign) Line(i int) (string, error) {
	if i < 0 || i >= SignLines {
		return "", ErrLineIndex
	}
	return s.lines[i], nil
}

func (s *Sign) SetLine(i int, line string) error {
	if i < 0 || i >= SignLines {
		return ErrLineIndex
	}
	next := s.lines
	next[i] = line
	s.setLines(next)
	return nil
}

func (s *Sign) setLines(next [SignLines]string) {
	if next == s.lines {
		return
	}
	s.Mutate(func() { s.lines = next })
}

// Creator is the observer id allowed to edit the sign.
func (s *Sign) Creator() string            { return s.creator }
func (s *Sign) SetCreator(observer string) { s.creator = observer }

func (s *Sign) OnSignChange(fn SignChangeFunc) { s.onChange = fn }

func (s *Sign) UpdateFromClient(c *nbt.Compound, o Observer) bool {
	if id, _ := c.GetString(TagID); id != KindSign {
		return false
	}
	text, ok := c.GetString(TagText)
	if !ok {
		return false
	}
	parts := strings.Split(text, "\n")
	if len(parts) > SignLines {
		return false
	}
	var lines [SignLines]string
	for i, p := range parts {
		p = CleanFormatting(p)
		if utf8.RuneCountInString(p) > SignMaxLineLength {
			return false
		}
		lines[i] = p
	}
	if s.creator == "" || s.creator != o.ObserverID() {
		return false
	}
	if s.onChange != nil {
		if lines, ok = s.onChange(s, o, lines); !ok {
			return false
		}
	}
	// Invalidate even when the text is unchanged: the client may hold a
	// version with formatting that was stripped here.
	s.Mutate(func() { s.lines = lines })
	return true
}

// CleanFormatting strips '§' colour/format codes and control characters.
func CleanFormatting(s string) string {
	if !strings.ContainsFunc(s, func(r rune) bool { return r == '§' || unicode.IsControl(r) }) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	skip := false
	for _, r := range s {
		switch {
		case skip:
			skip = false
		case r == '§':
			skip = true
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
