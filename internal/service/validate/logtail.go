package validate

import "strings"

// logTail keeps the last n lines of a stream. Build output can run to
// thousands of lines; only the tail is worth persisting on failure.
type logTail struct {
	limit int
	lines []string
}

func newLogTail(limit int) *logTail {
	return &logTail{limit: limit}
}

func (t *logTail) Add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.limit {
		t.lines = t.lines[len(t.lines)-t.limit:]
	}
}

func (t *logTail) String() string {
	return strings.Join(t.lines, "\n")
}
