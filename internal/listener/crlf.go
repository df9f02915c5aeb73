package listener

import (
	"io"
)

// lineEndings normalises terminal line endings. Reads turn "\r\n" and a bare
// "\r" into "\n"; writes turn a bare "\n" into "\r\n".
type lineEndings struct {
	rw io.ReadWriter

	// lastCR is set when the previous read ended in '\r', so a '\n' opening
	// the next read belongs to the same line break.
	lastCR bool
	// wroteCR is the same for writes.
	wroteCR bool
}

func newLineEndings(rw io.ReadWriter) *lineEndings {
	return &lineEndings{rw: rw}
}

func (l *lineEndings) Read(p []byte) (int, error) {
	for {
		n, err := l.rw.Read(p)
		out := 0
		for _, b := range p[:n] {
			switch {
			case b == '\n' && l.lastCR:
				l.lastCR = false
				continue
			case b == '\r':
				l.lastCR = true
				b = '\n'
			default:
				l.lastCR = false
			}
			p[out] = b
			out++
		}
		// A read that only completed a line break yields nothing; read again
		// rather than report a zero-length read.
		if out > 0 || n == 0 || err != nil {
			return out, err
		}
	}
}

func (l *lineEndings) Write(p []byte) (int, error) {
	buf := make([]byte, 0, len(p)+len(p)/8)
	for _, b := range p {
		if b == '\n' && !l.wroteCR {
			buf = append(buf, '\r')
		}
		l.wroteCR = b == '\r'
		buf = append(buf, b)
	}
	if _, err := l.rw.Write(buf); err != nil {
		return 0, err
	}
	return len(p), nil
}
