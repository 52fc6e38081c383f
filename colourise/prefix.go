package colourise

import (
	"bytes"
	"io"
	"sync"
)

// PrefixWriter writes every line it is given to w, starting with a label.
type PrefixWriter struct {
	mu      sync.Mutex
	w       io.Writer
	prefix  []byte
	midLine bool
}

// NewPrefixWriter labels lines with "[label] ", coloured if colour is set.
func NewPrefixWriter(w io.Writer, label string, colour bool) *PrefixWriter {
	p := "[" + label + "]"
	if colour {
		p = ApplyColour(p)
	}
	return &PrefixWriter{
		w:      w,
		prefix: []byte(p + " "),
	}
}

// Write always reports the full length of b as written, unless w fails.
func (p *PrefixWriter) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	buf := &bytes.Buffer{}
	rest := b
	for len(rest) > 0 {
		if !p.midLine {
			buf.Write(p.prefix)
		}
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			buf.Write(rest)
			p.midLine = true
			break
		}
		buf.Write(rest[:i+1])
		rest = rest[i+1:]
		p.midLine = false
	}

	if _, err := p.w.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(b), nil
}
