package document

import (
	"bytes"
	"errors"
)

var (
	ErrDocumentTooLarge = errors.New("document_too_large")
	ErrSinkFinished     = errors.New("sink_finished")
)

// Sink accumulates generated document chunks in memory up to a limit.
// It has a single writer; Finish hands the bytes over exactly once.
type Sink struct {
	buf      bytes.Buffer
	limit    int
	err      error
	finished bool
}

// NewSink returns a sink that rejects writes past limit bytes.
// A limit of zero or less means unbounded.
func NewSink(limit int) *Sink {
	return &Sink{limit: limit}
}

func (s *Sink) Write(chunk []byte) (int, error) {
	if s.finished {
		return 0, ErrSinkFinished
	}
	if s.err != nil {
		return 0, s.err
	}
	if s.limit > 0 && s.buf.Len()+len(chunk) > s.limit {
		s.err = ErrDocumentTooLarge
		return 0, s.err
	}
	return s.buf.Write(chunk)
}

// Len reports the number of bytes accepted so far.
func (s *Sink) Len() int {
	return s.buf.Len()
}

// Finish closes the sink and returns the accumulated bytes. After a failed
// write it returns that error and discards the partial output.
func (s *Sink) Finish() ([]byte, error) {
	if s.finished {
		return nil, ErrSinkFinished
	}
	s.finished = true
	if s.err != nil {
		s.buf.Reset()
		return nil, s.err
	}
	out := make([]byte, s.buf.Len())
	copy(out, s.buf.Bytes())
	s.buf.Reset()
	return out, nil
}
