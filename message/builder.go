package message

import "errors"

// Builder accumulates bytes read from a stream and cuts them into messages.
// It is not safe for concurrent use.
type Builder struct {
	buf       []byte
	maxLength int
}

func NewBuilder(maxLength int) *Builder {
	return &Builder{
		maxLength: maxLength,
	}
}

// Write appends p to the accumulation buffer. It never fails.
func (b *Builder) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Next returns the next complete message. The second return value is false when
// more bytes are needed. ErrMalformedHeader means the stream cannot be recovered.
func (b *Builder) Next() (RawMessage, bool, error) {
	msg, n, err := TryDecodeLimit(b.buf, b.maxLength)
	if err != nil {
		if errors.Is(err, ErrIncomplete) {
			return RawMessage{}, false, nil
		}

		return RawMessage{}, false, err
	}

	rest := copy(b.buf, b.buf[n:])
	b.buf = b.buf[:rest]

	return msg, true, nil
}

// Len returns the number of buffered bytes not yet consumed by Next.
func (b *Builder) Len() int {
	return len(b.buf)
}

func (b *Builder) Reset() {
	b.buf = b.buf[:0]
}
