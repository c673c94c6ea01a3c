package net

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/mosaicnetworks/gitmesh/src/common"
)

const (
	bufSize = 64 * 1024

	// maxFrameSize bounds the size of one JSON object.
	maxFrameSize = 64 * 1024 * 1024
)

// Framer splits a byte stream into Messages by counting braces outside of
// string literals.
//
// Between objects, whitespace is skipped and the bare token getOperations is
// recognised as a command. Malformed objects are reported as Protocol errors;
// the framer is ready for the next object after returning one.
type Framer struct {
	r *bufio.Reader

	buf      bytes.Buffer
	depth    int
	inString bool
	escaped  bool

	token []byte
}

// NewFramer ...
func NewFramer(r io.Reader) *Framer {
	return &Framer{
		r: bufio.NewReaderSize(r, bufSize),
	}
}

// Next blocks until a complete message is available. Errors other than
// Protocol errors come from the underlying reader.
func (f *Framer) Next() (Message, error) {
	for {
		b, err := f.r.ReadByte()
		if err != nil {
			return nil, err
		}

		if f.depth == 0 {
			msg, err := f.between(b)
			if msg != nil || err != nil {
				return msg, err
			}
			continue
		}

		f.buf.WriteByte(b)

		if f.inString {
			switch {
			case f.escaped:
				f.escaped = false
			case b == '\\':
				f.escaped = true
			case b == '"':
				f.inString = false
			}
			continue
		}

		switch b {
		case '"':
			f.inString = true
		case '{':
			f.depth++
		case '}':
			f.depth--
		}

		if f.depth == 0 {
			return f.flush()
		}

		if f.buf.Len() > maxFrameSize {
			f.reset()
			return nil, protocolErr(fmt.Sprintf("frame exceeds %d bytes", maxFrameSize))
		}
	}
}

// between handles one byte read outside of any object.
func (f *Framer) between(b byte) (Message, error) {
	switch b {
	case '{':
		f.token = f.token[:0]
		f.buf.Reset()
		f.buf.WriteByte(b)
		f.depth = 1
		return nil, nil
	case ' ', '\t', '\r', '\n':
		return nil, nil
	}

	f.token = append(f.token, b)

	if !bytes.HasPrefix([]byte(CommandGetOperations), f.token) {
		token := string(f.token)
		f.token = f.token[:0]
		return nil, protocolErr(fmt.Sprintf("unexpected data %q", token))
	}

	if len(f.token) == len(CommandGetOperations) {
		f.token = f.token[:0]
		return &CommandMessage{Name: CommandGetOperations}, nil
	}

	return nil, nil
}

func (f *Framer) flush() (Message, error) {
	data := f.buf.Bytes()
	msg, err := DecodeMessage(data)
	f.reset()
	if err != nil {
		return nil, protocolErr(err.Error())
	}
	return msg, nil
}

func (f *Framer) reset() {
	f.buf.Reset()
	f.depth = 0
	f.inString = false
	f.escaped = false
}

func protocolErr(msg string) error {
	return common.NewSyncErr("Framer", common.Protocol, msg)
}
