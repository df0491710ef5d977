// Package agent is the native-messaging host that runs the focus engine for a browser
// extension. The extension forwards page signals; the host scores them, reports to the
// server and sends warnings back for the page to render.
package agent

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// MaxMessageSize caps a single framed message in either direction. Browsers refuse
// host-to-extension messages above 1 MiB.
const MaxMessageSize = 1 << 20

// Codec errors. ErrBadMessage leaves the stream usable; the next Read continues with the
// following message.
var (
	ErrMessageTooLarge = errors.New("native message too large")
	ErrBadMessage      = errors.New("malformed message")
)

// Codec reads and writes messages on the host's stdio.
type Codec interface {
	Read() (Message, error)
	Write(Message) error
}

// NativeCodec speaks the browser native-messaging framing: a 32-bit little-endian length
// followed by that many bytes of UTF-8 JSON.
type NativeCodec struct {
	r  io.Reader
	mu sync.Mutex
	w  io.Writer
}

// NewNativeCodec creates a codec over r and w (normally stdin and stdout).
func NewNativeCodec(r io.Reader, w io.Writer) *NativeCodec {
	return &NativeCodec{r: r, w: w}
}

// Read returns io.EOF when the browser closed the pipe between messages.
func (c *NativeCodec) Read() (Message, error) {
	var n uint32
	if err := binary.Read(c.r, binary.LittleEndian, &n); err != nil {
		return Message{}, err
	}
	if n > MaxMessageSize {
		return Message{}, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(c.r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Message{}, err
	}
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	return m, nil
}

// Write frames m. Safe for concurrent use.
func (c *NativeCodec) Write(m Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if len(body) > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(body))
	}
	var buf bytes.Buffer
	buf.Grow(4 + len(body))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(body)))
	buf.Write(body)

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.w.Write(buf.Bytes())
	return err
}

// LineCodec reads and writes one JSON object per line, for driving the host by hand.
type LineCodec struct {
	sc  *bufio.Scanner
	mu  sync.Mutex
	enc *json.Encoder
}

// NewLineCodec creates a JSON-lines codec.
func NewLineCodec(r io.Reader, w io.Writer) *LineCodec {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxMessageSize)
	return &LineCodec{sc: sc, enc: json.NewEncoder(w)}
}

// Read skips blank lines and returns io.EOF at end of input.
func (c *LineCodec) Read() (Message, error) {
	for c.sc.Scan() {
		line := bytes.TrimSpace(c.sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var m Message
		if err := json.Unmarshal(line, &m); err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrBadMessage, err)
		}
		return m, nil
	}
	if err := c.sc.Err(); err != nil {
		return Message{}, err
	}
	return Message{}, io.EOF
}

// Write encodes m on its own line. Safe for concurrent use.
func (c *LineCodec) Write(m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enc.Encode(m)
}
