package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrTruncatedFrame is returned when a byte stream holds a partial
	// JSON object - the decoder only knows how to split complete,
	// back-to-back objects.
	ErrTruncatedFrame = errors.New("maekawa: stream does not end in a closing brace")
)

// Kind identifies the six message kinds exchanged between arbiter and
// requester roles. The integer values match the wire encoding used by
// every peer, so they must never be renumbered.
type Kind int

const (
	Failed Kind = iota
	Yield
	Inquire
	Request
	Grant
	Release
)

func (k Kind) String() string {
	switch k {
	case Failed:
		return "FAILED"
	case Yield:
		return "YIELD"
	case Inquire:
		return "INQUIRE"
	case Request:
		return "REQUEST"
	case Grant:
		return "GRANT"
	case Release:
		return "RELEASE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(k))
	}
}

// PeerID identifies a peer in [0, N).
type PeerID int

// Timestamp is a Lamport logical clock reading.
type Timestamp uint64

// Priority is the (ts, src) pair used for all arbitration decisions.
// Lower ts wins; ties broken by lower src.
type Priority struct {
	Ts  Timestamp `json:"ts"`
	Src PeerID    `json:"src"`
}

// Less reports whether p has strictly higher priority than o.
func (p Priority) Less(o Priority) bool {
	if p.Ts != o.Ts {
		return p.Ts < o.Ts
	}
	return p.Src < o.Src
}

// Equal reports whether p and o identify the same request.
func (p Priority) Equal(o Priority) bool {
	return p.Ts == o.Ts && p.Src == o.Src
}

// InquireData is the payload carried by an INQUIRE message: the
// priority of the competing request that triggered the inquiry.
type InquireData struct {
	Ts  Timestamp `json:"ts"`
	Src PeerID    `json:"src"`
}

// Message is the wire record exchanged between peers. Field names and
// the msg_type integer codes are fixed by the protocol and must not
// change independently of the Kind constants above.
type Message struct {
	Kind Kind         `json:"msg_type"`
	Src  PeerID       `json:"src"`
	Dest PeerID       `json:"dest"`
	Ts   Timestamp    `json:"ts"`
	Data *InquireData `json:"data"`
}

// Priority extracts the (ts, src) pair this message carries about its
// sender's request.
func (m Message) Priority() Priority {
	return Priority{Ts: m.Ts, Src: m.Src}
}

// Encode serializes a Message to its JSON wire form.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a single JSON object into a Message.
func Decode(b []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Split breaks a byte stream holding one or more back-to-back JSON
// objects (no delimiter between them) into individual object frames.
// It mirrors the original protocol's framing: a frame boundary is any
// "}{" sequence, with the closing brace attributed to the frame that
// precedes it. The final frame must end in '}' or the stream is
// rejected as truncated.
func Split(stream []byte) ([][]byte, error) {
	if len(stream) == 0 {
		return nil, nil
	}
	if stream[len(stream)-1] != '}' {
		return nil, ErrTruncatedFrame
	}

	var frames [][]byte
	start := 0
	for i := 0; i < len(stream)-1; i++ {
		if stream[i] == '}' && stream[i+1] == '{' {
			frames = append(frames, stream[start:i+1])
			start = i + 1
		}
	}
	frames = append(frames, stream[start:])
	return frames, nil
}

// DecodeStream splits and decodes every message found in a
// concatenated byte stream, in order.
func DecodeStream(stream []byte) ([]Message, error) {
	frames, err := Split(stream)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, nil
	}
	messages := make([]Message, 0, len(frames))
	for _, frame := range frames {
		m, err := Decode(frame)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, nil
}
