// Package transport implements the wire substitute for the external
// pub/sub bus (topic-addressed announcements) and for the ROUTER/REQ
// request/reply socket, both built on github.com/valyala/fasthttp,
// repurposed here as the single wire transport for this module.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/aistore/movefabric/msg"
)

// EncodeBatch length-prefixes each message so a batch of announcements can
// share one HTTP body without a JSON-colliding textual delimiter.
func EncodeBatch(msgs []*msg.Message) ([]byte, error) {
	var buf bytes.Buffer
	for _, m := range msgs {
		s, err := m.Encode()
		if err != nil {
			return nil, err
		}
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
		buf.Write(lenBuf[:])
		buf.WriteString(s)
	}
	return buf.Bytes(), nil
}

// DecodeBatch is EncodeBatch's inverse.
func DecodeBatch(body []byte) ([]*msg.Message, error) {
	var out []*msg.Message
	r := bytes.NewReader(body)
	for r.Len() > 0 {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, fmt.Errorf("transport: frame length: %w", err)
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		line := make([]byte, n)
		if _, err := io.ReadFull(r, line); err != nil {
			return nil, fmt.Errorf("transport: frame body: %w", err)
		}
		m, err := msg.Decode(string(line))
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// EncodeOne is EncodeBatch for a single message — the request/reply path's
// framing, since C7/C10 never batch.
func EncodeOne(m *msg.Message) ([]byte, error) {
	return EncodeBatch([]*msg.Message{m})
}

// DecodeOne is DecodeBatch for exactly one message.
func DecodeOne(body []byte) (*msg.Message, error) {
	msgs, err := DecodeBatch(body)
	if err != nil {
		return nil, err
	}
	if len(msgs) != 1 {
		return nil, fmt.Errorf("transport: expected exactly one message, got %d", len(msgs))
	}
	return msgs[0], nil
}
