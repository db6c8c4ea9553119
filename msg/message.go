// Package msg defines the wire message shape shared by every role: a
// topic-addressed, typed record carrying a nested data map.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package msg

import (
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Type is the message's type tag (msg.data's shape varies by Type).
type Type string

const (
	TypeFile       Type = "file"
	TypeDataset    Type = "dataset"
	TypeCollection Type = "collection"
	TypePush       Type = "push"
	TypeAck        Type = "ack"
	TypePing       Type = "ping"
	TypePong       Type = "pong"
	TypeInfo       Type = "info"
	TypeErr        Type = "err"
	TypeBeat       Type = "beat"
	TypeUnknown    Type = "unknown"
	TypeDel        Type = "del"
)

// Message mirrors the original's Subject/Type/Sender/Time/data record.
// data is kept as a generic tree (map[string]any) per the "dynamic message
// map" design note — File/Dataset/Collection views are extracted on demand
// rather than forcing every caller through a tagged union up front.
type Message struct {
	Subject string         `json:"subject"`
	Type    Type           `json:"type"`
	Sender  string         `json:"sender"`
	Time    time.Time      `json:"time"`
	Version string         `json:"version"`
	MIME    string         `json:"mime,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

const wireVersion = "1.3"

// HeartbeatTopic is the well-known subject for periodic "beat" messages
// (supervisor.HeartbeatPublisher publishes on it); every consumer
// subscribes to it in addition to its chain's own topic.
const HeartbeatTopic = "/heartbeat/minute"

func New(subject string, typ Type, sender string, data map[string]any) *Message {
	return &Message{
		Subject: subject,
		Type:    typ,
		Sender:  sender,
		Time:    time.Now().UTC(),
		Version: wireVersion,
		Data:    data,
	}
}

// File is the single-file view of msg.Data used by type "file".
type File struct {
	UID  string         `json:"uid"`
	URI  string         `json:"uri"`
	Uri  string         `json:"-"` // never filled by AsFile or Files, never emitted
	Rest map[string]any `json:"-"`
}

// AsFile extracts the single-file shape, flattening extra keys into Rest.
func (m *Message) AsFile() (f File, ok bool) {
	if m.Data == nil {
		return File{}, false
	}
	uid, _ := m.Data["uid"].(string)
	uri, _ := m.Data["uri"].(string)
	if uid == "" || uri == "" {
		return File{}, false
	}
	rest := make(map[string]any, len(m.Data))
	for k, v := range m.Data {
		if k == "uid" || k == "uri" {
			continue
		}
		rest[k] = v
	}
	return File{UID: uid, URI: uri, Rest: rest}, true
}

// Files returns every uid/uri pair nested in Data, for "file", "dataset",
// and "collection" shapes alike — the wire body nests datasets under
// "dataset" and collections of datasets under "collection".
func (m *Message) Files() []File {
	var out []File
	switch m.Type {
	case TypeFile:
		if f, ok := m.AsFile(); ok {
			out = append(out, f)
		}
	case TypeDataset:
		out = append(out, filesFromList(m.Data["dataset"])...)
	case TypeCollection:
		if coll, ok := m.Data["collection"].([]any); ok {
			for _, d := range coll {
				if ds, ok := d.(map[string]any); ok {
					out = append(out, filesFromList(ds["dataset"])...)
				}
			}
		}
	default:
		out = append(out, filesFromList(m.Data["dataset"])...)
		if f, ok := m.AsFile(); ok {
			out = append(out, f)
		}
	}
	return out
}

func filesFromList(v any) []File {
	lst, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]File, 0, len(lst))
	for _, e := range lst {
		em, ok := e.(map[string]any)
		if !ok {
			continue
		}
		uid, _ := em["uid"].(string)
		uri, _ := em["uri"].(string)
		if uid == "" || uri == "" {
			continue
		}
		rest := make(map[string]any, len(em))
		for k, v := range em {
			if k == "uid" || k == "uri" {
				continue
			}
			rest[k] = v
		}
		out = append(out, File{UID: uid, URI: uri, Rest: rest})
	}
	return out
}

// UIDs returns every uid carried by the message, in encounter order.
func (m *Message) UIDs() []string {
	files := m.Files()
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.UID)
	}
	return out
}

// Encode renders the line-framed wire form: a single header line followed
// by a JSON body line, matching the original messaging library's
// "one header line, one JSON-ish body line" framing.
func (m *Message) Encode() (string, error) {
	body, err := json.Marshal(m.Data)
	if err != nil {
		return "", fmt.Errorf("msg: encode data: %w", err)
	}
	hdr := fmt.Sprintf("pytroll://%s %s %s @ %s %s", m.Subject, m.Type, m.Sender,
		m.Time.Format("2006-01-02T15:04:05.999999"), m.Version)
	var sb strings.Builder
	sb.WriteString(hdr)
	sb.WriteByte('\n')
	sb.Write(body)
	return sb.String(), nil
}

// Decode parses the line-framed wire form produced by Encode.
func Decode(line string) (*Message, error) {
	nl := strings.IndexByte(line, '\n')
	if nl < 0 {
		return nil, fmt.Errorf("msg: decode: missing header/body separator")
	}
	hdr, body := line[:nl], line[nl+1:]
	fields := strings.Fields(hdr)
	// pytroll://<subject> <type> <sender> @ <time> <version>; an empty
	// sender leaves no field between <type> and "@".
	if len(fields) == 5 && fields[2] == "@" {
		fields = []string{fields[0], fields[1], "", fields[2], fields[3], fields[4]}
	}
	if len(fields) < 6 || !strings.HasPrefix(fields[0], "pytroll://") {
		return nil, fmt.Errorf("msg: decode: malformed header %q", hdr)
	}
	m := &Message{
		Subject: strings.TrimPrefix(fields[0], "pytroll://"),
		Type:    Type(fields[1]),
		Sender:  fields[2],
		Version: fields[len(fields)-1],
	}
	if t, err := time.Parse("2006-01-02T15:04:05.999999", fields[4]); err == nil {
		m.Time = t
	}
	if strings.TrimSpace(body) != "" {
		if err := json.Unmarshal([]byte(body), &m.Data); err != nil {
			return nil, fmt.Errorf("msg: decode body: %w", err)
		}
	}
	return m, nil
}
