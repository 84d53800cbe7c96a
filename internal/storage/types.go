package storage

import (
	"encoding"
	"encoding/binary"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type DBSession struct {
	ID           string `msgpack:"id"`
	WebsiteID    string `msgpack:"websiteId"`
	VisitorID    string `msgpack:"visitorId"`
	VisitorName  string `msgpack:"visitorName"`
	VisitorEmail string `msgpack:"visitorEmail"`
	Status       string `msgpack:"status"`
	StartedAt    int64  `msgpack:"startedAt"`
	EndedAt      int64  `msgpack:"endedAt"` // 0 while the session is open
}

func (s *DBSession) Key() []byte {
	return []byte(s.ID)
}

func (s *DBSession) MarshalBinary() (data []byte, err error) {
	type alias DBSession
	return msgpack.Marshal((*alias)(s))
}

func (s *DBSession) UnmarshalBinary(data []byte) error {
	type alias DBSession
	return msgpack.Unmarshal(data, (*alias)(s))
}

type DBMessage struct {
	Index      int64  `msgpack:"index"`
	ID         string `msgpack:"id"`
	Content    string `msgpack:"content"`
	Sender     string `msgpack:"sender"`
	Timestamp  int64  `msgpack:"timestamp"`
	Translated bool   `msgpack:"translated"`
	Language   string `msgpack:"language"`
}

func (m *DBMessage) Key() []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(m.Index))
	return key
}

func (m *DBMessage) MarshalBinary() (data []byte, err error) {
	type alias DBMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMessage) UnmarshalBinary(data []byte) error {
	type alias DBMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}
