package serializer

import (
	"github.com/vmihailenco/msgpack/v5"
)

// MsgPackSerializer is the binary Serializer. It is not line-oriented and is
// therefore not compatible with the text-line transaction log store
// (kv/textstore); pair it with kv/chunkedstore, kv/leveldbstore or any other
// byte-oriented KeyValueStore.
//
// Unlike CompactSerializer, MsgPack payloads are self-describing, so no
// schema is required to decode them. Fields absent from an older record are
// simply absent from the decoded Txn: no zero value is filled in for them.
type MsgPackSerializer struct{}

// NewMsgPackSerializer returns a MsgPackSerializer.
func NewMsgPackSerializer() *MsgPackSerializer {
	return &MsgPackSerializer{}
}

func (s *MsgPackSerializer) Serialize(t Txn) ([]byte, error) {
	b, err := msgpack.Marshal(map[string]interface{}(t))
	if err != nil {
		return nil, &Error{Op: "serialize", Err: err}
	}
	return b, nil
}

func (s *MsgPackSerializer) Deserialize(b []byte) (Txn, error) {
	var m map[string]interface{}
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return nil, &Error{Op: "deserialize", Err: err}
	}
	return Txn(m), nil
}
