package serializer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMsgPackSerializerRoundTrip(t *testing.T) {
	s := NewMsgPackSerializer()
	txn := Txn{"identifier": "cli1", "reqId": int64(7), "op": "do something"}

	b, err := s.Serialize(txn)
	require.NoError(t, err)

	got, err := s.Deserialize(b)
	require.NoError(t, err)
	require.Equal(t, "cli1", got["identifier"])
	require.EqualValues(t, 7, got["reqId"])
	require.Equal(t, "do something", got["op"])
}
