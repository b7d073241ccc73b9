package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"
	"github.com/tamperledger/ledger/hashstore"
	"github.com/tamperledger/ledger/serializer"
)

var testFields = serializer.OrderedFields{
	{Name: "from", Kind: serializer.KindString},
	{Name: "to", Kind: serializer.KindString},
	{Name: "amount", Kind: serializer.KindInt},
}

func testConfig(dir string) Config {
	cfg := DefaultConfig()
	cfg.DataDir = dir
	return cfg
}

func txn(from, to string, amount int64) serializer.Txn {
	return serializer.Txn{"from": from, "to": to, "amount": amount}
}

func TestAddTwoTransactionsAssignsSequentialSeqNos(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(testConfig(dir), testFields)
	require.NoError(t, err)
	defer l.Close()

	res1, err := l.Add(txn("alice", "bob", 10))
	require.NoError(t, err)
	require.Equal(t, 1, res1.SeqNo)

	res2, err := l.Add(txn("bob", "carol", 5))
	require.NoError(t, err)
	require.Equal(t, 2, res2.SeqNo)

	require.Equal(t, 2, l.Size())

	got, err := l.Get(1)
	require.NoError(t, err)
	require.Equal(t, "alice", got["from"])
	require.Equal(t, int64(10), got["amount"])
}

func TestMerkleInfoReflectsCurrentTree(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(testConfig(dir), testFields)
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 4; i++ {
		_, err := l.Add(txn("a", "b", int64(i)))
		require.NoError(t, err)
	}

	info, err := l.MerkleInfo(2)
	require.NoError(t, err)
	require.Equal(t, 4, info.TreeSize)
	require.Equal(t, l.RootHash(), info.RootHash)
	require.NotEmpty(t, info.AuditPath)

	_, err = l.MerkleInfo(99)
	require.True(t, Is(err, KindNotFound))
}

func TestRecoveryFromTransactionLogRebuildsSameRoot(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(testConfig(dir), testFields)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		_, err := l.Add(txn("a", "b", int64(i)))
		require.NoError(t, err)
	}
	wantRoot := l.RootHash()
	wantSize := l.Size()
	require.NoError(t, l.Close())

	hs, err := hashstore.Open(filepath.Join(dir, "hashes"))
	require.NoError(t, err)
	require.NoError(t, hs.Reset())
	require.NoError(t, hs.Close())

	reopened, err := Open(testConfig(dir), testFields)
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, wantSize, reopened.Size())
	require.Equal(t, wantRoot, reopened.RootHash())
}

func TestRecoveryFromHashStoreMatchesLiveTree(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(testConfig(dir), testFields)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := l.Add(txn("a", "b", int64(i)))
		require.NoError(t, err)
	}
	wantRoot := l.RootHash()
	wantSize := l.Size()
	require.NoError(t, l.Close())

	reopened, err := Open(testConfig(dir), testFields)
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, wantSize, reopened.Size())
	require.Equal(t, wantRoot, reopened.RootHash())
}

func TestSchemaExtensionSurvivesRecovery(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(testConfig(dir), testFields)
	require.NoError(t, err)
	_, err = l.Add(txn("a", "b", 1))
	require.NoError(t, err)
	wantRoot := l.RootHash()
	require.NoError(t, l.Close())

	grown := append(serializer.OrderedFields{}, testFields...)
	grown = append(grown, serializer.FieldSpec{Name: "memo", Kind: serializer.KindString})

	reopened, err := Open(testConfig(dir), grown)
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, wantRoot, reopened.RootHash())
	got, err := reopened.Get(1)
	require.NoError(t, err)
	require.Equal(t, "", got["memo"])

	res, err := reopened.Add(txn("c", "d", 2))
	require.NoError(t, err)
	require.Equal(t, 2, res.SeqNo)
}

func TestConsistencyFailureOnExtraHashStoreNode(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(testConfig(dir), testFields)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err := l.Add(txn("a", "b", int64(i)))
		require.NoError(t, err)
	}
	require.NoError(t, l.Close())

	hs, err := hashstore.Open(filepath.Join(dir, "hashes"))
	require.NoError(t, err)
	_, err = hs.WriteNode(hashstore.NodeRecord{Start: 99, Height: 7})
	require.NoError(t, err)
	require.NoError(t, hs.Close())

	_, err = Open(testConfig(dir), testFields)
	require.True(t, Is(err, KindConsistencyVerificationFailed))
}

func TestConsistencyFailureOnExtraTransactionLogRecord(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(testConfig(dir), testFields)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := l.Add(txn("a", "b", int64(i)))
		require.NoError(t, err)
	}
	require.NoError(t, l.Close())

	store, err := openBackend(testConfig(dir))
	require.NoError(t, err)
	_, err = store.Put("", []byte("injected\x1frecord\x1f9"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = Open(testConfig(dir), testFields)
	require.True(t, Is(err, KindConsistencyVerificationFailed))
}

func TestGetAllTxnRangeAndEmptyInvertedRange(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(testConfig(dir), testFields)
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 5; i++ {
		_, err := l.Add(txn("a", "b", int64(i)))
		require.NoError(t, err)
	}

	got, err := l.GetAllTxn(2, 4)
	require.NoError(t, err)
	require.Len(t, got, 3)

	empty, err := l.GetAllTxn(4, 2)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestGetAllTxnDefaultsFrmAndTo(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(testConfig(dir), testFields)
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 5; i++ {
		_, err := l.Add(txn("a", "b", int64(i)))
		require.NoError(t, err)
	}

	all, err := l.GetAllTxn(0, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)

	fromThree, err := l.GetAllTxn(3, 0)
	require.NoError(t, err)
	require.Len(t, fromThree, 3)

	upToThree, err := l.GetAllTxn(0, 3)
	require.NoError(t, err)
	require.Len(t, upToThree, 3)
}

func TestGenesisFileBootstrapsBeforeUserAppends(t *testing.T) {
	dir := t.TempDir()
	genesisPath := filepath.Join(dir, "genesis.rlp")

	records := []genesisRecord{
		{Values: []string{"genesis-a", "genesis-b", "100"}},
		{Values: []string{"genesis-b", "genesis-c", "40"}},
	}
	f, err := os.Create(genesisPath)
	require.NoError(t, err)
	for _, rec := range records {
		require.NoError(t, rlp.Encode(f, rec))
	}
	require.NoError(t, f.Close())

	cfg := testConfig(filepath.Join(dir, "data"))
	cfg.GenesisFile = genesisPath

	l, err := Open(cfg, testFields)
	require.NoError(t, err)
	defer l.Close()

	require.Equal(t, 2, l.Size())
	first, err := l.Get(1)
	require.NoError(t, err)
	require.Equal(t, "genesis-a", first["from"])
	require.Equal(t, int64(100), first["amount"])

	res, err := l.Add(txn("user", "x", 1))
	require.NoError(t, err)
	require.Equal(t, 3, res.SeqNo)
}

func TestMissingGenesisFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.GenesisFile = filepath.Join(dir, "does-not-exist.rlp")

	l, err := Open(cfg, testFields)
	require.NoError(t, err)
	defer l.Close()
	require.Equal(t, 0, l.Size())
}
