package ledger

import (
	"io"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/tamperledger/ledger/serializer"
)

// genesisRecord is the RLP wire shape of one bootstrap transaction: field
// values in schema order, carried as strings since RLP only natively
// distinguishes byte strings and lists — integers round-trip as decimal
// text, the same representation CompactSerializer already uses on disk.
type genesisRecord struct {
	Values []string
}

// loadGenesis reads a sequence of top-level RLP-encoded genesisRecords from
// path via rlp.Stream, one record at a time until EOF. A missing file is not
// an error: genesis bootstrap is optional. The returned transactions are in
// file order and become sequence numbers 1..g, with user appends continuing
// from g+1.
func loadGenesis(path string, fields serializer.OrderedFields) ([]serializer.Txn, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var records []genesisRecord
	stream := rlp.NewStream(f, 0)
	for {
		var rec genesisRecord
		if err := stream.Decode(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		records = append(records, rec)
	}

	txns := make([]serializer.Txn, len(records))
	for i, rec := range records {
		t := make(serializer.Txn, len(fields))
		for j, fs := range fields {
			if j >= len(rec.Values) {
				continue
			}
			if fs.Kind == serializer.KindInt {
				n, err := strconv.ParseInt(rec.Values[j], 10, 64)
				if err != nil {
					return nil, err
				}
				t[fs.Name] = n
			} else {
				t[fs.Name] = rec.Values[j]
			}
		}
		txns[i] = t
	}
	return txns, nil
}
