// Command ledgerctl is a small operator CLI over a ledger.Ledger: append a
// transaction, read one back, dump a range, print a stored transaction's
// membership proof, or force the hash store to rebuild from the
// transaction log on next open.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/tamperledger/ledger/hashstore"
	"github.com/tamperledger/ledger/ledger"
	"github.com/tamperledger/ledger/serializer"
	"gopkg.in/urfave/cli.v1"
)

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "path to a TOML ledger config file",
	}
	dataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "ledger data directory (overrides the config file's datadir)",
	}
	schemaFlag = cli.StringFlag{
		Name:  "schema",
		Usage: "comma-separated field:kind pairs, kind one of string|int, e.g. from:string,to:string,amount:int",
		Value: "from:string,to:string,amount:int",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "ledgerctl"
	app.Usage = "inspect and operate a tamper-evident transaction ledger"
	app.Flags = []cli.Flag{configFlag, dataDirFlag, schemaFlag}
	app.Commands = []cli.Command{
		addCommand,
		getCommand,
		rangeCommand,
		verifyCommand,
		resetHashStoreCommand,
	}

	if err := app.Run(os.Args); err != nil {
		log.Error("ledgerctl: fatal", "err", err)
		os.Exit(1)
	}
}

func openLedger(ctx *cli.Context) (*ledger.Ledger, error) {
	var cfg ledger.Config
	var err error
	if path := ctx.GlobalString(configFlag.Name); path != "" {
		cfg, err = ledger.LoadConfig(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = ledger.DefaultConfig()
	}
	if dir := ctx.GlobalString(dataDirFlag.Name); dir != "" {
		cfg.DataDir = dir
	}
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("datadir must be set via --datadir or the config file")
	}
	fields, err := parseSchema(ctx.GlobalString(schemaFlag.Name))
	if err != nil {
		return nil, err
	}
	return ledger.Open(cfg, fields)
}

func parseSchema(s string) (serializer.OrderedFields, error) {
	var fields serializer.OrderedFields
	for _, part := range strings.Split(s, ",") {
		nameKind := strings.SplitN(part, ":", 2)
		if len(nameKind) != 2 {
			return nil, fmt.Errorf("malformed schema field %q, want name:kind", part)
		}
		var kind serializer.FieldKind
		switch nameKind[1] {
		case "string":
			kind = serializer.KindString
		case "int":
			kind = serializer.KindInt
		default:
			return nil, fmt.Errorf("unknown field kind %q in %q", nameKind[1], part)
		}
		fields = append(fields, serializer.FieldSpec{Name: nameKind[0], Kind: kind})
	}
	return fields, nil
}

var addCommand = cli.Command{
	Name:      "add",
	Usage:     "append one transaction, given as field=value pairs matching --schema",
	ArgsUsage: "field=value [field=value ...]",
	Action: func(ctx *cli.Context) error {
		l, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer l.Close()

		t := serializer.Txn{}
		for _, arg := range ctx.Args() {
			kv := strings.SplitN(arg, "=", 2)
			if len(kv) != 2 {
				return fmt.Errorf("malformed argument %q, want field=value", arg)
			}
			t[kv[0]] = kv[1]
		}
		res, err := l.Add(t)
		if err != nil {
			return err
		}
		fmt.Printf("seqNo=%d leafHash=%s rootHash=%s\n", res.SeqNo, res.LeafHash.Hex(), res.RootHash.Hex())
		return nil
	},
}

var getCommand = cli.Command{
	Name:      "get",
	Usage:     "print the transaction at a sequence number",
	ArgsUsage: "seqNo",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return fmt.Errorf("get takes exactly one seqNo argument")
		}
		seqNo, err := strconv.Atoi(ctx.Args().Get(0))
		if err != nil {
			return err
		}
		l, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer l.Close()

		t, err := l.Get(seqNo)
		if err != nil {
			return err
		}
		fmt.Println(t)
		return nil
	},
}

var rangeCommand = cli.Command{
	Name:  "range",
	Usage: "print the transactions in [frm, to]; omit either bound to default to 1 or the current size",
	Flags: []cli.Flag{
		cli.IntFlag{Name: "frm", Usage: "first seqNo (default 1)"},
		cli.IntFlag{Name: "to", Usage: "last seqNo (default current size)"},
	},
	Action: func(ctx *cli.Context) error {
		l, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer l.Close()

		frm := ctx.Int("frm")
		txns, err := l.GetAllTxn(frm, ctx.Int("to"))
		if err != nil {
			return err
		}
		if frm <= 0 {
			frm = 1
		}
		for i, t := range txns {
			fmt.Printf("%d: %v\n", frm+i, t)
		}
		return nil
	},
}

var verifyCommand = cli.Command{
	Name:      "verify",
	Usage:     "print the Merkle proof bundle for a sequence number",
	ArgsUsage: "seqNo",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return fmt.Errorf("verify takes exactly one seqNo argument")
		}
		seqNo, err := strconv.Atoi(ctx.Args().Get(0))
		if err != nil {
			return err
		}
		l, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer l.Close()

		info, err := l.MerkleInfo(seqNo)
		if err != nil {
			return err
		}
		fmt.Printf("treeSize=%d rootHash=%s\n", info.TreeSize, info.RootHash.Hex())
		for i, h := range info.AuditPath {
			fmt.Printf("  path[%d]=%s\n", i, h.Hex())
		}
		return nil
	},
}

var resetHashStoreCommand = cli.Command{
	Name:  "reset-hashstore",
	Usage: "truncate the hash store so the next open rebuilds it from the transaction log",
	Action: func(ctx *cli.Context) error {
		var cfg ledger.Config
		var err error
		if path := ctx.GlobalString(configFlag.Name); path != "" {
			cfg, err = ledger.LoadConfig(path)
			if err != nil {
				return err
			}
		} else {
			cfg = ledger.DefaultConfig()
		}
		if dir := ctx.GlobalString(dataDirFlag.Name); dir != "" {
			cfg.DataDir = dir
		}
		hs, err := hashstore.Open(filepath.Join(cfg.DataDir, "hashes"))
		if err != nil {
			return err
		}
		defer hs.Close()
		return hs.Reset()
	},
}
