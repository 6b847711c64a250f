package peers

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/mosaicnetworks/ledgerpool/src/common"
)

// LoadGenesis reads a genesis file: one JSON encoded PoolTxn per line, blank
// lines ignored. Any malformed line, out-of-sequence entry, or entry that is
// not an admission rejects the whole file.
func LoadGenesis(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.NewPoolErr(common.NotFound, path, err)
	}
	defer f.Close()

	return ReadGenesis(f)
}

// ReadGenesis is LoadGenesis over an io.Reader.
func ReadGenesis(r io.Reader) (*Registry, error) {
	reg := NewRegistry()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++

		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var txn PoolTxn
		if err := txn.Unmarshal(raw); err != nil {
			return nil, common.NewPoolErr(common.InvalidTransaction,
				fmt.Sprintf("genesis line %d", line), err)
		}

		if txn.Body.Type != NodeAdd {
			return nil, common.Errorf(common.InvalidTransaction,
				"genesis line %d: %s is not an admission", line, txn.Body.Type)
		}

		next, err := reg.Apply(&txn)
		if err != nil {
			return nil, fmt.Errorf("genesis line %d: %w", line, err)
		}
		reg = next
	}

	if err := scanner.Err(); err != nil {
		return nil, common.NewPoolErr(common.InvalidTransaction, "genesis", err)
	}

	if reg.Seq() == 0 {
		return nil, common.Errorf(common.InvalidTransaction, "genesis has no entries")
	}

	return reg, nil
}

// WriteGenesis writes txns in the format read by ReadGenesis.
func WriteGenesis(w io.Writer, txns []PoolTxn) error {
	for i := range txns {
		raw, err := txns[i].Marshal()
		if err != nil {
			return err
		}
		if _, err := w.Write(append(raw, '\n')); err != nil {
			return err
		}
	}
	return nil
}
