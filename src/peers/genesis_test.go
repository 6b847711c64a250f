package peers

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mosaicnetworks/ledgerpool/src/common"
)

func TestGenesisRoundTrip(t *testing.T) {
	nodes := newTestNodes(t, 4)
	reg, txns := buildRegistry(t, nodes)

	path := filepath.Join(t.TempDir(), "pool_transactions_genesis")

	var buf bytes.Buffer
	if err := WriteGenesis(&buf, txns); err != nil {
		t.Fatal(err)
	}
	// blank lines are tolerated
	buf.WriteString("\n\n")
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadGenesis(path)
	if err != nil {
		t.Fatalf("LoadGenesis: %v", err)
	}

	if loaded.RootHex() != reg.RootHex() {
		t.Fatalf("loaded root %s should be %s", loaded.RootHex(), reg.RootHex())
	}
	if loaded.ActiveLen() != 4 {
		t.Fatalf("loaded registry should have 4 active nodes")
	}
}

func TestGenesisRejectsWholeFile(t *testing.T) {
	nodes := newTestNodes(t, 3)
	_, txns := buildRegistry(t, nodes)

	var good bytes.Buffer
	WriteGenesis(&good, txns)
	lines := strings.Split(strings.TrimSpace(good.String()), "\n")

	cases := map[string]struct {
		content string
		kind    common.PoolErrType
	}{
		"malformed line": {
			content: lines[0] + "\n{not json\n" + lines[1] + "\n",
			kind:    common.InvalidTransaction,
		},
		"out of sequence": {
			content: lines[0] + "\n" + lines[2] + "\n",
			kind:    common.SequenceGap,
		},
		"empty": {
			content: "\n",
			kind:    common.InvalidTransaction,
		},
	}

	for name, c := range cases {
		_, err := ReadGenesis(strings.NewReader(c.content))
		if !common.IsPool(err, c.kind) {
			t.Fatalf("%s: expected %v, got %v", name, c.kind, err)
		}
	}

	if _, err := LoadGenesis(filepath.Join(t.TempDir(), "missing")); !common.IsPool(err, common.NotFound) {
		t.Fatalf("missing file should be NotFound, got %v", err)
	}
}
