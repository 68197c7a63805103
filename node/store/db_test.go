package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"rsalock.dev/lock/consensus"
	"rsalock.dev/lock/crypto"
	"rsalock.dev/lock/dl"
)

func openTestDB(t *testing.T) (*DB, string) {
	t.Helper()
	datadir := t.TempDir()
	db, err := Open(datadir, "devnet")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, datadir
}

func TestOpenRejectsBadArgs(t *testing.T) {
	if _, err := Open("", "devnet"); err == nil {
		t.Fatalf("expected datadir error")
	}
	if _, err := Open(t.TempDir(), "../escape"); err == nil {
		t.Fatalf("expected network name error")
	}
}

func TestDB_CodeByHash(t *testing.T) {
	db, _ := openTestDB(t)
	blob := []byte("module bytes")
	h, err := db.PutCode(blob)
	if err != nil {
		t.Fatalf("PutCode: %v", err)
	}
	if h != (crypto.StdProvider{}).Blake2b256(blob) {
		t.Fatalf("code hash mismatch")
	}
	got, err := db.LoadCodeByHash(h)
	if err != nil || !bytes.Equal(got, blob) {
		t.Fatalf("LoadCodeByHash: %v", err)
	}
	if _, err := db.LoadCodeByHash([32]byte{1}); !errors.Is(err, dl.ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
	hashes, err := db.CodeHashes()
	if err != nil || len(hashes) != 1 || hashes[0] != h {
		t.Fatalf("CodeHashes: %v %v", hashes, err)
	}
}

func TestDB_PutGetCell(t *testing.T) {
	db, _ := openTestDB(t)
	point := consensus.OutPoint{TxHash: [32]byte{1}, Index: 2}
	typ := consensus.Script{CodeHash: [32]byte{5}, HashType: consensus.HASH_TYPE_TYPE}
	cell := Cell{
		Output: consensus.CellOutput{
			Capacity: 1000,
			Lock:     consensus.Script{CodeHash: [32]byte{3}, Args: []byte{0xaa}},
			Type:     &typ,
		},
		Data: []byte{0x01, 0x02},
	}
	if err := db.PutCell(point, cell); err != nil {
		t.Fatalf("PutCell: %v", err)
	}
	got, ok, err := db.GetCell(point)
	if err != nil || !ok {
		t.Fatalf("GetCell: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got.Output.Serialize(), cell.Output.Serialize()) || !bytes.Equal(got.Data, cell.Data) {
		t.Fatalf("cell mismatch: %+v", got)
	}

	cells, err := db.LoadCells()
	if err != nil || len(cells) != 1 {
		t.Fatalf("LoadCells: %d %v", len(cells), err)
	}

	if _, ok, err := db.GetCell(consensus.OutPoint{TxHash: [32]byte{1}, Index: 3}); err != nil || ok {
		t.Fatalf("unexpected cell at unused index: ok=%v err=%v", ok, err)
	}
}

func TestDB_ApplyTx(t *testing.T) {
	db, _ := openTestDB(t)
	in := consensus.OutPoint{TxHash: [32]byte{7}}
	if err := db.PutCell(in, Cell{Output: consensus.CellOutput{Capacity: 10}}); err != nil {
		t.Fatalf("PutCell: %v", err)
	}
	txHash := [32]byte{8}
	outs := []Cell{{Output: consensus.CellOutput{Capacity: 4}}, {Output: consensus.CellOutput{Capacity: 6}}}
	if err := db.ApplyTx(txHash, []consensus.OutPoint{in}, outs); err != nil {
		t.Fatalf("ApplyTx: %v", err)
	}
	cells, err := db.LoadCells()
	if err != nil {
		t.Fatalf("LoadCells: %v", err)
	}
	if len(cells) != 2 || cells[consensus.OutPoint{TxHash: txHash, Index: 1}].Output.Capacity != 6 {
		t.Fatalf("unexpected cells: %+v", cells)
	}
	if err := db.ApplyTx([32]byte{9}, []consensus.OutPoint{in}, nil); err == nil {
		t.Fatalf("expected double spend error")
	}
}

func TestDB_ManifestPersists(t *testing.T) {
	db, datadir := openTestDB(t)
	m := db.Manifest()
	if m.SchemaVersion != SchemaVersionV1 || m.Network != "devnet" {
		t.Fatalf("unexpected default manifest: %+v", m)
	}
	m.LockCodeHashHex = "aa"
	m.NextCellNonce = 3
	if err := db.SetManifest(m); err != nil {
		t.Fatalf("SetManifest: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db2, err := Open(datadir, "devnet")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()
	if got := db2.Manifest(); got.LockCodeHashHex != "aa" || got.NextCellNonce != 3 {
		t.Fatalf("manifest not persisted: %+v", got)
	}
}

func TestOpenRejectsFutureSchema(t *testing.T) {
	datadir := t.TempDir()
	dir := NetworkDir(datadir, "devnet")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "MANIFEST.json"), []byte(`{"schema_version":99}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(datadir, "devnet"); err == nil {
		t.Fatalf("expected schema error")
	}
}

func TestDecodeCellRejects(t *testing.T) {
	if _, err := decodeCell([]byte{1, 2}); err == nil {
		t.Fatalf("expected truncation error")
	}
	if _, err := decodeCell([]byte{0xff, 0, 0, 0, 1}); err == nil {
		t.Fatalf("expected length error")
	}
	if _, err := decodeCell([]byte{1, 0, 0, 0, 1}); err == nil {
		t.Fatalf("expected output parse error")
	}
}
