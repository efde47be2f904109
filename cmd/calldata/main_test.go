package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ckbrelay/internal/calldata"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(append([]string{"calldata"}, args...))
	return strings.TrimSpace(out.String()), err
}

func TestSetStateMatchesEncoder(t *testing.T) {
	got, err := run(t, "set-state", "true")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want, err := calldata.Encode(calldata.NewSetStateCall(true))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got != hexutil.Encode(want) {
		t.Fatalf("got %s, want %s", got, hexutil.Encode(want))
	}
	if _, err := run(t, "set-state", "maybe"); err == nil {
		t.Fatal("expected error for a non-boolean argument")
	}
}

func TestRollbackHeadersThenDecode(t *testing.T) {
	hash := common.HexToHash("0xabc")
	encoded, err := run(t, "rollback-headers", hash.Hex())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := run(t, "decode", string(calldata.LightClient), encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var view struct {
		Contract string `json:"contract"`
		Method   string `json:"method"`
		Items    int    `json:"items"`
	}
	if err := json.Unmarshal([]byte(decoded), &view); err != nil {
		t.Fatalf("unmarshal %q: %v", decoded, err)
	}
	if view.Contract != string(calldata.LightClient) || view.Method != calldata.MethodRollback || view.Items != 1 {
		t.Fatalf("decoded %+v", view)
	}
	if _, err := run(t, "rollback-headers", "0x01"); err == nil {
		t.Fatal("expected error for a short hash")
	}
}

func TestHeaderFromSavedBlock(t *testing.T) {
	if _, err := run(t, "header"); err == nil {
		t.Fatal("expected error without block files")
	}
	path := filepath.Join(t.TempDir(), "block.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "header", path); err == nil {
		t.Fatal("expected error for a malformed block file")
	}
}

func TestSelectorsListsEveryContract(t *testing.T) {
	out, err := run(t, "selectors")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, contract := range calldata.Contracts() {
		if !strings.Contains(out, string(contract)+"\t0x") {
			t.Fatalf("missing %s in\n%s", contract, out)
		}
	}
}
