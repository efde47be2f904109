package mysql

import (
	"reflect"
	"strings"
	"testing"

	"ckbrelay/internal/application"
	"ckbrelay/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

func TestOutPointColumns(t *testing.T) {
	block := domain.RelayedBlock{
		Number:  42,
		Hash:    common.HexToHash("0x42"),
		Inputs:  []domain.OutPoint{{TxHash: common.HexToHash("0x01"), Index: 3}},
		Outputs: nil,
	}
	inputs, outputs, err := MarshalOutPoints(block)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if outputs != "[]" {
		t.Fatalf("empty outputs stored as %q", outputs)
	}
	if !strings.Contains(inputs, `"tx_hash":"0x0000000000000000000000000000000000000000000000000000000000000001"`) {
		t.Fatalf("inputs column %s", inputs)
	}
	decoded, err := UnmarshalOutPoints(inputs)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(decoded, block.Inputs) {
		t.Fatalf("decoded %+v", decoded)
	}
	if _, err := UnmarshalOutPoints("{"); err == nil {
		t.Fatal("expected error for corrupt column")
	}
}

func TestCallRecordQuery(t *testing.T) {
	from := uint64(100)
	query, args := CallRecordQuery(application.CallRecordFilter{
		Contract:  "light-client",
		FromBlock: &from,
		Limit:     5000,
	})
	if !strings.Contains(query, "contract = ?") || strings.Contains(query, "method = ?") {
		t.Fatalf("query %s", query)
	}
	want := []any{"light-client", uint64(100), 100}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("args %v, want %v", args, want)
	}
}

func TestRelayedCacheKey(t *testing.T) {
	if got := relayedCacheKey("7", 1234); got != "ckbrelay:relayed:v7:block=1234" {
		t.Fatalf("key %q", got)
	}
}
