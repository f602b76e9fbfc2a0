package core_test

import (
	"testing"

	core "l2rollup/core"
)

func TestMempoolAddAndDrain(t *testing.T) {
	m := core.NewMempool()
	var to core.Address
	to[0] = 1
	tx, _ := buildSignedTransferTx(t, to, 5)

	if err := m.Add(tx, true); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if m.PendingSize() != 1 {
		t.Fatalf("PendingSize = %d, want 1", m.PendingSize())
	}

	drained := m.Drain()
	if len(drained) != 1 {
		t.Fatalf("Drain returned %d txns, want 1", len(drained))
	}
	if m.PendingSize() != 0 {
		t.Fatalf("PendingSize after drain = %d, want 0", m.PendingSize())
	}
}

func TestMempoolRejectsUnsignedTransactionWhenRequired(t *testing.T) {
	m := core.NewMempool()
	var to core.Address
	to[0] = 1
	tx, _ := buildSignedTransferTx(t, to, 5)
	tx.Signatures[0] = core.Signature{}

	if err := m.Add(tx, true); err == nil {
		t.Fatalf("expected invalid signature to be rejected")
	}
}

func TestMempoolCapacityBoundaryIsInclusive(t *testing.T) {
	m := core.NewMempool()
	var to core.Address
	to[0] = 1

	for i := 0; i < core.MaxMempoolSize; i++ {
		tx, _ := buildSignedTransferTx(t, to, uint64(i))
		if err := m.Add(tx, true); err != nil {
			t.Fatalf("Add #%d: %v", i, err)
		}
	}
	if m.PendingSize() != core.MaxMempoolSize {
		t.Fatalf("PendingSize = %d, want %d", m.PendingSize(), core.MaxMempoolSize)
	}

	overflow, _ := buildSignedTransferTx(t, to, 9999)
	if err := m.Add(overflow, true); err == nil {
		t.Fatalf("expected the %dth transaction to be rejected (cap is %d)", core.MaxMempoolSize+1, core.MaxMempoolSize)
	}
}
