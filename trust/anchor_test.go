package trust

import (
	"testing"

	"github.com/jmhodges/clock"

	"github.com/pkitrust/pkitrust/test"
)

func TestAnchorStoreContains(t *testing.T) {
	fc := clock.NewFake()
	root, _ := test.NewRoot(t, fc, "root A")
	other, _ := test.NewRoot(t, fc, "root B")

	store := NewAnchorStore(root)
	test.Assert(t, store.Contains(root), "expected store to contain its own root")
	test.Assert(t, !store.Contains(other), "expected store not to contain an unrelated root")

	store.Add(other)
	test.Assert(t, store.Contains(other), "expected store to contain root added via Add")
}
