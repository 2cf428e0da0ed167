package syncerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		kind Kind
		ok   bool
	}{
		{"connectivity", Connectivity("ORDERS", "ping", base), KindConnectivity, true},
		{"schema", Schema("ORDERS", "columns", base), KindSchema, true},
		{"permission", Permission("ORDERS", "segments", base), KindPermission, true},
		{"chunk read", ChunkRead("ORDERS", "chunk 2", base), KindChunkRead, true},
		{"merge", Merge("ORDERS", "union", base), KindMerge, true},
		{"verification", Verification("ORDERS", "counts", base), KindVerification, true},
		{"wrapped", fmt.Errorf("outer: %w", ChunkRead("ORDERS", "chunk 2", base)), KindChunkRead, true},
		{"plain", base, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := KindOf(tt.err)
			if ok != tt.ok {
				t.Fatalf("KindOf ok = %v, want %v", ok, tt.ok)
			}
			if ok && kind != tt.kind {
				t.Errorf("KindOf kind = %v, want %v", kind, tt.kind)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := ChunkRead("HR.EMPLOYEES", "chunk 7", errors.New("timeout after 600s"))
	msg := err.Error()
	for _, want := range []string{"chunk-read", "HR.EMPLOYEES", "chunk 7", "timeout after 600s"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestUnwrap(t *testing.T) {
	base := errors.New("base")
	if !errors.Is(Merge("T", "attach", base), base) {
		t.Error("classified error should unwrap to base")
	}
}
