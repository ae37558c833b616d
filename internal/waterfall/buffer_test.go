package waterfall

import (
	"testing"
)

func row(columns int, value float64) []float64 {
	r := make([]float64, columns)
	for i := range r {
		r[i] = value
	}
	return r
}

func TestBuffer_FIFO(t *testing.T) {
	const depth, k = 4, 3

	b, err := New(depth, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < depth+k; i++ {
		b.Push(row(2, float64(i)))
		if b.Len() > depth {
			t.Fatalf("buffer exceeded depth: %d rows", b.Len())
		}
	}

	snap := b.Snapshot()
	if len(snap.Rows) != depth {
		t.Fatalf("expected %d rows, got %d", depth, len(snap.Rows))
	}
	for i, r := range snap.Rows {
		if want := float64(k + i); r[0] != want {
			t.Errorf("row %d: got %f, want %f", i, r[0], want)
		}
	}
}

func TestBuffer_PadsShortRow(t *testing.T) {
	const columns = 32

	b, _ := New(8, columns)

	short := make([]float64, columns-10)
	for i := range short {
		short[i] = float64(i)
	}

	if !b.Push(short) {
		t.Error("expected the row to be reported as reconciled")
	}

	got := b.Snapshot().Rows[0]
	if len(got) != columns {
		t.Fatalf("expected %d columns, got %d", columns, len(got))
	}
	for i := len(short); i < columns; i++ {
		if got[i] != short[len(short)-1] {
			t.Errorf("column %d: expected edge padding %f, got %f", i, short[len(short)-1], got[i])
		}
	}
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name       string
		row        []float64
		want       []float64
		reconciled bool
	}{
		{"exact", []float64{1, 2, 3}, []float64{1, 2, 3}, false},
		{"truncate", []float64{1, 2, 3, 4, 5}, []float64{1, 2, 3}, true},
		{"pad", []float64{1}, []float64{1, 1, 1}, true},
		{"empty", nil, []float64{0, 0, 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reconciled := Reconcile(tt.row, 3)
			if reconciled != tt.reconciled {
				t.Errorf("reconciled = %v, want %v", reconciled, tt.reconciled)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestBuffer_SnapshotIsolation(t *testing.T) {
	b, _ := New(2, 3)
	src := []float64{1, 2, 3}
	b.Push(src)

	snap := b.Snapshot()
	snap.Rows[0][0] = 100
	src[1] = 100

	again := b.Snapshot()
	if again.Rows[0][0] != 1 || again.Rows[0][1] != 2 {
		t.Errorf("buffer mutated through a snapshot or the pushed slice: %v", again.Rows[0])
	}
}

func TestNormalizeRow(t *testing.T) {
	got := NormalizeRow([]float64{-90, -80, -70})
	want := []float64{0, 0.5, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}

	for _, v := range NormalizeRow([]float64{-60, -60}) {
		if v != 0 {
			t.Errorf("expected zeros for a constant row, got %v", v)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(0, 10); err == nil {
		t.Error("expected error for zero depth")
	}
	if _, err := New(10, 0); err == nil {
		t.Error("expected error for zero columns")
	}
}
