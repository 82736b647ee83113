package wiener

import (
	"math/big"
	"testing"
)

func TestRecover_TextbookExample(t *testing.T) {
	// n = 239 * 379, d = 5
	rec, ok := Recover(big.NewInt(17993), big.NewInt(90581))
	if !ok {
		t.Fatal("want recovery to succeed")
	}
	if rec.D.Int64() != 5 {
		t.Errorf("want d=5, got %s", rec.D)
	}
	if rec.Phi.Int64() != 238*378 {
		t.Errorf("want phi=%d, got %s", 238*378, rec.Phi)
	}
	p, q := rec.P.Int64(), rec.Q.Int64()
	if !(p == 379 && q == 239) && !(p == 239 && q == 379) {
		t.Errorf("want factors 239, 379, got %d, %d", p, q)
	}
}

func TestRecover_LargeExponentFails(t *testing.T) {
	// 標準的な e=65537 の鍵では d は大きく、復元できない
	p := big.NewInt(1000003)
	q := big.NewInt(1000033)
	n := new(big.Int).Mul(p, q)
	_, ok := Recover(big.NewInt(65537), n)
	if ok {
		t.Error("want recovery to fail for e=65537")
	}
}

func TestConvergents(t *testing.T) {
	// 649/200 = [3; 4, 12, 4]
	got := Convergents(big.NewInt(649), big.NewInt(200))
	want := [][2]int64{{3, 1}, {13, 4}, {159, 49}, {649, 200}}
	if len(got) != len(want) {
		t.Fatalf("want %d convergents, got %d", len(want), len(got))
	}
	for i, c := range got {
		if c.K.Int64() != want[i][0] || c.D.Int64() != want[i][1] {
			t.Errorf("convergent %d: want %d/%d, got %s/%s", i, want[i][0], want[i][1], c.K, c.D)
		}
	}
}
