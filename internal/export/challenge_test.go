package export

import (
	"bytes"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wiener-keygen-service/internal/domain"
)

func testKeyPair() *domain.KeyPair {
	return domain.NewKeyPair(big.NewInt(17993), big.NewInt(90581), big.NewInt(5), big.NewInt(239), big.NewInt(379))
}

func TestNewChallenge_OffsetsInRange(t *testing.T) {
	// isqrt(90581) = 300 なので r は [450, 750)
	for i := 0; i < 100; i++ {
		c, err := NewChallenge(testKeyPair(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, off := range c.Offsets {
			if off.Int64() < 450 || off.Int64() >= 750 {
				t.Fatalf("offset %s out of [450, 750)", off)
			}
		}
	}
}

func TestChallenge_WriteData(t *testing.T) {
	c := &Challenge{
		E:       big.NewInt(17993),
		N:       big.NewInt(90581),
		D:       big.NewInt(5),
		Offsets: [2]*big.Int{big.NewInt(500), big.NewInt(600)},
	}

	var buf bytes.Buffer
	if err := c.WriteData(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "[\n[1 0 17993 17993]\n[0 1 90081 89981]\n[0 0 0 0]\n[0 0 0 0]\n]"
	if buf.String() != want {
		t.Errorf("want %q, got %q", want, buf.String())
	}

	buf.Reset()
	if err := c.WriteResult(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "5" {
		t.Errorf("want result 5, got %q", buf.String())
	}
}

func TestWriteBatch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	pairs := []*domain.KeyPair{testKeyPair(), testKeyPair()}

	if err := WriteBatch(dir, pairs, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, name := range []string{"0", "1"} {
		data, err := os.ReadFile(filepath.Join(dir, name+".data"))
		if err != nil {
			t.Fatalf("reading %s.data: %v", name, err)
		}
		if !strings.HasPrefix(string(data), "[\n[1 0 17993 17993]\n") {
			t.Errorf("%s.data: unexpected content %q", name, data)
		}

		result, err := os.ReadFile(filepath.Join(dir, name+".result"))
		if err != nil {
			t.Fatalf("reading %s.result: %v", name, err)
		}
		if string(result) != "5" {
			t.Errorf("%s.result: want 5, got %q", name, result)
		}
	}
}
