package primegen

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"wiener-keygen-service/internal/domain"
	"wiener-keygen-service/internal/entropy"
)

// zeroReader は常に 0 を返す退化した乱数源。
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func TestGenerator_GeneratePrime(t *testing.T) {
	g := NewGenerator(nil, nil, DefaultConfig())
	ctx := context.Background()

	for _, bits := range []int{2, 3, 8, 16, 64, 256, 512} {
		p, err := g.GeneratePrime(ctx, bits)
		if err != nil {
			t.Fatalf("GeneratePrime(%d): %v", bits, err)
		}
		if p.BitLen() != bits {
			t.Errorf("GeneratePrime(%d): want bit length %d, got %d", bits, bits, p.BitLen())
		}
		if p.Bit(0) != 1 {
			t.Errorf("GeneratePrime(%d): want odd, got %s", bits, p)
		}
		if !p.ProbablyPrime(30) {
			t.Errorf("GeneratePrime(%d): %s is not prime", bits, p)
		}
	}
}

func TestGenerator_GeneratePrime_InvalidBits(t *testing.T) {
	g := NewGenerator(nil, nil, DefaultConfig())

	_, err := g.GeneratePrime(context.Background(), 1)
	if !errors.Is(err, domain.ErrInvalidBitLength) {
		t.Errorf("want ErrInvalidBitLength, got %v", err)
	}
}

func TestGenerator_GeneratePrimeInRange(t *testing.T) {
	g := NewGenerator(nil, nil, DefaultConfig())
	ctx := context.Background()

	tests := []struct {
		low, high int64
	}{
		{2, 3},
		{10, 12},
		{14, 18},
		{1000, 1100},
		{1 << 40, 1<<40 + 10000},
	}
	for _, tt := range tests {
		low, high := big.NewInt(tt.low), big.NewInt(tt.high)
		for i := 0; i < 20; i++ {
			r, err := g.GeneratePrimeInRange(ctx, low, high)
			if err != nil {
				t.Fatalf("GeneratePrimeInRange(%d, %d): %v", tt.low, tt.high, err)
			}
			if r.Cmp(low) < 0 || r.Cmp(high) >= 0 {
				t.Fatalf("GeneratePrimeInRange(%d, %d): %s out of range", tt.low, tt.high, r)
			}
			if !r.ProbablyPrime(30) {
				t.Fatalf("GeneratePrimeInRange(%d, %d): %s is not prime", tt.low, tt.high, r)
			}
		}
	}
}

func TestGenerator_GeneratePrimeInRange_Empty(t *testing.T) {
	g := NewGenerator(nil, nil, DefaultConfig())
	ctx := context.Background()

	_, err := g.GeneratePrimeInRange(ctx, big.NewInt(10), big.NewInt(10))
	if !errors.Is(err, domain.ErrEmptyRange) {
		t.Errorf("want ErrEmptyRange, got %v", err)
	}

	_, err = g.GeneratePrimeInRange(ctx, big.NewInt(20), big.NewInt(10))
	if !errors.Is(err, domain.ErrEmptyRange) {
		t.Errorf("want ErrEmptyRange for inverted range, got %v", err)
	}
}

func TestGenerator_DegenerateSourceTimesOut(t *testing.T) {
	g := NewGenerator(nil, zeroReader{}, Config{AttemptFactor: 2})
	ctx := context.Background()

	// 乱数が常に 0 なら候補は常に 2^7+1 = 129 = 3*43
	_, err := g.GeneratePrime(ctx, 8)
	if !errors.Is(err, domain.ErrGenerationTimeout) {
		t.Errorf("want ErrGenerationTimeout, got %v", err)
	}

	// 候補は常に low = 24
	_, err = g.GeneratePrimeInRange(ctx, big.NewInt(24), big.NewInt(30))
	if !errors.Is(err, domain.ErrGenerationTimeout) {
		t.Errorf("want ErrGenerationTimeout, got %v", err)
	}
}

func TestGenerator_CancelledContext(t *testing.T) {
	g := NewGenerator(nil, nil, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.GeneratePrime(ctx, 512)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}

func TestGenerator_SeededSourceIsReproducible(t *testing.T) {
	src := entropy.NewSource("primegen-test")
	ctx := context.Background()

	gen := func() *big.Int {
		r, err := src.Stream("prime")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		p, err := NewGenerator(nil, r, DefaultConfig()).GeneratePrime(ctx, 128)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return p
	}

	if a, b := gen(), gen(); a.Cmp(b) != 0 {
		t.Errorf("want identical primes from identical streams, got %s and %s", a, b)
	}
}

func TestHasSmallFactor(t *testing.T) {
	tests := []struct {
		n    int64
		want bool
	}{
		{3, false},
		{53, false},
		{59, false},
		{64, true},
		{129, true},
		{2809, true},  // 53^2
		{3481, false}, // 59^2 は小さな素数で割り切れない
	}
	for _, tt := range tests {
		if got := hasSmallFactor(big.NewInt(tt.n)); got != tt.want {
			t.Errorf("hasSmallFactor(%d): want %v, got %v", tt.n, tt.want, got)
		}
	}
}
