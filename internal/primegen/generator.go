// Package primegen は指定ビット長・指定範囲の確率的素数を生成する。
package primegen

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"wiener-keygen-service/internal/domain"
	"wiener-keygen-service/internal/primality"
)

// DefaultAttemptFactor は探索ループの試行上限をビット長の何倍にするかを表す。
const DefaultAttemptFactor = 100

var (
	smallPrimes = []uint64{3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47, 53}

	// 3 から 53 までの素数の積。uint64 に収まる。
	smallPrimesProduct = new(big.Int).SetUint64(16294579238595022365)
	largestSmallPrime  = big.NewInt(53)
)

// Config は素数探索の設定。
type Config struct {
	Rounds        int // Miller-Rabin の試行回数
	AttemptFactor int // 試行上限 = ビット長 * AttemptFactor
}

// DefaultConfig は既定の設定を返す。
func DefaultConfig() Config {
	return Config{
		Rounds:        primality.DefaultRounds,
		AttemptFactor: DefaultAttemptFactor,
	}
}

// Generator は乱数源と素数判定器を使って素数を探索する。
// 状態を持たないため、乱数源がゴルーチン安全なら並行に使える。
type Generator struct {
	tester primality.Tester
	rand   io.Reader
	cfg    Config
}

// NewGenerator は新しい Generator を生成する。
// tester が nil の場合は r を底の選択に使う Miller-Rabin を使う。
func NewGenerator(tester primality.Tester, r io.Reader, cfg Config) *Generator {
	if r == nil {
		r = rand.Reader
	}
	if tester == nil {
		tester = primality.NewMillerRabin(r)
	}
	if cfg.Rounds < 1 {
		cfg.Rounds = primality.DefaultRounds
	}
	if cfg.AttemptFactor < 1 {
		cfg.AttemptFactor = DefaultAttemptFactor
	}
	return &Generator{tester: tester, rand: r, cfg: cfg}
}

// Config は Generator の設定を返す。
func (g *Generator) Config() Config {
	return g.cfg
}

// GeneratePrime は最上位ビットと最下位ビットを立てたちょうど bits ビットの素数を返す。
func (g *Generator) GeneratePrime(ctx context.Context, bits int) (*big.Int, error) {
	if bits < 2 {
		return nil, fmt.Errorf("%w: prime of %d bits", domain.ErrInvalidBitLength, bits)
	}

	limit := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	maxAttempts := bits * g.cfg.AttemptFactor
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		candidate, err := rand.Int(g.rand, limit)
		if err != nil {
			return nil, fmt.Errorf("drawing prime candidate: %w", err)
		}
		candidate.SetBit(candidate, bits-1, 1)
		candidate.SetBit(candidate, 0, 1)

		ok, err := g.isPrime(candidate)
		if err != nil {
			return nil, err
		}
		if ok {
			return candidate, nil
		}
	}
	return nil, fmt.Errorf("%w: no %d-bit prime after %d candidates", domain.ErrGenerationTimeout, bits, maxAttempts)
}

// GeneratePrimeInRange は [low, high) から一様に選んだ候補を判定し、最初に見つかった素数を返す。
func (g *Generator) GeneratePrimeInRange(ctx context.Context, low, high *big.Int) (*big.Int, error) {
	if high.Cmp(low) <= 0 {
		return nil, fmt.Errorf("%w: [%s, %s)", domain.ErrEmptyRange, low, high)
	}

	width := new(big.Int).Sub(high, low)
	maxAttempts := high.BitLen() * g.cfg.AttemptFactor
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		candidate, err := rand.Int(g.rand, width)
		if err != nil {
			return nil, fmt.Errorf("drawing prime candidate: %w", err)
		}
		candidate.Add(candidate, low)

		ok, err := g.isPrime(candidate)
		if err != nil {
			return nil, err
		}
		if ok {
			return candidate, nil
		}
	}
	return nil, fmt.Errorf("%w: no prime in [%s, %s) after %d candidates", domain.ErrGenerationTimeout, low, high, maxAttempts)
}

func (g *Generator) isPrime(n *big.Int) (bool, error) {
	if hasSmallFactor(n) {
		return false, nil
	}
	ok, err := g.tester.IsProbablyPrime(n, g.cfg.Rounds)
	if err != nil {
		return false, fmt.Errorf("testing primality: %w", err)
	}
	return ok, nil
}

// hasSmallFactor は n が小さな素数で割り切れる合成数かどうかを返す。
// 小さな素数そのものは false。
func hasSmallFactor(n *big.Int) bool {
	if n.Cmp(largestSmallPrime) <= 0 {
		return false
	}
	if n.Bit(0) == 0 {
		return true
	}
	r := new(big.Int).Mod(n, smallPrimesProduct).Uint64()
	for _, p := range smallPrimes {
		if r%p == 0 {
			return true
		}
	}
	return false
}
