// Package keygen はWiener連分数攻撃に脆弱なRSA鍵ペアを生成する。
//
// 秘密指数 d を n の 1/4 程度のビット長に制限することで、公開鍵 (e, n) の
// 連分数展開から d を復元できる鍵を作る。研究・教育用途専用。
package keygen

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"

	"wiener-keygen-service/internal/domain"
	"wiener-keygen-service/internal/numtheory"
	"wiener-keygen-service/internal/primegen"
)

const (
	// MinBits は生成可能な最小の法のビット長。
	MinBits = 8
	// MinBoundedBits は 36*d^4 < n を課す場合の最小のビット長。
	// 12 ビット以下では d >= 2 の候補がほとんど境界を満たさない。
	MinBoundedBits = 16
)

var (
	one            = big.NewInt(1)
	two            = big.NewInt(2)
	wienerConstant = big.NewInt(36)
)

// errRetry は新しい素数ペアで再試行できる失敗を表す。
var errRetry = errors.New("retry with fresh primes")

// PrimeSource は素数生成のインターフェース。
type PrimeSource interface {
	GeneratePrime(ctx context.Context, bits int) (*big.Int, error)
	GeneratePrimeInRange(ctx context.Context, low, high *big.Int) (*big.Int, error)
}

// Config は鍵生成の設定。
type Config struct {
	// EnforceWienerBound が true の場合、36*d^4 < n を満たす d のみを採用する。
	EnforceWienerBound bool
	// AttemptFactor は d の探索上限を nbits の何倍にするか。
	AttemptFactor int
	// MaxPairAttempts は素数ペアを引き直す最大回数。
	MaxPairAttempts int
}

// DefaultConfig は既定の設定を返す。
func DefaultConfig() Config {
	return Config{
		EnforceWienerBound: true,
		AttemptFactor:      primegen.DefaultAttemptFactor,
		MaxPairAttempts:    16,
	}
}

// Generator は脆弱なRSA鍵ペアを生成する。
// 呼び出し間で状態を共有しない。
type Generator struct {
	primes PrimeSource
	rand   io.Reader
	cfg    Config
}

// NewGenerator は新しい Generator を生成する。r が nil の場合は crypto/rand を使う。
func NewGenerator(primes PrimeSource, r io.Reader, cfg Config) *Generator {
	if r == nil {
		r = rand.Reader
	}
	if cfg.AttemptFactor < 1 {
		cfg.AttemptFactor = primegen.DefaultAttemptFactor
	}
	if cfg.MaxPairAttempts < 1 {
		cfg.MaxPairAttempts = 1
	}
	return &Generator{primes: primes, rand: r, cfg: cfg}
}

// New は単一の乱数源 r から素数生成器を含めて Generator を組み立てる。
func New(r io.Reader, rounds int, cfg Config) *Generator {
	if r == nil {
		r = rand.Reader
	}
	primes := primegen.NewGenerator(nil, r, primegen.Config{
		Rounds:        rounds,
		AttemptFactor: cfg.AttemptFactor,
	})
	return NewGenerator(primes, r, cfg)
}

// Generate は nbits ビットの法を持つ脆弱な鍵ペア (e, n, d) を生成する。
// nbits は 4 の倍数かつ MinBitsFor の値以上でなければならない。
func (g *Generator) Generate(ctx context.Context, nbits int) (*domain.KeyPair, error) {
	if minBits := MinBitsFor(g.cfg); nbits < minBits || nbits%4 != 0 {
		return nil, fmt.Errorf("%w: %d (must be a multiple of 4 and at least %d)", domain.ErrInvalidBitLength, nbits, minBits)
	}

	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxPairAttempts; attempt++ {
		kp, err := g.generateOnce(ctx, nbits)
		if err == nil {
			return kp, nil
		}
		if !errors.Is(err, errRetry) {
			return nil, err
		}
		lastErr = err
		slog.DebugContext(ctx, "redrawing prime pair",
			"operation", "generate_key_pair",
			"nbits", nbits,
			"attempt", attempt,
			"error", err,
		)
	}
	return nil, fmt.Errorf("%w: no key pair after %d prime pairs: %v", domain.ErrGenerationTimeout, g.cfg.MaxPairAttempts, lastErr)
}

func (g *Generator) generateOnce(ctx context.Context, nbits int) (*domain.KeyPair, error) {
	p, q, err := g.selectPrimePair(ctx, nbits)
	if err != nil {
		return nil, err
	}

	n := new(big.Int).Mul(p, q)
	phi := numtheory.Totient(p, q)

	d, err := g.sampleD(ctx, nbits, n, phi)
	if err != nil {
		return nil, err
	}

	e, err := numtheory.ModInverse(d, phi)
	if err != nil {
		// sampleD が gcd(d, φ) = 1 を保証しているため到達しない
		return nil, fmt.Errorf("deriving public exponent: invariant violated: %w", err)
	}

	return domain.NewKeyPair(e, n, d, p, q), nil
}

// selectPrimePair は p < q < 2p かつ p*q < 2^nbits を満たす素数ペアを選ぶ。
func (g *Generator) selectPrimePair(ctx context.Context, nbits int) (p, q *big.Int, err error) {
	p, err = g.primes.GeneratePrime(ctx, nbits/2)
	if err != nil {
		return nil, nil, fmt.Errorf("generating p: %w", err)
	}

	low := new(big.Int).Add(p, one)
	high := new(big.Int).Lsh(p, 1)

	// q <= (2^nbits - 1) / p なら n は nbits ビットに収まる
	ceiling := new(big.Int).Lsh(one, uint(nbits))
	ceiling.Sub(ceiling, one)
	ceiling.Quo(ceiling, p)
	ceiling.Add(ceiling, one)
	if ceiling.Cmp(high) < 0 {
		high = ceiling
	}

	q, err = g.primes.GeneratePrimeInRange(ctx, low, high)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyRange) || errors.Is(err, domain.ErrGenerationTimeout) {
			return nil, nil, fmt.Errorf("%w: generating q: %v", errRetry, err)
		}
		return nil, nil, fmt.Errorf("generating q: %w", err)
	}
	return p, q, nil
}

// sampleD は nbits/4 ビット以下の d を gcd(d, φ) = 1 となるまで一様に引く。
func (g *Generator) sampleD(ctx context.Context, nbits int, n, phi *big.Int) (*big.Int, error) {
	limit := new(big.Int).Lsh(one, uint(nbits/4))
	maxAttempts := nbits * g.cfg.AttemptFactor

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		d, err := rand.Int(g.rand, limit)
		if err != nil {
			return nil, fmt.Errorf("drawing private exponent: %w", err)
		}
		// d = 1 は e = 1 となり鍵として意味を持たない
		if d.Cmp(two) < 0 {
			continue
		}
		if !numtheory.IsCoprime(d, phi) {
			continue
		}
		if g.cfg.EnforceWienerBound && !SatisfiesWienerBound(d, n) {
			continue
		}
		return d, nil
	}
	return nil, fmt.Errorf("%w: %w: no private exponent after %d candidates", errRetry, domain.ErrGenerationTimeout, maxAttempts)
}

// MinBitsFor は cfg で生成できる最小の法のビット長を返す。
func MinBitsFor(cfg Config) int {
	if cfg.EnforceWienerBound {
		return MinBoundedBits
	}
	return MinBits
}

// SatisfiesWienerBound は 36*d^4 < n、すなわち d < n^(1/4)/sqrt(6) かどうかを返す。
func SatisfiesWienerBound(d, n *big.Int) bool {
	d4 := new(big.Int).Mul(d, d)
	d4.Mul(d4, d4)
	d4.Mul(d4, wienerConstant)
	return d4.Cmp(n) < 0
}
