// Package primality は多倍長整数の確率的素数判定を提供する。
package primality

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// DefaultRounds は暗号用途で推奨される Miller-Rabin の試行回数。
// 誤判定確率は 4^(-rounds) 以下。
const DefaultRounds = 20

var (
	one   = big.NewInt(1)
	two   = big.NewInt(2)
	three = big.NewInt(3)
)

// Tester は確率的素数判定のインターフェース。
type Tester interface {
	IsProbablyPrime(n *big.Int, rounds int) (bool, error)
}

// MillerRabin は Miller-Rabin 判定を行う。
// 底の選択には注入された乱数源を使う。
type MillerRabin struct {
	rand io.Reader
}

// NewMillerRabin は乱数源 r を使う MillerRabin を生成する。r が nil の場合は crypto/rand を使う。
func NewMillerRabin(r io.Reader) *MillerRabin {
	if r == nil {
		r = rand.Reader
	}
	return &MillerRabin{rand: r}
}

// IsProbablyPrime は n が素数である可能性が高いかを判定する。
// 合成数の証拠が見つかった時点で false を返す。エラーは乱数源の失敗時のみ。
func (m *MillerRabin) IsProbablyPrime(n *big.Int, rounds int) (bool, error) {
	if n.Cmp(two) < 0 {
		return false, nil
	}
	if n.Cmp(three) <= 0 {
		return true, nil
	}
	if n.Bit(0) == 0 {
		return false, nil
	}
	if rounds < 1 {
		rounds = 1
	}

	// n-1 = 2^s * d (d は奇数)
	nm1 := new(big.Int).Sub(n, one)
	s := nm1.TrailingZeroBits()
	d := new(big.Int).Rsh(nm1, s)

	// 底 a は [2, n-2] から選ぶ
	baseRange := new(big.Int).Sub(n, three)
	x := new(big.Int)
	for i := 0; i < rounds; i++ {
		a, err := rand.Int(m.rand, baseRange)
		if err != nil {
			return false, fmt.Errorf("drawing witness base: %w", err)
		}
		a.Add(a, two)

		x.Exp(a, d, n)
		if x.Cmp(one) == 0 || x.Cmp(nm1) == 0 {
			continue
		}

		composite := true
		for r := uint(1); r < s; r++ {
			x.Mul(x, x)
			x.Mod(x, n)
			if x.Cmp(nm1) == 0 {
				composite = false
				break
			}
		}
		if composite {
			return false, nil
		}
	}
	return true, nil
}
