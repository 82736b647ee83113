// Package numtheory は多倍長整数に対する基本的な整数論演算を提供する。
package numtheory

import (
	"fmt"
	"math/big"

	"wiener-keygen-service/internal/domain"
)

var one = big.NewInt(1)

// GCD はユークリッドの互除法で最大公約数を計算する。
// 結果は常に非負で、GCD(0, 0) = 0。
func GCD(a, b *big.Int) *big.Int {
	x := new(big.Int).Abs(a)
	y := new(big.Int).Abs(b)

	for y.Sign() != 0 {
		x, y = y, x.Mod(x, y)
	}
	return x
}

// extendedGCD は ax + by = gcd(a, b) を満たす (gcd, x, y) を返す。
func extendedGCD(a, b *big.Int) (g, x, y *big.Int) {
	oldR, r := new(big.Int).Set(a), new(big.Int).Set(b)
	oldS, s := big.NewInt(1), big.NewInt(0)
	oldT, t := big.NewInt(0), big.NewInt(1)

	q := new(big.Int)
	tmp := new(big.Int)
	for r.Sign() != 0 {
		q.Div(oldR, r)
		oldR, r = r, new(big.Int).Sub(oldR, tmp.Mul(q, r))
		oldS, s = s, new(big.Int).Sub(oldS, tmp.Mul(q, s))
		oldT, t = t, new(big.Int).Sub(oldT, tmp.Mul(q, t))
	}
	return oldR, oldS, oldT
}

// ModInverse は拡張ユークリッドの互除法で a*x ≡ 1 (mod m) を満たす x を [0, m) で返す。
// gcd(a, m) ≠ 1 の場合は domain.ErrNoInverse を返す。
func ModInverse(a, m *big.Int) (*big.Int, error) {
	if m.Sign() <= 0 {
		return nil, fmt.Errorf("%w: modulus %s must be positive", domain.ErrNoInverse, m)
	}

	// 負の a も法 m で正規化してから計算する
	aa := new(big.Int).Mod(a, m)
	g, x, _ := extendedGCD(aa, m)
	if g.Cmp(one) != 0 {
		return nil, fmt.Errorf("%w: gcd(%s, %s) = %s", domain.ErrNoInverse, a, m, g)
	}
	return x.Mod(x, m), nil
}

// ISqrt は r*r <= n を満たす最大の整数 r を返す。
// 浮動小数点を使わず整数上のニュートン法で求めるため任意の桁数で正確。
func ISqrt(n *big.Int) (*big.Int, error) {
	if n.Sign() < 0 {
		return nil, fmt.Errorf("%w: isqrt(%s)", domain.ErrNegativeOperand, n)
	}
	if n.Cmp(one) <= 0 {
		return new(big.Int).Set(n), nil
	}

	// 初期値 2^ceil(bitlen/2) は必ず sqrt(n) 以上
	x := new(big.Int).Lsh(one, uint(n.BitLen()+1)/2)
	y := new(big.Int)
	for {
		// y = (x + n/x) / 2
		y.Quo(n, x)
		y.Add(y, x)
		y.Rsh(y, 1)
		if y.Cmp(x) >= 0 {
			return x, nil
		}
		x, y = y, x
	}
}

// Totient は素数 p, q に対して φ(pq) = (p-1)(q-1) を返す。
// p, q が素数であることは呼び出し側の責任。
func Totient(p, q *big.Int) *big.Int {
	pm1 := new(big.Int).Sub(p, one)
	qm1 := new(big.Int).Sub(q, one)
	return pm1.Mul(pm1, qm1)
}

// IsCoprime は gcd(a, b) = 1 かどうかを返す。
func IsCoprime(a, b *big.Int) bool {
	return GCD(a, b).Cmp(one) == 0
}
