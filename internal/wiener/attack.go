// Package wiener は公開鍵 (e, n) の連分数展開から小さな秘密指数 d を復元する。
// 生成した鍵が実際に脆弱であることの検証に使う。
package wiener

import (
	"math/big"

	"wiener-keygen-service/internal/numtheory"
)

var one = big.NewInt(1)

// Convergent は e/n の連分数展開の近似分数 k/d。
type Convergent struct {
	K *big.Int
	D *big.Int
}

// Recovery は攻撃で復元した値。
type Recovery struct {
	D   *big.Int
	Phi *big.Int
	P   *big.Int
	Q   *big.Int
	// Index は d が見つかった近似分数の位置（0 始まり）。
	Index int
}

// Convergents は e/n の近似分数を順に返す。
func Convergents(e, n *big.Int) []Convergent {
	a := new(big.Int).Set(e)
	b := new(big.Int).Set(n)

	// h_{-1}=1, h_{-2}=0, k_{-1}=0, k_{-2}=1
	h0, h1 := big.NewInt(1), big.NewInt(0)
	k0, k1 := big.NewInt(0), big.NewInt(1)

	var out []Convergent
	q := new(big.Int)
	r := new(big.Int)
	for b.Sign() != 0 {
		q.QuoRem(a, b, r)

		h := new(big.Int).Mul(q, h0)
		h.Add(h, h1)
		k := new(big.Int).Mul(q, k0)
		k.Add(k, k1)
		out = append(out, Convergent{K: h, D: k})

		h1, h0 = h0, h
		k1, k0 = k0, k
		a, b = b, new(big.Int).Set(r)
	}
	return out
}

// Recover は (e, n) から秘密指数の復元を試みる。
// 鍵が脆弱でない場合は ok = false を返す。
func Recover(e, n *big.Int) (rec *Recovery, ok bool) {
	for i, c := range Convergents(e, n) {
		if c.K.Sign() == 0 || c.D.Sign() == 0 {
			continue
		}

		// e*d - 1 = k*φ
		ed1 := new(big.Int).Mul(e, c.D)
		ed1.Sub(ed1, one)
		phi, rem := new(big.Int).QuoRem(ed1, c.K, new(big.Int))
		if rem.Sign() != 0 {
			continue
		}

		// p, q は x^2 - (n - φ + 1)x + n = 0 の根
		s := new(big.Int).Sub(n, phi)
		s.Add(s, one)
		disc := new(big.Int).Mul(s, s)
		disc.Sub(disc, new(big.Int).Lsh(n, 2))
		if disc.Sign() < 0 {
			continue
		}
		root, err := numtheory.ISqrt(disc)
		if err != nil || new(big.Int).Mul(root, root).Cmp(disc) != 0 {
			continue
		}

		p := new(big.Int).Add(s, root)
		q := new(big.Int).Sub(s, root)
		if p.Bit(0) != 0 || q.Bit(0) != 0 {
			continue
		}
		p.Rsh(p, 1)
		q.Rsh(q, 1)
		if q.Sign() <= 0 || new(big.Int).Mul(p, q).Cmp(n) != 0 {
			continue
		}

		return &Recovery{D: c.D, Phi: phi, P: p, Q: q, Index: i}, true
	}
	return nil, false
}
