// Package domain はドメインモデルとビジネスルールを定義する。
package domain

import (
	"math/big"
	"time"
)

// KeyPair はWiener攻撃に脆弱なRSA鍵の三つ組 (e, n, d) を表す。
// 生成後に変更されることはない。
type KeyPair struct {
	E *big.Int // 公開指数
	N *big.Int // 法 n = p*q
	D *big.Int // 秘密指数

	p, q *big.Int
}

// NewKeyPair は素因数 p, q を保持した鍵ペアを生成する。
func NewKeyPair(e, n, d, p, q *big.Int) *KeyPair {
	return &KeyPair{E: e, N: n, D: d, p: p, q: q}
}

// Factors は n の素因数 (p, q) を返す。永続化された鍵では nil を返す。
func (k *KeyPair) Factors() (p, q *big.Int) {
	return k.p, k.q
}

// StoredKeyPair は永続化された鍵ペアエンティティを表す。
// 秘密指数はKMSで暗号化された状態で保持する。
type StoredKeyPair struct {
	ID         string
	Bits       int
	E          *big.Int
	N          *big.Int
	EncryptedD []byte
	Vulnerable bool
	CreatedAt  time.Time
}

// KeyPairMetadata は鍵ペアの公開情報を表す（秘密指数を含まない）。
type KeyPairMetadata struct {
	ID         string
	Bits       int
	E          *big.Int
	N          *big.Int
	Vulnerable bool
	CreatedAt  time.Time
}

// RevealedKeyPair は秘密指数を復号済みの鍵ペアを表す。
type RevealedKeyPair struct {
	KeyPairMetadata
	D *big.Int
}
