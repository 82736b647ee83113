// Package entropy は鍵生成で使う乱数源を提供する。
//
// 通常は crypto/rand を使う。研究用に同じ鍵集合を再現したい場合は
// シードから決定的なストリームを導出する Source を使う。
package entropy

import (
	"crypto/rand"
	"crypto/sha512"
	"fmt"
	"io"
	mrand "math/rand/v2"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	keyLen       = 32
)

var salt = []byte("wiener-keygen-service/entropy/v1")

// Default は暗号論的に安全な既定の乱数源を返す。
func Default() io.Reader {
	return rand.Reader
}

// Source はシードから導出した決定的な乱数ストリームの生成元。
type Source struct {
	key []byte
}

// NewSource はシード文字列から Source を生成する。
// Argon2id で鍵を伸長し、ストリームごとに HKDF でサブ鍵を導出する。
func NewSource(seed string) *Source {
	return &Source{
		key: argon2.IDKey([]byte(seed), salt, argonTime, argonMemory, argonThreads, keyLen),
	}
}

// Stream はラベルごとに独立した決定的ストリームを返す。
// 返される io.Reader はゴルーチン間で共有してはならない。
func (s *Source) Stream(label string) (io.Reader, error) {
	kdf := hkdf.New(sha512.New, s.key, salt, []byte(label))

	var seed [keyLen]byte
	if _, err := io.ReadFull(kdf, seed[:]); err != nil {
		return nil, fmt.Errorf("deriving stream seed: %w", err)
	}
	return mrand.NewChaCha8(seed), nil
}
