// Package export は生成した鍵ペアを外部の連分数攻撃ソルバー向けの
// 課題ファイル形式で書き出す。
//
// .data ファイルは 4x4 の行列を角括弧で表現したもの:
//
//	[
//	[1 0 e e]
//	[0 1 n-r1 n-r2]
//	[0 0 0 0]
//	[0 0 0 0]
//	]
//
// r1, r2 は [1.5*isqrt(n), 2.5*isqrt(n)) から一様に選ぶ。
// .result ファイルには秘密指数 d を10進数で書く。
package export

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strconv"

	"wiener-keygen-service/internal/domain"
	"wiener-keygen-service/internal/numtheory"
)

// Challenge は1件の課題ファイルの内容。
type Challenge struct {
	E       *big.Int
	N       *big.Int
	D       *big.Int
	Offsets [2]*big.Int // r1, r2
}

// NewChallenge は鍵ペアから課題を作る。r が nil の場合は crypto/rand を使う。
func NewChallenge(kp *domain.KeyPair, r io.Reader) (*Challenge, error) {
	if r == nil {
		r = rand.Reader
	}

	sqrtN, err := numtheory.ISqrt(kp.N)
	if err != nil {
		return nil, fmt.Errorf("computing isqrt(n): %w", err)
	}
	// floor(1.5*s), floor(2.5*s)
	low := new(big.Int).Mul(sqrtN, big.NewInt(3))
	low.Rsh(low, 1)
	high := new(big.Int).Mul(sqrtN, big.NewInt(5))
	high.Rsh(high, 1)
	if high.Cmp(low) <= 0 {
		return nil, fmt.Errorf("%w: offset range [%s, %s)", domain.ErrEmptyRange, low, high)
	}

	c := &Challenge{E: kp.E, N: kp.N, D: kp.D}
	width := new(big.Int).Sub(high, low)
	for i := range c.Offsets {
		off, err := rand.Int(r, width)
		if err != nil {
			return nil, fmt.Errorf("drawing offset: %w", err)
		}
		c.Offsets[i] = off.Add(off, low)
	}
	return c, nil
}

// WriteData は .data 形式の行列を書き出す。
func (c *Challenge) WriteData(w io.Writer) error {
	n1 := new(big.Int).Sub(c.N, c.Offsets[0])
	n2 := new(big.Int).Sub(c.N, c.Offsets[1])
	_, err := fmt.Fprintf(w, "[\n[1 0 %s %s]\n[0 1 %s %s]\n[0 0 0 0]\n[0 0 0 0]\n]", c.E, c.E, n1, n2)
	return err
}

// WriteResult は .result 形式で秘密指数を書き出す。
func (c *Challenge) WriteResult(w io.Writer) error {
	_, err := io.WriteString(w, c.D.String())
	return err
}

// WriteFiles は dir に <name>.data と <name>.result を作成する。
func (c *Challenge) WriteFiles(dir, name string) error {
	if err := writeFile(filepath.Join(dir, name+".data"), c.WriteData); err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, name+".result"), c.WriteResult)
}

// WriteBatch は鍵ペアを 0.data, 0.result, 1.data, ... の名前で dir に書き出す。
func WriteBatch(dir string, pairs []*domain.KeyPair, r io.Reader) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	for i, kp := range pairs {
		c, err := NewChallenge(kp, r)
		if err != nil {
			return fmt.Errorf("building challenge %d: %w", i, err)
		}
		if err := c.WriteFiles(dir, strconv.Itoa(i)); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, closeErr)
		}
	}()

	if err := write(f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
