package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"wiener-keygen-service/internal/domain"
	"wiener-keygen-service/internal/entropy"
	"wiener-keygen-service/internal/export"
	"wiener-keygen-service/internal/keygen"
	"wiener-keygen-service/internal/primality"
	"wiener-keygen-service/internal/wiener"
)

// generateOptions は generate コマンドの設定。
type generateOptions struct {
	Count   int
	Bits    int
	Workers int
	Rounds  int
	Seed    string
	OutDir  string
	NoBound bool
}

// generateCmd はサーバーを介さずに鍵ペアを生成し、課題ファイルを書き出す。
func generateCmd() *cobra.Command {
	opts := generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate key pairs locally and write solver challenge files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), opts, os.Stdout)
		},
	}
	cmd.Flags().IntVar(&opts.Count, "count", 1, "Number of key pairs")
	cmd.Flags().IntVar(&opts.Bits, "bits", 1024, "Modulus bit length (multiple of 4)")
	cmd.Flags().IntVar(&opts.Workers, "workers", runtime.NumCPU(), "Parallel generators")
	cmd.Flags().IntVar(&opts.Rounds, "rounds", primality.DefaultRounds, "Miller-Rabin rounds")
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "Derive all randomness from this seed (reproducible output)")
	cmd.Flags().StringVar(&opts.OutDir, "out", "data", "Output directory for <i>.data and <i>.result")
	cmd.Flags().BoolVar(&opts.NoBound, "no-bound", false, "Do not enforce 36*d^4 < n")
	return cmd
}

func runGenerate(ctx context.Context, opts generateOptions, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Count < 1 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidBatchSize, opts.Count)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	var src *entropy.Source
	if opts.Seed != "" {
		src = entropy.NewSource(opts.Seed)
	}
	// streamFor はシード指定時にラベルごとの決定的ストリームを返す
	streamFor := func(label string) (io.Reader, error) {
		if src == nil {
			return entropy.Default(), nil
		}
		return src.Stream(label)
	}

	cfg := keygen.DefaultConfig()
	cfg.EnforceWienerBound = !opts.NoBound

	start := time.Now()
	pairs := make([]*domain.KeyPair, opts.Count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i := range opts.Count {
		g.Go(func() error {
			r, err := streamFor(fmt.Sprintf("keypair/%d", i))
			if err != nil {
				return err
			}
			kp, err := keygen.New(r, opts.Rounds, cfg).Generate(gctx, opts.Bits)
			if err != nil {
				return fmt.Errorf("key pair %d: %w", i, err)
			}
			slog.DebugContext(gctx, "key pair generated", "index", i, "bits", opts.Bits)
			pairs[i] = kp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	offsets, err := streamFor("challenge")
	if err != nil {
		return err
	}
	if err := export.WriteBatch(opts.OutDir, pairs, offsets); err != nil {
		return err
	}

	vulnerable := 0
	for _, kp := range pairs {
		if rec, ok := wiener.Recover(kp.E, kp.N); ok && rec.D.Cmp(kp.D) == 0 {
			vulnerable++
		}
	}
	slog.InfoContext(ctx, "generation finished",
		"count", opts.Count,
		"bits", opts.Bits,
		"vulnerable", vulnerable,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	fmt.Fprintf(w, "Wrote %d key pair(s) to %s (recoverable by continued fractions: %d/%d)\n",
		opts.Count, opts.OutDir, vulnerable, opts.Count)
	return nil
}

// attackCmd は公開鍵 (e, n) に連分数攻撃を行う。
func attackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attack <e> <n>",
		Short: "Recover d from a public key with the continued fraction attack",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAttack(args[0], args[1], os.Stdout)
		},
	}
}

func runAttack(eStr, nStr string, w io.Writer) error {
	e, ok := new(big.Int).SetString(eStr, 10)
	if !ok || e.Sign() <= 0 {
		return fmt.Errorf("invalid public exponent %q", eStr)
	}
	n, ok := new(big.Int).SetString(nStr, 10)
	if !ok || n.Sign() <= 0 {
		return fmt.Errorf("invalid modulus %q", nStr)
	}

	rec, ok := wiener.Recover(e, n)
	if !ok {
		return fmt.Errorf("no convergent of e/n yields a factorization of n")
	}
	fmt.Fprintf(w, "d:           %s\n", rec.D)
	fmt.Fprintf(w, "p:           %s\n", rec.P)
	fmt.Fprintf(w, "q:           %s\n", rec.Q)
	fmt.Fprintf(w, "convergent:  %d\n", rec.Index)
	return nil
}
