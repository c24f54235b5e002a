package keygen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"rsa-key-service/internal/domain"
)

const (
	// DefaultPublicExponent は公開指数の既定値。
	DefaultPublicExponent = 3
	// DefaultMinBits はモジュラスの最小ビット長。
	DefaultMinBits = 2048
)

// Assembler は素数ペアを探索してRSA鍵を組み立てる。
type Assembler struct {
	finder  *Finder
	minBits int
	workers int
	metrics *Metrics
	tracer  trace.Tracer
}

// Option はAssemblerの設定を変更する。
type Option func(*Assembler)

// WithMinBits はモジュラスの最小ビット長を設定する。
func WithMinBits(bits int) Option {
	return func(a *Assembler) {
		if bits > 0 {
			a.minBits = bits
		}
	}
}

// WithWorkers は素数を並行に探索するゴルーチン数を設定する。
func WithWorkers(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithMetrics はメトリクスの記録先を設定する。
func WithMetrics(m *Metrics) Option {
	return func(a *Assembler) {
		a.metrics = m
	}
}

// NewAssembler は新しいAssemblerを生成する。
// finderがnilの場合はcrypto/randとDefaultRoundsを使うFinderを生成する。
func NewAssembler(finder *Finder, opts ...Option) *Assembler {
	a := &Assembler{
		minBits: DefaultMinBits,
		workers: 1,
		tracer:  otel.Tracer("rsa-key-service/internal/keygen"),
	}
	for _, opt := range opts {
		opt(a)
	}
	if finder == nil {
		finder = NewFinder(NewSampler(nil), NewMillerRabin(nil, DefaultRounds), a.metrics)
	}
	a.finder = finder
	return a
}

// ValidateParams は鍵生成パラメータを検証する。乱数は消費しない。
func (a *Assembler) ValidateParams(bits, publicExponent int) error {
	if bits <= 0 || bits%16 != 0 {
		return fmt.Errorf("%w: %d is not a positive multiple of 16", domain.ErrInvalidBitLength, bits)
	}
	if bits < a.minBits {
		return fmt.Errorf("%w: %d bits, minimum is %d", domain.ErrKeySizeTooSmall, bits, a.minBits)
	}
	if publicExponent < 3 || publicExponent%2 == 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidPublicExponent, publicExponent)
	}
	return nil
}

// GenerateKey は bits ビットのモジュラスと公開指数 publicExponent を持つRSA鍵を生成する。
//
// 各素数は bits/2 ビットで探索する。新しい素数 q は見つかった順に保持している
// 素数 p と組み合わせて検証し、どれとも組めなければ後の候補として保持する。
// ctxの終了で探索全体を中断し、途中状態は破棄する。
func (a *Assembler) GenerateKey(ctx context.Context, bits, publicExponent int) (*domain.RSAKey, error) {
	if err := a.ValidateParams(bits, publicExponent); err != nil {
		return nil, err
	}

	ctx, span := a.tracer.Start(ctx, "keygen.GenerateKey", trace.WithAttributes(
		attribute.Int("keygen.bits", bits),
		attribute.Int("keygen.public_exponent", publicExponent),
		attribute.Int("keygen.workers", a.workers),
	))
	defer span.End()

	start := time.Now()
	key, found, err := a.search(ctx, bits/2, big.NewInt(int64(publicExponent)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	elapsed := time.Since(start)
	a.metrics.observeDuration(elapsed.Seconds())
	span.SetAttributes(attribute.Int("keygen.primes_found", found))

	slog.InfoContext(ctx, "rsa key generated",
		"bits", key.Bits(),
		"public_exponent", publicExponent,
		"primes_found", found,
		"elapsed", elapsed,
	)
	return key, nil
}

// search はワーカーが見つけた素数を単一のループでペアリングする。
// 保持済み素数の集合はこのループだけが参照する。
func (a *Assembler) search(ctx context.Context, primeBits int, e *big.Int) (*domain.RSAKey, int, error) {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(sctx)
	primes := make(chan *big.Int)
	for i := 0; i < a.workers; i++ {
		g.Go(func() error {
			for {
				q, err := a.finder.FindPrime(gctx, primeBits)
				if err != nil {
					return err
				}
				select {
				case primes <- q:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		})
	}

	var (
		stored []*big.Int
		key    *domain.RSAKey
	)
loop:
	for {
		select {
		case q := <-primes:
			if key = a.pair(ctx, stored, q, e); key != nil {
				break loop
			}
			stored = append(stored, q)
			slog.DebugContext(ctx, "prime stored for later pairing", "stored", len(stored))
		case <-gctx.Done():
			break loop
		}
	}

	cancel()
	err := g.Wait()
	found := len(stored)
	if key != nil {
		return key, found + 1, nil
	}
	if err == nil || errors.Is(err, context.Canceled) {
		// 呼び出し元のctxの終了を優先して返す
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
	}
	return nil, found, fmt.Errorf("searching primes: %w", err)
}

// pair は q を保持済みの素数と順に組み合わせ、最初に条件を満たした鍵を返す。
func (a *Assembler) pair(ctx context.Context, stored []*big.Int, q, e *big.Int) *domain.RSAKey {
	for _, p := range stored {
		modulus, totient, ok := CheckPair(p, q)
		if !ok {
			a.metrics.pairRejected("too_close")
			slog.DebugContext(ctx, "prime pair rejected", "reason", "too_close")
			continue
		}
		if new(big.Int).GCD(nil, nil, e, totient).Cmp(one) != 0 {
			a.metrics.pairRejected("not_coprime")
			continue
		}
		return &domain.RSAKey{
			Modulus:         modulus,
			PublicExponent:  int(e.Int64()),
			PrivateExponent: new(big.Int).ModInverse(e, totient),
			P:               new(big.Int).Set(p),
			Q:               new(big.Int).Set(q),
		}
	}
	return nil
}
