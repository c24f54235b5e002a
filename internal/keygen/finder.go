package keygen

import (
	"context"
	"fmt"
	"math/big"
)

// Finder は Sampler, HasSmallFactor, MillerRabin を組み合わせて素数を探索する。
type Finder struct {
	sampler *Sampler
	tester  *MillerRabin
	metrics *Metrics
}

// NewFinder は新しいFinderを生成する。metricsはnilでもよい。
func NewFinder(sampler *Sampler, tester *MillerRabin, metrics *Metrics) *Finder {
	return &Finder{
		sampler: sampler,
		tester:  tester,
		metrics: metrics,
	}
}

// FindPrime は bits ビットの確率的素数を返す。
//
// 候補は一度だけ抽出し、小素数で割り切れる場合とMiller-Rabinで棄却された場合に
// 2ずつ進める。探索回数に上限はなく、ctxの終了でのみ中断する。
func (f *Finder) FindPrime(ctx context.Context, bits int) (*big.Int, error) {
	p, err := f.sampler.Sample(bits)
	if err != nil {
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// +2 を繰り返してビット長を超えたら抽出し直す
		if p.BitLen() > bits {
			if p, err = f.sampler.Sample(bits); err != nil {
				return nil, err
			}
		}

		if HasSmallFactor(p) {
			f.metrics.candidate("small_factor")
			p.Add(p, two)
			continue
		}

		ok, err := f.tester.IsProbablePrime(p)
		if err != nil {
			return nil, fmt.Errorf("testing candidate: %w", err)
		}
		if ok {
			f.metrics.candidate("prime")
			return p, nil
		}
		f.metrics.candidate("composite")
		p.Add(p, two)
	}
}
