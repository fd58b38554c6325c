package pricing

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tokenbot/gotrader/internal/domain"
	"github.com/tokenbot/gotrader/pkg/logger"
)

const volatilitySampleDelay = 100 * time.Millisecond

// SampleVolatility 采样代币短期波动率（百分比）
// 连续读 samples 次链上价格（间隔 100ms，绕过缓存，否则样本全部相同），
// 取相邻涨跌幅的标准差。采样失败返回 false，调用方回退默认 TP/SL。
func (r *Reader) SampleVolatility(ctx context.Context, chainID uint64, token string, tokenDecimals int32, samples int) (decimal.Decimal, bool) {
	if samples < 2 {
		samples = 2
	}
	token = domain.NormalizeAddress(token)

	prices := make([]float64, 0, samples)
	for i := 0; i < samples; i++ {
		price, err := r.tokenPriceFresh(ctx, chainID, token, tokenDecimals)
		if err != nil {
			logger.Debugf("波动率采样第 %d 次失败: %v", i+1, err)
		} else if price.Sign() > 0 {
			f, _ := price.Float64()
			prices = append(prices, f)
		}
		if i < samples-1 {
			select {
			case <-ctx.Done():
				return decimal.Zero, false
			case <-time.After(volatilitySampleDelay):
			}
		}
	}

	vol, ok := stdevPctChanges(prices)
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(vol), true
}

// stdevPctChanges 相邻价格涨跌幅（%）的样本标准差；只有一个涨跌幅时取其绝对值
func stdevPctChanges(prices []float64) (float64, bool) {
	if len(prices) < 2 {
		return 0, false
	}

	changes := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] > 0 {
			changes = append(changes, (prices[i]-prices[i-1])/prices[i-1]*100)
		}
	}
	if len(changes) == 0 {
		return 0, false
	}
	if len(changes) == 1 {
		return math.Abs(changes[0]), true
	}

	var mean float64
	for _, c := range changes {
		mean += c
	}
	mean /= float64(len(changes))

	var sum float64
	for _, c := range changes {
		d := c - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(changes)-1)), true
}
