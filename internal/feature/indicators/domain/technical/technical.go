// Package technical はテクニカル指標（移動平均・RSI・ボリンジャーバンド）の計算を提供します。
//
// すべての関数は日付昇順の終値系列を受け取り、入力と同じ長さの系列を返します。
// ウィンドウが埋まっていない先頭部分は null になります。
// ウィンドウはインデックス基準であり、カレンダー上の欠損日は考慮しません。
package technical

import (
	"math"

	"github.com/guregu/null/v6"
	"github.com/markcheno/go-talib"
)

const (
	// ShortMAPeriod は短期移動平均（ma5）の期間です。
	ShortMAPeriod = 5
	// LongMAPeriod は長期移動平均（ma20）の期間です。
	LongMAPeriod = 20
	// DefaultRSIPeriod はRSIのデフォルト期間です。
	DefaultRSIPeriod = 9
	// DefaultBollingerPeriod はボリンジャーバンドのデフォルト期間です。
	DefaultBollingerPeriod = 20
	// DefaultBollingerStdDev はボリンジャーバンドの標準偏差倍率です。
	DefaultBollingerStdDev = 2.0

	// MinHistory は指標を1つでも算出するのに必要な最小の終値数です（最大ウィンドウ長）。
	MinHistory = LongMAPeriod
)

// Series は終値系列と、それに並行する各指標系列です。
type Series struct {
	Close    []float64
	MA5      []null.Float
	MA20     []null.Float
	RSI9     []null.Float
	BBUpper  []null.Float
	BBMiddle []null.Float
	BBLower  []null.Float
}

// Len は系列の長さを返します。
func (s Series) Len() int { return len(s.Close) }

// Compute はシステムで使用する全指標（ma5, ma20, rsi9, BB(20, 2.0)）を計算します。
func Compute(closes []float64) Series {
	upper, middle, lower := Bollinger(closes, DefaultBollingerPeriod, DefaultBollingerStdDev)
	return Series{
		Close:    closes,
		MA5:      MA(closes, ShortMAPeriod),
		MA20:     MA(closes, LongMAPeriod),
		RSI9:     RSI(closes, DefaultRSIPeriod),
		BBUpper:  upper,
		BBMiddle: middle,
		BBLower:  lower,
	}
}

// MA は直近 period 件の単純移動平均を返します。
// index < period-1 の位置は null です。
func MA(closes []float64, period int) []null.Float {
	out := make([]null.Float, len(closes))
	if period < 1 || len(closes) < period {
		return out
	}
	for i, w := range rolling(closes, period) {
		if i >= period-1 {
			out[i] = null.FloatFrom(w.mean)
		}
	}
	return out
}

// windowStats はひとつのウィンドウの平均と標本標準偏差（n-1）です。
type windowStats struct {
	mean float64
	std  float64
}

// rolling は index >= period-1 の各ウィンドウの平均と標本標準偏差を返します。
// 平均はウィンドウごとに合計し直し、標準偏差も同じ平均から求めます。
// ウィンドウ内の値がすべて等しければ平均はその値、標準偏差は0です。
func rolling(closes []float64, period int) []windowStats {
	n := len(closes)
	out := make([]windowStats, n)
	if period < 1 || n < period {
		return out
	}

	var hi, lo []float64
	if period > 1 {
		hi = talib.Max(closes, period)
		lo = talib.Min(closes, period)
	}
	for i := period - 1; i < n; i++ {
		// 最大値と最小値が一致するウィンドウは一定値
		if period == 1 || hi[i] == lo[i] {
			out[i] = windowStats{mean: closes[i]}
			continue
		}

		window := closes[i-period+1 : i+1]
		var sum float64
		for _, v := range window {
			sum += v
		}
		mean := sum / float64(period)

		var sq float64
		for _, v := range window {
			d := v - mean
			sq += d * d
		}
		out[i] = windowStats{mean: mean, std: math.Sqrt(sq / float64(period-1))}
	}
	return out
}

// RSI は単純平均による相対力指数を返します。
//
// 差分の上昇分・下落分をそれぞれ直近 period 件で平均し、
// RSI = 100 - 100/(1 + avgGain/avgLoss) を計算します。
// period 件の差分が揃う index >= period から値を持ちます。
// avgLoss が0のとき、avgGain > 0 なら100、avgGain も0なら null です。
func RSI(closes []float64, period int) []null.Float {
	out := make([]null.Float, len(closes))
	if period < 1 || len(closes) <= period {
		return out
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else if d < 0 {
			losses[i] = -d
		}
	}

	for i := period; i < len(closes); i++ {
		var sumGain, sumLoss float64
		for j := i - period + 1; j <= i; j++ {
			sumGain += gains[j]
			sumLoss += losses[j]
		}
		avgGain := sumGain / float64(period)
		avgLoss := sumLoss / float64(period)

		switch {
		case avgLoss == 0 && avgGain == 0:
			// 0/0: 値なし
		case avgLoss == 0:
			out[i] = null.FloatFrom(100)
		default:
			rs := avgGain / avgLoss
			out[i] = null.FloatFrom(100 - 100/(1+rs))
		}
	}
	return out
}

// Bollinger はボリンジャーバンド（上限・中央・下限）を返します。
// 中央は MA(period)、幅は同じウィンドウの標本標準偏差（n-1）× numStd です。
func Bollinger(closes []float64, period int, numStd float64) (upper, middle, lower []null.Float) {
	n := len(closes)
	upper = make([]null.Float, n)
	lower = make([]null.Float, n)
	if period < 2 || n < period {
		// 標本標準偏差は2件以上必要
		return upper, MA(closes, period), lower
	}

	middle = make([]null.Float, n)
	for i, w := range rolling(closes, period) {
		if i < period-1 {
			continue
		}
		middle[i] = null.FloatFrom(w.mean)
		upper[i] = null.FloatFrom(w.mean + numStd*w.std)
		lower[i] = null.FloatFrom(w.mean - numStd*w.std)
	}
	return upper, middle, lower
}
