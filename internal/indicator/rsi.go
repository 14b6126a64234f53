package indicator

// RSI calculates the Relative Strength Index with Wilder smoothing.
//
// Average gain and loss are seeded with the simple mean of the first period
// price changes, so the first valid value sits at index period and needs
// period+1 prices. Earlier values are NaN. A window with no losses yields 100,
// and a window with neither gains nor losses yields 50.
func RSI(prices []float64, period int) []float64 {
	result := nanSlice(len(prices))
	if period <= 0 || len(prices) <= period {
		return result
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		up, down := change(prices[i-1], prices[i])
		gain += up
		loss += down
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	result[period] = rsiValue(avgGain, avgLoss)

	p := float64(period)
	for i := period + 1; i < len(prices); i++ {
		up, down := change(prices[i-1], prices[i])
		avgGain = (avgGain*(p-1) + up) / p
		avgLoss = (avgLoss*(p-1) + down) / p
		result[i] = rsiValue(avgGain, avgLoss)
	}

	return result
}

func change(prev, cur float64) (up, down float64) {
	d := cur - prev
	if d > 0 {
		return d, 0
	}
	return 0, -d
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
