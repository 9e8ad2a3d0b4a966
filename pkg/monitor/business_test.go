package monitor

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Init 与后台 worker 的 Observe* 调用可能并发, 需在 -race 下保持干净
func TestInitConcurrentWithObserve(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			ObserveReceiptPoll()
			ObserveResolve("hit")
			ObserveRegistration("resolved")
			ObserveConfirmation(1, 21000)
		}
	}()
	go func() {
		defer wg.Done()
		Init()
	}()
	wg.Wait()

	b := Business()
	require.NotNil(t, b)

	before := counterValue(t, b.ReceiptPolls)
	ObserveReceiptPoll()
	assert.Equal(t, before+1, counterValue(t, b.ReceiptPolls))

	// 重复调用不会重复注册
	assert.NotPanics(t, Init)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}
