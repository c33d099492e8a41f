package logger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestGetFallsBackBeforeInit(t *testing.T) {
	assert.NotNil(t, Get())
}

func TestConcurrentLoggingWhileReplaced(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	observed := zap.New(core)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			Info("tick")
		}()
		go func() {
			defer wg.Done()
			Set(observed)
		}()
	}
	wg.Wait()
	t.Cleanup(func() { Set(nil) })

	Warn("after", zap.String("k", "v"))
	entries := logs.FilterMessage("after").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "v", entries[0].ContextMap()["k"])
	}
}
