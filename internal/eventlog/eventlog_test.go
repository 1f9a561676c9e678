package eventlog

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byuccl/coast/internal/model"
)

func newTestConsumer(baseline float64) (*Consumer, *bytes.Buffer, *bytes.Buffer) {
	var text, jsonBuf bytes.Buffer
	c := NewConsumer(&text, &jsonBuf, "/tmp/fw.elf", baseline, nil)
	return c, &text, &jsonBuf
}

func runConsumerAsync(t *testing.T, c *Consumer) chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- c.Run() }()
	return done
}

func TestCorrelationAttachesOutcomeToLog(t *testing.T) {
	c, _, jsonBuf := newTestConsumer(0)
	done := runConsumerAsync(t, c)

	c.Publish(Event{Kind: EventOutcome, Outcome: model.NewRunOutcome("t", 1, 0, 0, 1.0)})
	c.Publish(Event{Kind: EventInjectionLog, Log: model.InjectionLog{Number: 1}})

	select {
	case <-c.ResultRecorded():
	case <-time.After(time.Second):
		t.Fatal("result_recorded never signalled")
	}
	c.Stop()
	require.NoError(t, <-done)
	assert.True(t, strings.Contains(jsonBuf.String(), `"core":1`))
}

func TestAbortNotOverwrittenByLaterTimeout(t *testing.T) {
	c, _, jsonBuf := newTestConsumer(0)
	done := runConsumerAsync(t, c)

	c.Publish(Event{Kind: EventOutcome, Outcome: model.NewAbortOutcome("t", "Data abort", "msg")})
	c.Publish(Event{Kind: EventOutcome, Outcome: model.NewTimeoutOutcome("t", "Timeout detected", false, 0)})
	c.Publish(Event{Kind: EventInjectionLog, Log: model.InjectionLog{Number: 2}})

	<-c.ResultRecorded()
	c.Stop()
	require.NoError(t, <-done)
	assert.Contains(t, jsonBuf.String(), `"type":"Data abort"`)
	assert.NotContains(t, jsonBuf.String(), `"timeout"`)
}

func TestUnderTimeCoercion(t *testing.T) {
	c, _, jsonBuf := newTestConsumer(1.0) // baseline 1s; 5% is under 10% threshold
	done := runConsumerAsync(t, c)

	c.Publish(Event{Kind: EventOutcome, Outcome: model.NewRunOutcome("t", 1, 0, 0, 0.05)})
	c.Publish(Event{Kind: EventInjectionLog, Log: model.InjectionLog{Number: 3}})

	<-c.ResultRecorded()
	c.Stop()
	require.NoError(t, <-done)
	assert.True(t, strings.Contains(jsonBuf.String(), `"errors":1`))
}

func TestOverTimeCoercion(t *testing.T) {
	c, _, jsonBuf := newTestConsumer(1.0) // baseline 1s; 25s is over the 20x threshold
	done := runConsumerAsync(t, c)

	c.Publish(Event{Kind: EventOutcome, Outcome: model.NewRunOutcome("t", 1, 0, 0, 25.0)})
	c.Publish(Event{Kind: EventInjectionLog, Log: model.InjectionLog{Number: 5}})

	<-c.ResultRecorded()
	c.Stop()
	require.NoError(t, <-done)
	assert.True(t, strings.Contains(jsonBuf.String(), `"errors":1`))
}

func TestRateLimitSuppressesAfterFiveUnderTime(t *testing.T) {
	c, text, _ := newTestConsumer(0)
	done := runConsumerAsync(t, c)

	for i := 0; i < 5; i++ {
		c.Publish(Event{Kind: EventUnderTime})
	}
	c.Publish(Event{Kind: EventOutcome, Outcome: model.NewRunOutcome("t", 1, 0, 0, 1.0)})
	c.Publish(Event{Kind: EventInjectionLog, Log: model.InjectionLog{Number: 4}})
	<-c.ResultRecorded()
	c.Stop()
	require.NoError(t, <-done)
	assert.Contains(t, text.String(), "truncating output")
}
