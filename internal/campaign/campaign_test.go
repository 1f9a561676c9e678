package campaign

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byuccl/coast/internal/boards"
	"github.com/byuccl/coast/internal/decode"
	"github.com/byuccl/coast/internal/emuproc"
	"github.com/byuccl/coast/internal/inject"
	"github.com/byuccl/coast/internal/model"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "InjectFault", StateInjectFault.String())
	assert.Equal(t, "Finished", StateFinished.String())
}

func TestChooseSleepTimeWithinBounds(t *testing.T) {
	c := &Campaign{rand: rand.New(rand.NewSource(1))}
	c.bounds = model.NewBoundsState(2.0, 0.001, 30)
	for i := 0; i < 20; i++ {
		st := c.chooseSleepTime()
		assert.GreaterOrEqual(t, st, c.bounds.Lower())
		assert.LessOrEqual(t, st, c.bounds.Upper())
	}
}

func TestDrainResidualOutcomesEmptiesChannel(t *testing.T) {
	c := &Campaign{outcomeCh: make(chan decode.DecodedLine, 4)}
	c.outcomeCh <- decode.DecodedLine{Kind: decode.KindDropped}
	c.outcomeCh <- decode.DecodedLine{Kind: decode.KindDropped}
	c.drainResidualOutcomes()
	assert.Len(t, c.outcomeCh, 0)
}

func TestMaxHelper(t *testing.T) {
	assert.Equal(t, 3.0, max64(1.0, 3.0))
	assert.Equal(t, 5.0, max64(5.0, 2.0))
}

func TestCampaignFinishedOnInjectionCount(t *testing.T) {
	counters := model.CampaignCounters{MaxInjections: 3, InjectionsDone: 3}
	assert.True(t, counters.IsCampaignFinished())

	counters = model.CampaignCounters{MaxInjections: 3, InjectionsDone: 2}
	assert.False(t, counters.IsCampaignFinished())
}

func TestCampaignFinishedErrorTargetExtendsInjections(t *testing.T) {
	counters := model.CampaignCounters{MaxInjections: 100, InjectionsDone: 40, ErrorTarget: 5, ErrorsSeen: 5}
	assert.False(t, counters.IsCampaignFinished())
	assert.Equal(t, 0, counters.ErrorTarget)
	assert.GreaterOrEqual(t, counters.MaxInjections, 40)
}

func TestBoundsAdaptationNarrowsAndSaturates(t *testing.T) {
	b := model.NewBoundsState(2.0, 0.001, 3)
	narrowed := b.ChangeBounds(true)
	assert.Less(t, narrowed.Upper(), b.Upper())

	saturated := narrowed.ChangeBounds(true)
	again := saturated.ChangeBounds(true)
	assert.Equal(t, saturated, again)
}

func TestChooseSleepTimeHonorsForcedBreakOverride(t *testing.T) {
	inj := inject.New(nil, nil, nil, nil, []model.ForcedInjection{{Iteration: model.AlwaysActive}}, 1)
	c := &Campaign{
		rand:     rand.New(rand.NewSource(1)),
		injector: inj,
		cfg:      Config{BreakSleep: 0.25},
	}
	c.bounds = model.NewBoundsState(2.0, 0.001, 30)
	assert.Equal(t, 0.25, c.chooseSleepTime())
}

func TestChooseSleepTimeIgnoresForcedBreakWithoutOverride(t *testing.T) {
	inj := inject.New(nil, nil, nil, nil, []model.ForcedInjection{{Iteration: model.AlwaysActive}}, 1)
	c := &Campaign{
		rand:     rand.New(rand.NewSource(1)),
		injector: inj,
	}
	c.bounds = model.NewBoundsState(2.0, 0.001, 30)
	st := c.chooseSleepTime()
	assert.GreaterOrEqual(t, st, c.bounds.Lower())
	assert.LessOrEqual(t, st, c.bounds.Upper())
}

func TestChooseSleepTimePluginModeStaysInCycleRange(t *testing.T) {
	c := &Campaign{
		rand:        rand.New(rand.NewSource(1)),
		cfg:         Config{PluginMode: true},
		startCycle:  100,
		cyclePeriod: 1000,
	}
	for i := 0; i < 20; i++ {
		st := c.chooseSleepTime()
		assert.GreaterOrEqual(t, st, float64(100))
		assert.LessOrEqual(t, st, 0.95*1000)
	}
}

func TestParsePluginAckParsesCycleCount(t *testing.T) {
	cycles, err := parsePluginAck([]byte("ack 4821"))
	require.NoError(t, err)
	assert.Equal(t, uint64(4821), cycles)
}

func TestParsePluginAckRejectsMalformedMessage(t *testing.T) {
	_, err := parsePluginAck([]byte("nope"))
	assert.Error(t, err)

	_, err = parsePluginAck([]byte("ack notanumber"))
	assert.Error(t, err)
}

func TestPluginCacheLinkErrorsWithoutPanickingWhenNoPluginAttached(t *testing.T) {
	proc := emuproc.New(boards.Pynq, emuproc.Ports{}, nil)
	link := &pluginCacheLink{proc: proc}

	_, _, _, _, err := link.RequestCacheWord("icache")
	assert.Error(t, err)
}
