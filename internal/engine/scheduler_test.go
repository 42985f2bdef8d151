package engine

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/taoyao-code/marine-sim/internal/nmea0183"
	"github.com/taoyao-code/marine-sim/internal/nmea2000"
	"github.com/taoyao-code/marine-sim/internal/scenario"
	"github.com/taoyao-code/marine-sim/internal/sensor"
	"github.com/taoyao-code/marine-sim/internal/simerr"
	"github.com/taoyao-code/marine-sim/internal/stream"
)

func parse(t *testing.T, doc, dir string) *scenario.Scenario {
	t.Helper()
	sc, err := scenario.Parse([]byte(doc), dir)
	require.NoError(t, err)
	return sc
}

func newScheduler(t *testing.T, sc *scenario.Scenario, opts ...Option) (*Scheduler, *stream.Recorder) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	rec := &stream.Recorder{}
	s, err := New(sc, DefaultEncoders(nmea0183.NewEncoder(logger), nmea2000.NewEncoder(logger)), rec, logger, opts...)
	require.NoError(t, err)
	return s, rec
}

func frames(t *testing.T, msgs []stream.Message, sensorID string) []nmea2000.Frame {
	t.Helper()
	var out []nmea2000.Frame
	for _, m := range msgs {
		if m.Protocol != stream.ProtocolFrame || m.Sensor != sensorID {
			continue
		}
		f, _, err := nmea2000.UnmarshalFrame(m.Bytes)
		require.NoError(t, err)
		out = append(out, f)
	}
	return out
}

// tankLevel 127505 第 1-2 字节，0.004 %
func tankLevel(f nmea2000.Frame) float64 {
	return float64(int16(binary.LittleEndian.Uint16(f.Data[1:3]))) * 0.004
}

func countBy(msgs []stream.Message, key func(stream.Message) string) map[string]int {
	out := map[string]int{}
	for _, m := range msgs {
		out[key(m)]++
	}
	return out
}

const hybridDepth = `
name: hybrid depth
bridge_mode: hybrid
start_time: "2024-06-01T00:00:00Z"
sensors:
  - type: depth
    instance: 0
    source_address: 35
    update_rate: 1
    data_generation:
      depth: {type: constant, base: 12.5}
`

func TestHybridDepthEmitsBothProtocols(t *testing.T) {
	s, rec := newScheduler(t, parse(t, hybridDepth, ""))

	s.Advance(0)
	msgs := rec.Messages()
	require.Len(t, msgs, 4, "DBT, DPT, DBK and one 128267 frame")

	byTarget := countBy(msgs, func(m stream.Message) string { return m.Target })
	assert.Equal(t, map[string]int{"DBT": 1, "DPT": 1, "DBK": 1, "128267": 1}, byTarget)

	for _, m := range msgs {
		assert.Equal(t, time.Duration(0), m.VirtualTime, "same logical tick")
		switch m.Protocol {
		case stream.ProtocolSentence:
			assert.NoError(t, nmea0183.Verify(nmea0183.Sentence(m.Bytes)))
		case stream.ProtocolFrame:
			f, _, err := nmea2000.UnmarshalFrame(m.Bytes)
			require.NoError(t, err)
			h, err := nmea2000.ParseID(f.ID)
			require.NoError(t, err)
			assert.Equal(t, uint32(nmea2000.PGNWaterDepth), h.PGN)
			assert.Equal(t, uint8(35), h.Source)
			assert.Equal(t, uint32(1250), binary.LittleEndian.Uint32(f.Data[1:5]))
		}
	}

	s.Advance(3 * time.Second)
	msgs = rec.Messages()
	assert.Len(t, msgs, 16)
	assert.Len(t, frames(t, msgs, "depth:0"), 4)
	for i, m := range msgs {
		assert.Equal(t, uint64(i), m.Seq)
		if i > 0 {
			assert.GreaterOrEqual(t, m.VirtualTime, msgs[i-1].VirtualTime)
		}
	}
}

func TestSensorsTickAtIndependentRates(t *testing.T) {
	sc := parse(t, `
name: rates
sensors:
  - type: depth
    update_rate: 1
    data_generation:
      depth: {type: constant, base: 5}
  - type: wind
    update_rate: 2
    data_generation:
      speed: {type: constant, base: 10}
      angle: {type: constant, base: 30}
`, "")
	s, rec := newScheduler(t, sc)
	s.Advance(2 * time.Second)

	ticks := map[string]map[time.Duration]bool{}
	for _, m := range rec.Messages() {
		if ticks[m.Sensor] == nil {
			ticks[m.Sensor] = map[time.Duration]bool{}
		}
		ticks[m.Sensor][m.VirtualTime] = true
		assert.Equal(t, stream.ProtocolSentence, m.Protocol)
	}
	assert.Len(t, ticks["depth:0"], 3)
	assert.Len(t, ticks["wind:0"], 5)
	assert.True(t, ticks["wind:0"][1500*time.Millisecond])
}

func TestFailureIsolation(t *testing.T) {
	logger := zaptest.NewLogger(t)
	inner := SentenceEncoder(nmea0183.NewEncoder(logger))
	panicky := EncoderFunc(func(target string, r sensor.Reading, seq nmea2000.Sequencer) ([][]byte, error) {
		if r.Kind == sensor.KindRudder {
			panic("boom")
		}
		return inner.Encode(target, r, seq)
	})
	sc := parse(t, `
name: isolation
sensors:
  - type: tank
    update_rate: 1
    data_generation:
      level: {type: sine_wave, base: 50, amplitude: 5}
  - type: rudder
    update_rate: 1
    data_generation:
      angle: {type: constant, base: 3}
  - type: depth
    update_rate: 1
    data_generation:
      depth: {type: constant, base: 8}
`, "")
	rec := &stream.Recorder{}
	obs := &countingObserver{failed: map[string]int{}}
	s, err := New(sc, Encoders{sensor.ProtocolNMEA0183: panicky}, rec, logger, WithObserver(obs))
	require.NoError(t, err)

	s.Advance(2 * time.Second)

	bySensor := countBy(rec.Messages(), func(m stream.Message) string { return m.Sensor })
	assert.Equal(t, map[string]int{"depth:0": 9}, bySensor)
	assert.Equal(t, 3, obs.failed[StageGeneration], "sine without period fails each tick")
	assert.Equal(t, 3, obs.failed[StagePanic])
	assert.Equal(t, uint64(6), s.Status().Failures)
}

func TestEncodingFailureSkipsOnlyThatTarget(t *testing.T) {
	logger := zaptest.NewLogger(t)
	inner := DefaultEncoders(nmea0183.NewEncoder(logger), nmea2000.NewEncoder(logger))
	encoders := Encoders{
		sensor.ProtocolNMEA0183: EncoderFunc(func(target string, r sensor.Reading, seq nmea2000.Sequencer) ([][]byte, error) {
			if target == "DPT" {
				return nil, nmea0183.ErrUnsupportedSentence
			}
			return inner[sensor.ProtocolNMEA0183].Encode(target, r, seq)
		}),
		sensor.ProtocolNMEA2000: inner[sensor.ProtocolNMEA2000],
	}
	rec := &stream.Recorder{}
	s, err := New(parse(t, hybridDepth, ""), encoders, rec, logger)
	require.NoError(t, err)

	s.Advance(0)
	byTarget := countBy(rec.Messages(), func(m stream.Message) string { return m.Target })
	assert.Equal(t, map[string]int{"DBT": 1, "DBK": 1, "128267": 1}, byTarget)
}

const tankEvents = `
name: tank events
bridge_mode: nmea2000
sensors:
  - type: tank
    instance: 0
    source_address: 40
    update_rate: 1
    data_generation:
      level: {type: constant, base: 50}
phases:
  - name: draining
    start: 2
    events:
      - at: 3
        type: condition_change
        target: tank:0.level
        set: {base: 20}
`

func TestConditionChangeAppliesBeforeTick(t *testing.T) {
	s, rec := newScheduler(t, parse(t, tankEvents, ""))
	s.Advance(6 * time.Second)

	fs := frames(t, rec.Messages(), "tank:0")
	require.Len(t, fs, 7)
	for i, f := range fs {
		want := 50.0
		if i >= 5 {
			want = 20.0
		}
		assert.InDelta(t, want, tankLevel(f), 1e-9, "tick %d", i)
	}
	assert.Equal(t, "draining", s.Status().Phase)
}

func TestProfileSwitchAndVesselProfile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "full.yaml"), []byte(`
name: full
targets:
  tank:0.level: {type: constant, base: 90}
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "low.yaml"), []byte(`
name: low
targets:
  tank:0.level: {type: constant, base: 10}
`), 0o644))

	sc := parse(t, `
name: profiles
bridge_mode: nmea2000
sensors:
  - type: tank
    update_rate: 1
    data_generation:
      level: {type: constant, base: 50}
phases:
  - name: later
    start: 0
    events:
      - {at: 2, type: profile_switch, profile: low.yaml}
parameters:
  vessel_profile: full.yaml
`, dir)
	s, rec := newScheduler(t, sc)
	s.Advance(3 * time.Second)

	fs := frames(t, rec.Messages(), "tank:0")
	require.Len(t, fs, 4)
	assert.InDelta(t, 90.0, tankLevel(fs[0]), 1e-9)
	assert.InDelta(t, 90.0, tankLevel(fs[1]), 1e-9)
	assert.InDelta(t, 10.0, tankLevel(fs[2]), 1e-9)
	assert.InDelta(t, 10.0, tankLevel(fs[3]), 1e-9)
}

func TestLoopRestartsVirtualTime(t *testing.T) {
	sc := parse(t, `
name: looping
duration: 3
loop: true
bridge_mode: nmea2000
sensors:
  - type: tank
    update_rate: 1
    data_generation:
      level: {type: linear_increase, base: 10, rate: 10}
`, "")
	obs := &countingObserver{failed: map[string]int{}}
	s, rec := newScheduler(t, sc, WithObserver(obs))
	s.Advance(7 * time.Second)

	msgs := rec.Messages()
	byLoop := countBy(msgs, func(m stream.Message) string { return string(rune('0' + m.Loop)) })
	assert.Equal(t, map[string]int{"0": 3, "1": 3, "2": 2}, byLoop)
	assert.Equal(t, 2, obs.loops)

	fs := frames(t, msgs, "tank:0")
	assert.InDelta(t, 10.0, tankLevel(fs[3]), 1e-9, "generator restarts with the loop")
	assert.InDelta(t, 30.0, tankLevel(fs[5]), 1e-9)

	st := s.Status()
	assert.Equal(t, 2, st.Loop)
	assert.InDelta(t, 1.0, st.VirtualTime, 1e-9)
	assert.InDelta(t, 7.0, st.TotalVirtualTime, 1e-9)
}

func TestFiniteScenarioFinishes(t *testing.T) {
	s, rec := newScheduler(t, parse(t, `
name: short
duration: 3
sensors:
  - type: depth
    update_rate: 1
    data_generation:
      depth: {type: constant, base: 5}
`, ""))
	s.Advance(10 * time.Second)
	n := len(rec.Messages())
	assert.Equal(t, 9, n)
	assert.Equal(t, RunFinished, s.Status().State)

	s.Advance(10 * time.Second)
	assert.Len(t, rec.Messages(), n)
}

const noisy = `
name: noisy
bridge_mode: hybrid
start_time: "2024-06-01T00:00:00Z"
sensors:
  - type: wind
    instance: 0
    source_address: 10
    update_rate: 2
    data_generation:
      speed: {type: random_walk, base: 12, step: 1, min: 0, max: 40}
      angle: {type: gaussian, mean: 40, std_dev: 5}
  - type: wind
    instance: 1
    source_address: 11
    update_rate: 2
    data_generation:
      speed: {type: random_walk, base: 12, step: 1, min: 0, max: 40}
      angle: {type: constant, base: 90}
  - type: gps
    source_address: 12
    update_rate: 1
    data_generation:
      position:
        type: great_circle
        speed: 8
        waypoints: [{lat: 50.0, lon: -1.0}, {lat: 50.1, lon: -0.9}]
`

func TestDeterministicReplay(t *testing.T) {
	a, recA := newScheduler(t, parse(t, noisy, ""))
	b, recB := newScheduler(t, parse(t, noisy, ""))
	a.Advance(10 * time.Second)
	b.Advance(10 * time.Second)

	require.NotEmpty(t, recA.Messages())
	assert.Equal(t, recA.Messages(), recB.Messages())
}

func TestSnapshotRestore(t *testing.T) {
	s, rec := newScheduler(t, parse(t, noisy, ""))
	s.Advance(5 * time.Second)
	snap := s.Snapshot()

	rec.Reset()
	s.Advance(5 * time.Second)
	first := rec.Messages()

	require.NoError(t, s.Restore(snap))
	rec.Reset()
	s.Advance(5 * time.Second)
	assert.Equal(t, first, rec.Messages())

	assert.ErrorIs(t, s.Restore(State{}), ErrStateMismatch)
}

func TestIdenticalWalksShareState(t *testing.T) {
	s, rec := newScheduler(t, parse(t, noisy, ""))
	s.Advance(5 * time.Second)

	speeds := map[string]map[time.Duration]uint16{}
	for _, m := range rec.Messages() {
		if m.Target != "130306" {
			continue
		}
		f, _, err := nmea2000.UnmarshalFrame(m.Bytes)
		require.NoError(t, err)
		if speeds[m.Sensor] == nil {
			speeds[m.Sensor] = map[time.Duration]uint16{}
		}
		speeds[m.Sensor][m.VirtualTime] = binary.LittleEndian.Uint16(f.Data[1:3])
	}
	require.Len(t, speeds["wind:0"], 11)
	assert.Equal(t, speeds["wind:0"], speeds["wind:1"])
}

func TestRunStopsAndIsIdempotent(t *testing.T) {
	s, rec := newScheduler(t, parse(t, hybridDepth, ""), WithSpeed(50))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotEmpty(t, rec.Messages())
	assert.Equal(t, RunStopped, s.Status().State)

	s.Stop()
	s.Stop()
	assert.ErrorIs(t, s.Run(context.Background()), ErrAlreadyRunning)

	n := len(rec.Messages())
	s.Advance(time.Minute)
	assert.Len(t, rec.Messages(), n, "stopped scheduler emits nothing")
}

func TestRunFinishesBoundedScenario(t *testing.T) {
	s, rec := newScheduler(t, parse(t, `
name: quick
duration: 2
sensors:
  - type: depth
    update_rate: 10
    data_generation:
      depth: {type: constant, base: 5}
`, ""), WithSpeed(1000))

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
	assert.Len(t, rec.Messages(), 60)
	st := s.Status()
	assert.Equal(t, RunFinished, st.State)
	assert.NotNil(t, st.StartedAt)
	assert.Equal(t, uint64(60), st.Emitted[string(stream.ProtocolSentence)])
}

type rejectAll struct{}

func (rejectAll) Encode(string, sensor.Reading, nmea2000.Sequencer) ([][]byte, error) { return nil, nil }
func (rejectAll) Supports(string) bool                                                { return false }

func TestNewRejectsConfiguration(t *testing.T) {
	logger := zaptest.NewLogger(t)
	sc := parse(t, hybridDepth, "")

	_, err := New(sc, Encoders{sensor.ProtocolNMEA0183: rejectAll{}}, nil, logger)
	require.Error(t, err)
	assert.True(t, simerr.IsCategory(err, simerr.CategoryConfiguration), "missing nmea2000 encoder")

	_, err = New(sc, Encoders{sensor.ProtocolNMEA0183: rejectAll{}, sensor.ProtocolNMEA2000: rejectAll{}}, nil, logger)
	require.Error(t, err)
	assert.True(t, simerr.IsCategory(err, simerr.CategoryConfiguration), "unsupported target")
}

func TestReadingTimeFollowsStartTime(t *testing.T) {
	logger := zaptest.NewLogger(t)
	var seen []time.Time
	enc := EncoderFunc(func(_ string, r sensor.Reading, _ nmea2000.Sequencer) ([][]byte, error) {
		seen = append(seen, r.Time)
		return nil, nil
	})
	sc := parse(t, `
name: clock
start_time: "2024-06-01T12:00:00Z"
sensors:
  - type: rate_of_turn
    update_rate: 1
    data_generation:
      rate: {type: constant, base: 1}
`, "")
	s, err := New(sc, Encoders{sensor.ProtocolNMEA0183: enc}, nil, logger)
	require.NoError(t, err)
	s.Advance(2 * time.Second)

	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, []time.Time{start, start.Add(time.Second), start.Add(2 * time.Second)}, seen)
}

type countingObserver struct {
	emitted int
	failed  map[string]int
	loops   int
}

func (o *countingObserver) MessageEmitted(stream.Protocol) { o.emitted++ }
func (o *countingObserver) TickFailed(stage string)        { o.failed[stage]++ }
func (o *countingObserver) VirtualTime(time.Duration)      {}
func (o *countingObserver) Looped()                        { o.loops++ }

func BenchmarkAdvance(b *testing.B) {
	sc, err := scenario.Parse([]byte(noisy), "")
	require.NoError(b, err)
	s, err := New(sc, DefaultEncoders(nmea0183.NewEncoder(nil), nmea2000.NewEncoder(nil)), stream.Discard, nil)
	require.NoError(b, err)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Advance(time.Second)
	}
}
