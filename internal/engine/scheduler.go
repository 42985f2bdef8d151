// Package engine 场景运行时：持有全部生成器状态，按各传感器更新频率触发采样，
// 经桥接模式选定的编码器输出有序消息流。
//
// 调度为单协程、事件驱动：最小堆保存每个传感器的下一节拍，Run 按墙钟等待最近的节拍，
// Advance 直接推进虚拟时间用于确定性测试。
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taoyao-code/marine-sim/internal/nmea2000"
	"github.com/taoyao-code/marine-sim/internal/pattern"
	"github.com/taoyao-code/marine-sim/internal/scenario"
	"github.com/taoyao-code/marine-sim/internal/sensor"
	"github.com/taoyao-code/marine-sim/internal/simerr"
	"github.com/taoyao-code/marine-sim/internal/stream"
)

var (
	// ErrAlreadyRunning Run 重复调用
	ErrAlreadyRunning = errors.New("scheduler already running")
	// ErrStateMismatch 快照与场景不匹配
	ErrStateMismatch = errors.New("state does not match scenario")
)

// 运行状态
const (
	RunIdle     = "idle"
	RunRunning  = "running"
	RunFinished = "finished"
	RunStopped  = "stopped"
)

// track 单个传感器的静态信息
type track struct {
	def    scenario.SensorDefinition
	entry  sensor.Entry
	id     string
	rate   float64
	fields []string // 有数据生成定义的字段，有序
}

// tickTime 第 n 个节拍的虚拟时间；按计数计算避免累计误差
func (t *track) tickTime(n uint64) time.Duration {
	return time.Duration(float64(n) * float64(time.Second) / t.rate)
}

// Option 调度器选项
type Option func(*Scheduler)

// WithObserver 安装指标回调
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithSpeed 速度倍率：每墙钟秒推进的虚拟秒数
func WithSpeed(mult float64) Option {
	return func(s *Scheduler) {
		if mult > 0 {
			s.speed = mult
		}
	}
}

// WithLoop 覆盖场景的 loop 设置
func WithLoop(loop bool) Option {
	return func(s *Scheduler) { s.loop = loop }
}

// Scheduler 场景调度器
type Scheduler struct {
	sc        *scenario.Scenario
	encoders  Encoders
	protocols []sensor.Protocol
	sink      stream.Sink
	logger    *zap.Logger
	observer  Observer
	runID     string
	speed     float64
	loop      bool

	tracks   []*track
	index    map[string]int
	timeline []timedEvent

	mu       sync.Mutex
	st       State
	queue    tickQueue
	gens     map[string]pattern.Generator
	emitted  map[stream.Protocol]uint64
	failures uint64
	run      string
	started  time.Time

	stopOnce sync.Once
	stopC    chan struct{}
}

// New 创建调度器。编码器缺失或传感器目标不受支持时返回 configuration 错误，场景不得启动。
func New(sc *scenario.Scenario, encoders Encoders, sink stream.Sink, logger *zap.Logger, opts ...Option) (*Scheduler, error) {
	if sc == nil {
		return nil, simerr.Configuration("new scheduler", "", errors.New("nil scenario"))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = stream.Discard
	}
	s := &Scheduler{
		sc:        sc,
		encoders:  encoders,
		protocols: sc.Mode().Protocols(),
		sink:      sink,
		observer:  nopObserver{},
		runID:     uuid.NewString(),
		speed:     1,
		loop:      sc.Loop,
		index:     make(map[string]int, len(sc.Sensors)),
		timeline:  buildTimeline(sc),
		emitted:   make(map[stream.Protocol]uint64),
		run:       RunIdle,
		stopC:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.With(zap.String("run_id", s.runID), zap.String("scenario", sc.Name))

	for _, p := range s.protocols {
		if s.encoders[p] == nil {
			return nil, simerr.Configuration("new scheduler", string(p), errors.New("no encoder for protocol"))
		}
	}
	for i, d := range sc.Sensors {
		entry, err := sensor.Lookup(d.Type)
		if err != nil {
			return nil, simerr.Configuration("new scheduler", fmt.Sprintf("sensors[%d]", i), err)
		}
		tr := &track{def: d, entry: entry, id: sensor.ID(entry.Kind, uint8(d.Instance)), rate: d.UpdateRate}
		if tr.rate <= 0 {
			tr.rate = 1
		}
		if _, dup := s.index[tr.id]; dup {
			return nil, simerr.Configuration("new scheduler", tr.id, errors.New("duplicate instance"))
		}
		for _, p := range s.protocols {
			chk, ok := s.encoders[p].(Checker)
			if !ok {
				continue
			}
			for _, target := range entry.Targets(p) {
				if !chk.Supports(target) {
					return nil, simerr.Configuration("new scheduler", tr.id,
						fmt.Errorf("%s target %s not supported", p, target))
				}
			}
		}
		s.index[tr.id] = len(s.tracks)
		s.tracks = append(s.tracks, tr)
	}

	s.st = State{Counters: nmea2000.NewCounters()}
	s.reset()
	return s, nil
}

// RunID 本次运行标识
func (s *Scheduler) RunID() string { return s.runID }

// Scenario 运行中的场景
func (s *Scheduler) Scenario() *scenario.Scenario { return s.sc }

// reset 回到本轮起点：虚拟时间、生成器状态与阶段游标归零，并应用船型配置
func (s *Scheduler) reset() {
	s.st.Elapsed = 0
	s.st.Cursor = 0
	s.st.Finished = false
	s.st.Ticks = make([]uint64, len(s.tracks))
	s.st.Specs = make(map[string]pattern.Spec)
	s.st.Fields = make(map[string]pattern.State)
	for _, tr := range s.tracks {
		for field, spec := range tr.def.DataGeneration {
			s.st.Specs[fieldKey(tr.id, field)] = spec
		}
	}
	if ref := s.sc.Parameters.VesselProfile; ref != "" {
		s.applyProfile(ref)
	}
	s.rebuild()
}

// rebuild 由状态重建节拍队列、字段列表并清空生成器缓存
func (s *Scheduler) rebuild() {
	s.gens = make(map[string]pattern.Generator)
	s.queue = make(tickQueue, 0, len(s.tracks))
	for i, tr := range s.tracks {
		s.queue.push(tick{at: tr.tickTime(s.st.Ticks[i]), sensor: i})
		tr.fields = tr.fields[:0]
		prefix := tr.id + "."
		for k := range s.st.Specs {
			if strings.HasPrefix(k, prefix) {
				tr.fields = append(tr.fields, strings.TrimPrefix(k, prefix))
			}
		}
		sort.Strings(tr.fields)
	}
}

// Advance 推进虚拟时间 d，依次执行到期的阶段事件与传感器节拍。
// 同一时刻事件先于节拍；越过场景时长时循环或结束。
func (s *Scheduler) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance(d)
}

func (s *Scheduler) advance(d time.Duration) {
	if s.st.Finished || s.run == RunStopped {
		return
	}
	if d < 0 {
		d = 0
	}
	target := s.st.Elapsed + d
	end := s.sc.TotalDuration()
	for !s.st.Finished {
		at, isEvent, ok := s.peek()
		if end > 0 && (!ok || at >= end) && target >= end {
			if !s.loop {
				s.st.Elapsed = end
				s.finish()
				break
			}
			target -= end
			s.restart()
			continue
		}
		if !ok || at > target {
			s.st.Elapsed = target
			break
		}
		s.st.Elapsed = at
		if isEvent {
			s.applyEvent()
		} else {
			s.fireTick()
		}
	}
	s.observer.VirtualTime(s.total(s.st.Elapsed))
}

// peek 下一待执行项的时间；事件优先
func (s *Scheduler) peek() (at time.Duration, isEvent bool, ok bool) {
	t, hasTick := s.queue.peek()
	if s.st.Cursor < len(s.timeline) {
		ev := s.timeline[s.st.Cursor]
		if !hasTick || ev.at <= t.at {
			return ev.at, true, true
		}
	}
	return t.at, false, hasTick
}

// nextDelta 距离下一待执行项（或场景结束边界）的虚拟时长
func (s *Scheduler) nextDelta() (time.Duration, bool) {
	at, _, ok := s.peek()
	if end := s.sc.TotalDuration(); end > 0 && (!ok || at > end) {
		at, ok = end, true
	}
	if !ok {
		return 0, false
	}
	if at < s.st.Elapsed {
		at = s.st.Elapsed
	}
	return at - s.st.Elapsed, true
}

func (s *Scheduler) total(el time.Duration) time.Duration {
	return time.Duration(s.st.Loop)*s.sc.TotalDuration() + el
}

func (s *Scheduler) restart() {
	s.st.Loop++
	s.observer.Looped()
	s.reset()
	s.logger.Info("scenario loop restarted", zap.Int("loop", s.st.Loop))
}

func (s *Scheduler) finish() {
	s.st.Finished = true
	if s.run != RunStopped {
		s.run = RunFinished
	}
	s.logger.Info("scenario finished",
		zap.Duration("virtual_time", s.total(s.st.Elapsed)),
		zap.Uint64("messages", s.st.Seq))
}

func (s *Scheduler) fireTick() {
	t := s.queue.pop()
	tr := s.tracks[t.sensor]
	s.runTick(tr, t.at)
	s.st.Ticks[t.sensor]++
	s.queue.push(tick{at: tr.tickTime(s.st.Ticks[t.sensor]), sensor: t.sensor})
}

// runTick 单个传感器节拍：采样一次，按桥接模式分发给各协议目标。
// 生成失败跳过整个节拍；编码失败只跳过该目标。
func (s *Scheduler) runTick(tr *track, at time.Duration) {
	defer func() {
		if rec := recover(); rec != nil {
			s.failures++
			s.observer.TickFailed(StagePanic)
			s.logger.Error("sensor tick panicked, skipped",
				zap.String("sensor", tr.id),
				zap.Duration("at", at),
				zap.Any("panic", rec))
		}
	}()

	r, err := s.sample(tr, at)
	if err != nil {
		s.failures++
		s.observer.TickFailed(StageGeneration)
		s.logger.Warn("generation failed, tick skipped",
			zap.String("sensor", tr.id),
			zap.Duration("at", at),
			zap.Error(err))
		return
	}

	for _, p := range s.protocols {
		enc := s.encoders[p]
		for _, target := range tr.entry.Targets(p) {
			msgs, err := enc.Encode(target, r, s.st.Counters)
			if err != nil {
				s.failures++
				s.observer.TickFailed(StageEncoding)
				s.logger.Warn("encoding failed, target skipped",
					zap.String("sensor", tr.id),
					zap.String("protocol", string(p)),
					zap.String("target", target),
					zap.Error(simerr.Encoding("encode", target, err)))
				continue
			}
			for _, b := range msgs {
				s.emit(p, tr.id, target, at, b)
			}
		}
	}
}

// sample 依次调用该传感器各字段的生成器，全部成功后才提交新状态
func (s *Scheduler) sample(tr *track, at time.Duration) (sensor.Reading, error) {
	r := sensor.Reading{
		Kind:     tr.entry.Kind,
		Instance: uint8(tr.def.Instance),
		Source:   uint8(tr.def.SourceAddress),
		Talker:   tr.def.Talker,
		Time:     s.sc.Start.Add(s.total(at)),
		Elapsed:  at,
		Values:   make(map[string]float64, len(tr.fields)),
		Props:    tr.def.PhysicalProperties,
	}
	pending := make(map[string]pattern.State, len(tr.fields))
	for _, field := range tr.fields {
		fk := fieldKey(tr.id, field)
		spec := s.st.Specs[fk]
		key := stateKey(tr.id, field, spec)
		st, ok := pending[key]
		if !ok {
			st, ok = s.st.Fields[key]
		}
		if !ok {
			st = s.initialState(key, spec)
		}
		smp, next, err := s.generator(fk, spec).Sample(at, st)
		if err != nil {
			return r, simerr.Generation("sample", fk, err)
		}
		pending[key] = next
		if smp.Position != nil {
			pos := *smp.Position
			r.Position = &pos
			continue
		}
		r.Values[field] = smp.Value
	}
	for k, v := range pending {
		s.st.Fields[k] = v
	}
	return r, nil
}

// initialState 未指定 seed 时由场景名与状态键派生，保证同一场景可重放
func (s *Scheduler) initialState(key string, spec pattern.Spec) pattern.State {
	if spec.Seed != nil {
		return pattern.State{}
	}
	return pattern.NewState(pattern.SeedFor(s.sc.Name + "/" + key))
}

func (s *Scheduler) generator(fk string, spec pattern.Spec) pattern.Generator {
	if g, ok := s.gens[fk]; ok {
		return g
	}
	g := pattern.New(spec, s.logger.With(zap.String("field", fk)))
	s.gens[fk] = g
	return g
}

func (s *Scheduler) emit(p sensor.Protocol, id, target string, at time.Duration, b []byte) {
	msg := stream.Message{
		Protocol:    stream.ProtocolFor(p),
		Bytes:       b,
		Sensor:      id,
		Target:      target,
		VirtualTime: at,
		Loop:        s.st.Loop,
		Seq:         s.st.Seq,
	}
	s.st.Seq++
	s.emitted[msg.Protocol]++
	s.observer.MessageEmitted(msg.Protocol)
	s.sink.Publish(msg)
}

// setSpec 替换字段模式；字段状态重置，共享的随机游走状态保留
func (s *Scheduler) setSpec(tr *track, field string, spec pattern.Spec) {
	fk := fieldKey(tr.id, field)
	if _, exists := s.st.Specs[fk]; !exists {
		tr.fields = append(tr.fields, field)
		sort.Strings(tr.fields)
	}
	s.st.Specs[fk] = spec
	delete(s.st.Fields, fk)
	delete(s.gens, fk)
}

func (s *Scheduler) applyEvent() {
	te := s.timeline[s.st.Cursor]
	s.st.Cursor++
	switch te.event.Type {
	case scenario.EventProfileSwitch:
		s.applyProfile(te.event.Profile)
	case scenario.EventConditionChange:
		s.applyCondition(te.event)
	default:
		s.logger.Warn("unknown event type ignored", zap.String("phase", te.phase), zap.String("type", string(te.event.Type)))
		return
	}
	s.logger.Info("phase event applied",
		zap.String("phase", te.phase),
		zap.String("type", string(te.event.Type)),
		zap.Duration("at", te.at))
}

func (s *Scheduler) applyProfile(ref string) {
	prof, ok := s.sc.Profiles[ref]
	if !ok {
		s.logger.Warn("profile not loaded, switch ignored", zap.String("profile", ref))
		return
	}
	keys := make([]string, 0, len(prof.Targets))
	for k := range prof.Targets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t, err := scenario.ParseTarget(k)
		if err != nil {
			continue
		}
		i, ok := s.index[t.Sensor]
		if !ok {
			s.logger.Warn("profile target has no sensor", zap.String("profile", ref), zap.String("target", k))
			continue
		}
		s.setSpec(s.tracks[i], t.Field, prof.Targets[k])
	}
}

func (s *Scheduler) applyCondition(ev scenario.Event) {
	t, err := scenario.ParseTarget(ev.Target)
	if err != nil {
		s.logger.Warn("condition change ignored", zap.Error(err))
		return
	}
	i, ok := s.index[t.Sensor]
	if !ok {
		s.logger.Warn("condition change target has no sensor", zap.String("target", ev.Target))
		return
	}
	tr := s.tracks[i]
	merged, err := s.st.Specs[fieldKey(tr.id, t.Field)].Merge(ev.Set)
	if err != nil {
		s.logger.Warn("condition change ignored", zap.String("target", ev.Target), zap.Error(err))
		return
	}
	s.setSpec(tr, t.Field, merged)
}

// Snapshot 当前运行状态的深拷贝
func (s *Scheduler) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Clone()
}

// Restore 恢复快照；之后的输出与快照时刻继续运行的输出一致
func (s *Scheduler) Restore(st State) error {
	if len(st.Ticks) != len(s.tracks) || st.Cursor > len(s.timeline) {
		return ErrStateMismatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = st.Clone()
	if s.st.Counters == nil {
		s.st.Counters = nmea2000.NewCounters()
	}
	s.rebuild()
	return nil
}

// Run 按墙钟驱动虚拟时间直到场景结束、Stop 或 ctx 取消。
// 单协程：每次等待到最近的节拍或事件，再推进虚拟时间。
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.run != RunIdle {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.run = RunRunning
	s.started = time.Now()
	origin := s.started
	base := s.total(s.st.Elapsed)
	s.mu.Unlock()

	s.logger.Info("scenario started",
		zap.String("bridge_mode", string(s.sc.Mode())),
		zap.Int("sensors", len(s.tracks)),
		zap.Float64("speed", s.speed),
		zap.Bool("loop", s.loop))

	for {
		s.mu.Lock()
		finished := s.st.Finished
		delta, ok := s.nextDelta()
		due := s.total(s.st.Elapsed) + delta
		s.mu.Unlock()
		if finished {
			return nil
		}

		var wake <-chan time.Time
		var timer *time.Timer
		if ok {
			timer = time.NewTimer(time.Until(origin.Add(time.Duration(float64(due-base) / s.speed))))
			wake = timer.C
		}
		select {
		case <-ctx.Done():
			stopTimer(timer)
			s.Stop()
			return ctx.Err()
		case <-s.stopC:
			stopTimer(timer)
			return nil
		case <-wake:
		}
		s.Advance(delta)
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// Stop 停止调度，可重复调用
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopC)
		s.mu.Lock()
		if s.run != RunFinished {
			s.run = RunStopped
		}
		s.mu.Unlock()
		s.logger.Info("scenario stopped")
	})
}
