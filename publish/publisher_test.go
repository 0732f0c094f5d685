package publish

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"tally"
	"tally/registry"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeSink struct {
	events []Event
}

func (s *fakeSink) Emit(e Event) {
	s.events = append(s.events, e)
}

func (s *fakeSink) find(message string) (Event, bool) {
	for _, e := range s.events {
		if e.Message == message {
			return e, true
		}
	}
	return Event{}, false
}

func newTestPublisher(t *testing.T, opts registry.Options, start time.Time) (*Publisher, *registry.Registry, *fakeClock, *fakeSink) {
	t.Helper()
	reg := registry.New(opts)
	clock := newFakeClock(start)
	sink := &fakeSink{}
	return &Publisher{Registry: reg, Sink: sink, Clock: clock}, reg, clock, sink
}

func hasTag(e Event, name, value string) bool {
	for _, tag := range e.Tags {
		if tag.Name == name && tag.Value == value {
			return true
		}
	}
	return false
}

func TestPublishBasicRegisterIncPublish(t *testing.T) {
	opts := registry.Options{Level: 1, LogFreq: time.Second, Lifetime: 60 * time.Second}
	pub, reg, _, sink := newTestPublisher(t, opts, time.Unix(1700000000, 0))

	key := tally.Key{Source: tally.File | tally.FlagDestination, ID: "dst-access", Instance: "/var/log/a"}
	reg.Lock()
	cnt := reg.RegisterCounter(1, key, tally.Processed)
	reg.Unlock()

	cnt.Inc()
	cnt.Inc()
	cnt.Inc()

	pub.Run()

	ev, ok := sink.find("Log statistics")
	if !ok {
		t.Fatal("no statistics event emitted")
	}
	if ev.Priority != PriorityInfo {
		t.Fatalf("priority = %v, want info", ev.Priority)
	}
	if !hasTag(ev, "processed", "dst.file(dst-access,/var/log/a)=3") {
		t.Fatalf("missing expected tag, got %v", ev.Tags)
	}
}

func TestPublishGatedRegistrationEmitsNothing(t *testing.T) {
	opts := registry.Options{Level: 0, LogFreq: time.Second, Lifetime: 60 * time.Second}
	pub, reg, _, sink := newTestPublisher(t, opts, time.Unix(1700000000, 0))

	reg.Lock()
	cnt := reg.RegisterCounter(1, tally.Key{Source: tally.File, ID: "gated"}, tally.Processed)
	reg.Unlock()
	if cnt != nil {
		t.Fatal("registration should have been gated")
	}
	cnt.Inc()

	pub.Run()

	ev, ok := sink.find("Log statistics")
	if !ok {
		t.Fatal("statistics event must still be emitted")
	}
	if len(ev.Tags) != 0 {
		t.Fatalf("gated counter produced tags: %v", ev.Tags)
	}
}

func TestPublishEmptyIDAndInstance(t *testing.T) {
	opts := registry.Options{Level: 1, LogFreq: time.Second, Lifetime: 60 * time.Second}
	pub, reg, _, sink := newTestPublisher(t, opts, time.Unix(1700000000, 0))

	reg.Lock()
	cnt := reg.RegisterCounter(0, tally.Key{Source: tally.Global}, tally.Processed)
	reg.Unlock()
	cnt.Inc()

	pub.Run()

	ev, _ := sink.find("Log statistics")
	if !hasTag(ev, "processed", "global()=1") {
		t.Fatalf("missing global()=1 tag, got %v", ev.Tags)
	}
}

func TestPublishGroupDirection(t *testing.T) {
	opts := registry.Options{Level: 1, LogFreq: time.Second, Lifetime: 60 * time.Second}
	pub, reg, _, sink := newTestPublisher(t, opts, time.Unix(1700000000, 0))

	reg.Lock()
	src := reg.RegisterCounter(0, tally.Key{Source: tally.Group | tally.FlagSource, ID: "s_local"}, tally.Processed)
	dst := reg.RegisterCounter(0, tally.Key{Source: tally.Group | tally.FlagDestination, ID: "d_remote"}, tally.Processed)
	reg.Unlock()
	src.Inc()
	dst.Inc()

	pub.Run()

	ev, _ := sink.find("Log statistics")
	if !hasTag(ev, "processed", "source(s_local)=1") {
		t.Fatalf("missing source group tag, got %v", ev.Tags)
	}
	if !hasTag(ev, "processed", "destination(d_remote)=1") {
		t.Fatalf("missing destination group tag, got %v", ev.Tags)
	}
}

func TestPublishPrunesExpiredDynamic(t *testing.T) {
	const lifetime = 60 * time.Second
	start := time.Unix(1700000000, 0)
	opts := registry.Options{Level: 1, LogFreq: time.Second, Lifetime: lifetime}
	pub, reg, clock, sink := newTestPublisher(t, opts, start)

	key := tally.Key{Source: tally.Sender | tally.FlagSource, ID: "10.0.0.1"}
	reg.Lock()
	c, cnt, _ := reg.RegisterDynamicCounter(0, key, tally.Processed)
	stamp := reg.RegisterAssociatedCounter(c, tally.Stamp)
	stamp.Set(start.Unix())
	reg.UnregisterDynamicCounter(c, tally.Stamp, stamp)
	reg.UnregisterDynamicCounter(c, tally.Processed, cnt)
	reg.Unlock()

	// Still inside the lifetime: nothing pruned.
	clock.Advance(lifetime - time.Second)
	if res := pub.Run(); res.Dropped != 0 {
		t.Fatalf("pruned %d clusters before expiry", res.Dropped)
	}

	clock.Advance(2 * time.Second) // now = T + lifetime + 1
	res := pub.Run()
	if res.Dropped != 1 {
		t.Fatalf("Dropped = %d, want 1", res.Dropped)
	}

	notice, ok := sink.find("Pruning stats-counters have finished")
	if !ok {
		t.Fatal("no pruning notice emitted")
	}
	if notice.Priority != PriorityNotice {
		t.Fatalf("notice priority = %v, want notice", notice.Priority)
	}
	if !hasTag(notice, "dropped", "1") {
		t.Fatalf("missing dropped tag, got %v", notice.Tags)
	}
	if !hasTag(notice, "oldest-timestamp", fmt.Sprintf("%d", start.Unix())) {
		t.Fatalf("missing oldest-timestamp tag, got %v", notice.Tags)
	}

	reg.Lock()
	if got := reg.Len(); got != 0 {
		t.Fatalf("Len() after prune = %d, want 0", got)
	}
	reg.Unlock()
}

func TestPublishKeepsDynamicWithOutstandingRefs(t *testing.T) {
	const lifetime = 60 * time.Second
	start := time.Unix(1700000000, 0)
	opts := registry.Options{Level: 1, LogFreq: time.Second, Lifetime: lifetime}
	pub, reg, clock, sink := newTestPublisher(t, opts, start)

	key := tally.Key{Source: tally.Sender | tally.FlagSource, ID: "10.0.0.2"}
	reg.Lock()
	c, cnt, _ := reg.RegisterDynamicCounter(0, key, tally.Processed)
	stamp := reg.RegisterAssociatedCounter(c, tally.Stamp)
	stamp.Set(start.Unix())
	reg.UnregisterDynamicCounter(c, tally.Stamp, stamp)
	reg.Unlock()
	cnt.Inc()

	clock.Advance(2 * lifetime)
	if res := pub.Run(); res.Dropped != 0 {
		t.Fatalf("pruned a cluster with outstanding refs, Dropped = %d", res.Dropped)
	}

	ev, _ := sink.find("Log statistics")
	if !hasTag(ev, "processed", "src.sender(10.0.0.2)=1") {
		t.Fatalf("live dynamic counter missing from event, got %v", ev.Tags)
	}
}

func TestPublishKeepsDynamicWithoutStamp(t *testing.T) {
	const lifetime = 60 * time.Second
	opts := registry.Options{Level: 1, LogFreq: time.Second, Lifetime: lifetime}
	pub, reg, clock, _ := newTestPublisher(t, opts, time.Unix(1700000000, 0))

	key := tally.Key{Source: tally.RuleID, ID: "42"}
	reg.Lock()
	c, cnt, _ := reg.RegisterDynamicCounter(0, key, tally.Processed)
	reg.UnregisterDynamicCounter(c, tally.Processed, cnt)
	reg.Unlock()

	clock.Advance(10 * lifetime)
	if res := pub.Run(); res.Dropped != 0 {
		t.Fatalf("pruned a stampless cluster, Dropped = %d", res.Dropped)
	}
}

func TestPublishDisabledStillPrunes(t *testing.T) {
	const lifetime = 60 * time.Second
	start := time.Unix(1700000000, 0)
	opts := registry.Options{Level: 1, LogFreq: 0, Lifetime: lifetime}
	pub, reg, clock, sink := newTestPublisher(t, opts, start)

	reg.Lock()
	reg.RegisterAndIncrementDynamicCounter(0, tally.Key{Source: tally.Tag, ID: "auth"}, start.Unix())
	reg.Unlock()

	clock.Advance(lifetime + time.Second)
	res := pub.Run()

	if _, ok := sink.find("Log statistics"); ok {
		t.Fatal("log_freq=0 must not emit a statistics event")
	}
	if res.Dropped != 1 {
		t.Fatalf("Dropped = %d, want 1 (pruning is independent of publishing)", res.Dropped)
	}
	if _, ok := sink.find("Pruning stats-counters have finished"); !ok {
		t.Fatal("pruning notice must still be emitted")
	}
}

func TestPublishNeverPrunesStatic(t *testing.T) {
	const lifetime = 60 * time.Second
	start := time.Unix(1700000000, 0)
	opts := registry.Options{Level: 1, LogFreq: time.Second, Lifetime: lifetime}
	pub, reg, clock, _ := newTestPublisher(t, opts, start)

	key := tally.Key{Source: tally.File, ID: "static"}
	reg.Lock()
	cnt := reg.RegisterCounter(0, key, tally.Processed)
	stamp := reg.RegisterCounter(0, key, tally.Stamp)
	stamp.Set(start.Unix())
	reg.UnregisterCounter(key, tally.Stamp, stamp)
	reg.UnregisterCounter(key, tally.Processed, cnt)
	reg.Unlock()

	clock.Advance(100 * lifetime)
	if res := pub.Run(); res.Dropped != 0 {
		t.Fatalf("pruned a static cluster, Dropped = %d", res.Dropped)
	}
	reg.Lock()
	if got := reg.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
	reg.Unlock()
}
