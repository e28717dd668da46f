package location

import (
	"sync"
	"testing"
)

func TestRouter_SwitchNotifiesOnlyOnChange(t *testing.T) {
	r := NewRouter(Context{ID: "guilford", DisplayName: "Guilford"})
	var seen []string
	r.OnChange(func(c Context) { seen = append(seen, c.ID) })

	if r.Switch(Context{ID: "guilford", DisplayName: "Renamed"}) {
		t.Error("switching to the active id should be a no-op")
	}
	if r.Current().DisplayName != "Guilford" {
		t.Error("no-op switch must not replace the current value")
	}
	if !r.Switch(Context{ID: "stamford", DisplayName: "Stamford"}) {
		t.Error("expected switch to report a change")
	}
	if len(seen) != 1 || seen[0] != "stamford" {
		t.Errorf("unexpected notifications %v", seen)
	}
	if name, value := r.Header(); name != "X-LOCATION" || value != "stamford" {
		t.Errorf("unexpected header %s=%s", name, value)
	}
}

func TestRouter_SubscriberSeesNewValue(t *testing.T) {
	r := NewRouter(Context{ID: "a"})
	var current Context
	r.OnChange(func(Context) { current = r.Current() })
	r.Switch(Context{ID: "b"})
	if current.ID != "b" {
		t.Errorf("subscriber should observe the new current value, got %q", current.ID)
	}
}

func TestRouter_KeyTracksCurrentLocation(t *testing.T) {
	r := NewRouter(Context{ID: "guilford"})
	kx := r.Key("jobs", 1, 10)
	r.Switch(Context{ID: "stamford"})
	ky := r.Key("jobs", 1, 10)
	if kx == ky {
		t.Fatalf("keys for different locations collided: %q", kx)
	}
	if kx != Key("jobs", 1, 10, "guilford") {
		t.Errorf("router key differs from Key(): %q", kx)
	}
}

func TestKey_Injective(t *testing.T) {
	type tuple struct {
		op         string
		page, size int
		loc        string
	}
	tuples := []tuple{
		{"jobs", 1, 10, "x"},
		{"jobs", 11, 0, "x"},
		{"jobs", 1, 10, "x|1"},
		{"jobs|1", 1, 10, "x"},
		{"jobs", 1, 10, ""},
		{"jobs", 1, 1, "0|x"},
		{"jobs%7C1", 1, 10, "x"},
		{"contacts", 1, 10, "x"},
	}
	seen := map[string]tuple{}
	for _, tc := range tuples {
		k := Key(tc.op, tc.page, tc.size, tc.loc)
		if prev, dup := seen[k]; dup {
			t.Errorf("key %q produced by %+v and %+v", k, prev, tc)
		}
		seen[k] = tc
		if k != Key(tc.op, tc.page, tc.size, tc.loc) {
			t.Errorf("key for %+v is not deterministic", tc)
		}
	}
}

func TestRouter_ConcurrentSwitchNotifiesEachChange(t *testing.T) {
	r := NewRouter(Context{ID: "start"})
	var mu sync.Mutex
	notified := 0
	r.OnChange(func(Context) {
		mu.Lock()
		notified++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	var changed int32
	var cmu sync.Mutex
	ids := []string{"a", "b", "a", "b", "c", "a"}
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if r.Switch(Context{ID: id}) {
				cmu.Lock()
				changed++
				cmu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	if int(changed) != notified {
		t.Errorf("switch reported %d changes but %d notifications were sent", changed, notified)
	}
}

func TestDirectory(t *testing.T) {
	d := NewDirectory(
		Context{ID: "guilford", DisplayName: "Guilford"},
		Context{ID: "stamford"},
	)
	if c, ok := d.Resolve("guilford"); !ok || c.DisplayName != "Guilford" {
		t.Errorf("unexpected resolve %+v %v", c, ok)
	}
	if c, _ := d.Resolve("stamford"); c.DisplayName != "stamford" {
		t.Errorf("missing display name should default to id, got %q", c.DisplayName)
	}
	if c, ok := d.Resolve("unknown"); ok || c.DisplayName != "unknown" {
		t.Errorf("unknown id should resolve to itself, got %+v %v", c, ok)
	}
	d.Add(Context{ID: "guilford", DisplayName: "Guilford CT"})
	list := d.List()
	if len(list) != 2 || list[0].DisplayName != "Guilford CT" {
		t.Errorf("unexpected list %+v", list)
	}
}
