package profile

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m"
)

func TestCompile(t *testing.T) {
	snap, errs := Compile(Definition{
		Name:       " meter ",
		Attributes: []string{"3/0/1", "/3/0/0", "bogus"},
		Telemetry:  []string{"/3/0/9", "/3/0/9/1/2"},
		Observe:    []string{"/3/0/9/"},
		KeyNames: map[string]string{
			"/3/0/1": "firmwareVersion",
			"3/0/9":  "batteryLevel",
			"/3/0/0": "  ",
			"x":      "broken",
		},
	})

	require.Len(t, errs, 3)
	for _, err := range errs {
		assert.True(t, errors.Is(err, lwm2m.ErrMalformedPath), "error %v should wrap ErrMalformedPath", err)
	}

	assert.Equal(t, "meter", snap.Name)
	assert.Equal(t, []string{"/3/0/0", "/3/0/1"}, snap.Attributes.Sorted())
	assert.Equal(t, []string{"/3/0/9"}, snap.Telemetry.Sorted())
	assert.Equal(t, []string{"/3/0/9"}, snap.Observe.Sorted())

	name, ok := snap.KeyName("/3/0/9")
	assert.True(t, ok)
	assert.Equal(t, "batteryLevel", name)

	_, ok = snap.KeyName("/3/0/0")
	assert.False(t, ok, "blank names are dropped")
}

func TestSnapshotDesiredObservations(t *testing.T) {
	snap, errs := Compile(Definition{
		Attributes: []string{"/3/0/1", "/3/0"},
		Telemetry:  []string{"/3/0/9"},
		Observe:    []string{"/3/0/1", "/3/0/9", "/3/0/13", "/3/0"},
	})
	require.Empty(t, errs)

	// /3/0/13 is in no category, /3/0 is not a concrete resource.
	assert.Equal(t, []string{"/3/0/1", "/3/0/9"}, snap.DesiredObservations().Sorted())
}

func TestSnapshotDefinitionRoundTrip(t *testing.T) {
	def := Definition{
		Name:       "tracker",
		Attributes: []string{"/3/0/0"},
		Telemetry:  []string{"/6/0/0", "/6/0/1"},
		Observe:    []string{"/6/0/0"},
		KeyNames:   map[string]string{"/6/0/0": "lat", "/6/0/1": "lon", "/3/0/0": "vendor"},
	}
	snap, errs := Compile(def)
	require.Empty(t, errs)
	assert.Equal(t, def, snap.Definition())
}

func TestProfileReconcile(t *testing.T) {
	id := uuid.New()
	old, _ := Compile(Definition{Telemetry: []string{"/3/0/9"}})
	p := New(id, old)

	next, _ := Compile(Definition{Telemetry: []string{"/3/0/9"}, Observe: []string{"/3/0/9"}})

	var (
		seenOld, seenNext *Snapshot
		seenVersion       uint64
	)
	changed := p.Reconcile(next, func(o, n *Snapshot, v uint64) {
		seenOld, seenNext, seenVersion = o, n, v
		// Callback runs before the swap.
		assert.Same(t, old, p.current)
	})

	require.True(t, changed)
	assert.Same(t, old, seenOld)
	assert.Same(t, next, seenNext)
	assert.Equal(t, uint64(2), seenVersion)
	cur, version := p.Current()
	assert.Same(t, next, cur)
	assert.Equal(t, uint64(2), version)

	same, _ := Compile(Definition{Telemetry: []string{"/3/0/9"}, Observe: []string{"/3/0/9"}})
	called := false
	assert.False(t, p.Reconcile(same, func(_, _ *Snapshot, _ uint64) { called = true }))
	assert.False(t, called, "no-op replacement must not run the callback")
}

func TestProfileConcurrentReaders(t *testing.T) {
	p := New(uuid.New(), nil)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				snap, _ := p.Current()
				_ = snap.Reported()
			}
		}()
	}
	for i := 0; i < 20; i++ {
		next, _ := Compile(Definition{Attributes: []string{"/3/0/" + string(rune('0'+i%10))}})
		p.Reconcile(next, nil)
	}
	wg.Wait()
}
