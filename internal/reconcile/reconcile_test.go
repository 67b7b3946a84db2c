package reconcile

import (
	"reflect"
	"sync"
	"testing"

	"github.com/nerrad567/tuya-fusion-core/internal/point"
)

func TestArbiterHysteresis(t *testing.T) {
	a := NewArbiter(1)

	report := func(source string, n int) {
		for i := 0; i < n; i++ {
			a.RegisterReport("d1", source, []string{"add_ele"})
		}
	}

	report("sharing", 5)
	report("openapi", 4)
	if got := a.AllowedSource("d1", "add_ele"); got != "sharing" {
		t.Fatalf("with 5/4 allowed = %q, want sharing", got)
	}

	report("openapi", 1) // 5/5
	if got := a.AllowedSource("d1", "add_ele"); got != "sharing" {
		t.Fatalf("tie must keep the incumbent, got %q", got)
	}

	report("openapi", 1) // 5/6
	if got := a.AllowedSource("d1", "add_ele"); got != "openapi" {
		t.Fatalf("challenger ahead by threshold should win, got %q", got)
	}
}

func TestArbiterWiderThreshold(t *testing.T) {
	a := NewArbiter(3)

	for i := 0; i < 2; i++ {
		a.RegisterReport("d1", "sharing", []string{"x"})
	}
	if got := a.AllowedSource("d1", "x"); got != "sharing" {
		t.Fatalf("first decision = %q, want sharing", got)
	}

	for i := 0; i < 4; i++ { // 2/4: lead of 2 < 3
		a.RegisterReport("d1", "openapi", []string{"x"})
	}
	if got := a.AllowedSource("d1", "x"); got != "sharing" {
		t.Fatalf("lead below threshold must keep incumbent, got %q", got)
	}

	a.RegisterReport("d1", "openapi", []string{"x"}) // 2/5: lead of 3
	if got := a.AllowedSource("d1", "x"); got != "openapi" {
		t.Fatalf("lead at threshold should switch, got %q", got)
	}
}

func TestArbiterUntrackedPassThrough(t *testing.T) {
	a := NewArbiter(1)
	a.RegisterReport("d1", "sharing", []string{"add_ele"})

	batch := []point.StatusUpdate{
		{Code: "add_ele", Value: float64(5)},
		{Code: "switch_1", Value: true},
	}

	got := a.FilterBatch("d1", "openapi", batch)
	want := []point.StatusUpdate{{Code: "switch_1", Value: true}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilterBatch = %v, want %v", got, want)
	}

	// The winning source keeps both entries.
	got = a.FilterBatch("d1", "sharing", batch)
	if !reflect.DeepEqual(got, batch) {
		t.Errorf("winning source filtered = %v, want full batch", got)
	}
}

func TestArbiterForget(t *testing.T) {
	a := NewArbiter(1)
	a.RegisterReport("d1", "sharing", []string{"add_ele"})
	if !a.Tracked("d1", "add_ele") {
		t.Fatal("expected tracked state")
	}
	a.Forget("d1")
	if a.Tracked("d1", "add_ele") {
		t.Error("state should be dropped after Forget")
	}
}

func TestArbiterConcurrentReports(t *testing.T) {
	a := NewArbiter(1)

	var wg sync.WaitGroup
	for _, source := range []string{"sharing", "openapi"} {
		wg.Add(1)
		go func(src string) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				a.RegisterReport("d1", src, []string{"add_ele"})
				a.AllowedSource("d1", "add_ele")
			}
		}(source)
	}
	wg.Wait()

	if got := a.AllowedSource("d1", "add_ele"); got == "" {
		t.Error("expected a decision after concurrent reports")
	}
}

func meterDevice() *point.Device {
	d := point.New("bf200")
	d.Category = "zndb"
	d.Status["add_ele"] = float64(100)
	d.Status["forward_energy_total"] = float64(5000)
	d.StatusRange["add_ele"] = &point.Spec{
		Code: "add_ele", Type: point.TypeInteger, PointID: 17,
		Values: `{"min":0,"max":99990,"scale":1,"step":1}`,
	}
	d.StatusRange["forward_energy_total"] = &point.Spec{
		Code: "forward_energy_total", Type: point.TypeInteger, PointID: 18,
		Values: `{"min":0,"max":999999,"scale":2}`,
	}
	d.LocalStrategy[17] = &point.StrategyEntry{
		PointID: 17, StatusCode: "add_ele",
		AccessMode: point.AccessReadOnly, ValueConvert: point.ValueConvertDefault,
	}
	d.LocalStrategy[18] = &point.StrategyEntry{
		PointID: 18, StatusCode: "forward_energy_total",
		AccessMode: point.AccessReadOnly, ValueConvert: point.ValueConvertDefault,
	}
	return d
}

func TestSummedDeltaToTotal(t *testing.T) {
	h := NewHandler(NewArbiter(1), DefaultRules())
	dev := meterDevice()

	out := h.Process(dev, "sharing", []point.StatusUpdate{
		{Code: "add_ele", Value: float64(7)},
	})

	if len(out) == 0 || out[0].Code != "add_ele" {
		t.Fatalf("unexpected batch %v", out)
	}
	if out[0].Value != float64(107) {
		t.Errorf("summed value = %v, want 107", out[0].Value)
	}
}

func TestSummedFirstObservationSeedsTotal(t *testing.T) {
	h := NewHandler(NewArbiter(1), DefaultRules())
	dev := meterDevice()
	delete(dev.Status, "add_ele")

	out := h.Process(dev, "sharing", []point.StatusUpdate{
		{Code: "add_ele", Value: float64(7)},
	})
	if out[0].Value != float64(7) {
		t.Errorf("first observation = %v, want raw 7", out[0].Value)
	}
}

func TestCopyValueCreatesSibling(t *testing.T) {
	h := NewHandler(NewArbiter(1), DefaultRules())
	dev := meterDevice()

	out := h.Process(dev, "sharing", []point.StatusUpdate{
		{Code: "add_ele", Value: float64(7)},
	})

	var mirrored *point.StatusUpdate
	for i := range out {
		if out[i].Code == "add_ele_total" {
			mirrored = &out[i]
		}
	}
	if mirrored == nil {
		t.Fatalf("no mirrored update in %v", out)
	}
	if mirrored.Value != float64(107) {
		t.Errorf("mirrored value = %v, want the computed total 107", mirrored.Value)
	}

	spec, ok := dev.StatusRange["add_ele_total"]
	if !ok {
		t.Fatal("sibling status_range entry not created")
	}
	if spec.PointID < VirtualPointIDBase {
		t.Errorf("sibling point id = %d, want >= %d", spec.PointID, VirtualPointIDBase)
	}
	if spec.Type != point.TypeInteger {
		t.Errorf("sibling type = %q, want cloned Integer", spec.Type)
	}

	entry, ok := dev.LocalStrategy[spec.PointID]
	if !ok {
		t.Fatal("sibling local_strategy entry not created")
	}
	if entry.StatusCode != "add_ele_total" {
		t.Errorf("sibling status code = %q", entry.StatusCode)
	}

	// A second report must reuse the sibling, not allocate again.
	h.Process(dev, "sharing", []point.StatusUpdate{
		{Code: "add_ele", Value: float64(3)},
	})
	if got := dev.StatusRange["add_ele_total"].PointID; got != spec.PointID {
		t.Errorf("sibling reallocated: %d -> %d", spec.PointID, got)
	}
}

func TestCopyDeltaMirrorsDifference(t *testing.T) {
	h := NewHandler(NewArbiter(1), DefaultRules())
	dev := meterDevice()

	out := h.Process(dev, "sharing", []point.StatusUpdate{
		{Code: "forward_energy_total", Value: float64(5040)},
	})

	var delta *point.StatusUpdate
	for i := range out {
		if out[i].Code == "forward_energy_delta" {
			delta = &out[i]
		}
	}
	if delta == nil {
		t.Fatalf("no delta update in %v", out)
	}
	if delta.Value != float64(40) {
		t.Errorf("delta = %v, want 40", delta.Value)
	}
}

func TestProcessFiltersBeforeVirtualStates(t *testing.T) {
	h := NewHandler(NewArbiter(1), DefaultRules())
	dev := meterDevice()

	// Establish sharing as the winning source for add_ele.
	for i := 0; i < 3; i++ {
		h.Process(dev, "sharing", []point.StatusUpdate{
			{Code: "add_ele", Value: float64(0)},
		})
	}

	// A losing source's delta must be dropped entirely: no commit
	// entry and no advance of the running total.
	out := h.Process(dev, "openapi", []point.StatusUpdate{
		{Code: "add_ele", Value: float64(50)},
	})
	if len(out) != 0 {
		t.Errorf("losing source's batch should be empty after filter, got %v", out)
	}
}

func TestProcessUntrackedCategoryPassThrough(t *testing.T) {
	h := NewHandler(NewArbiter(1), DefaultRules())
	dev := point.New("bf300")
	dev.Category = "wsdcg" // no rules for this category

	batch := []point.StatusUpdate{{Code: "temp_current", Value: float64(221)}}
	out := h.Process(dev, "openapi", batch)
	if !reflect.DeepEqual(out, batch) {
		t.Errorf("pass-through batch = %v, want %v", out, batch)
	}
}
