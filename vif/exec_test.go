//go:build linux && (amd64 || arm64)

package vif

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/cpu"

	"github.com/ajroetker/go-vifjit/logging"
	logtest "github.com/ajroetker/go-vifjit/logging/test"
	"github.com/ajroetker/go-vifjit/vif/emit"
)

// nativeTargets lists the backends this processor can run.
func nativeTargets() []emit.Target {
	switch runtime.GOARCH {
	case "amd64":
		targets := []emit.Target{emit.TargetSSE2}
		if cpu.X86.HasSSE41 {
			targets = append(targets, emit.TargetSSE41)
		}
		return targets
	case "arm64":
		return []emit.Target{emit.TargetNEON}
	}
	return nil
}

func newTable(t *testing.T, target emit.Target, opts ...Option) *Table {
	t.Helper()
	tbl, err := NewTable(append([]Option{WithTarget(target)}, opts...)...)
	if err != nil {
		t.Fatalf("NewTable(%s): %v", target, err)
	}
	t.Cleanup(func() { tbl.Close() })
	return tbl
}

func TestUnpackMatchesModel(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for _, target := range nativeTargets() {
		tbl := newTable(t, target)
		for _, f := range Formats() {
			for _, unsigned := range []bool{false, true} {
				for _, masked := range []bool{false, true} {
					name := fmt.Sprintf("%s/%s/unsigned=%v/masked=%v", target, f, unsigned, masked)
					t.Run(name, func(t *testing.T) {
						for _, n := range []int{1, 3, 4, 11, 16} {
							m := NewModel()
							if masked {
								for p := range m.Masks {
									m.Masks[p] = randTriple(r)
								}
								tbl.Masks().SetAll(m.Masks)
								defer tbl.Masks().Reset()
							}

							src := make([]byte, f.SourceSpan(n))
							for i := range src {
								src[i] = byte(r.Uint32())
							}
							want := make([]Vec, n)
							for i := range want {
								want[i] = randVec(r)
							}
							got := append([]Vec(nil), want...)

							if err := m.Unpack(f, unsigned, masked, want, src); err != nil {
								t.Fatal(err)
							}
							if err := tbl.Unpack(f, unsigned, masked, got, src); err != nil {
								t.Fatal(err)
							}
							if diff := cmp.Diff(want, got); diff != "" {
								t.Fatalf("n=%d (-model +handlers):\n%s", n, diff)
							}
						}
					})
				}
			}
		}
	}
}

func TestUnpackFixtures(t *testing.T) {
	fixtures := loadFixtures(t)
	for _, target := range nativeTargets() {
		tbl := newTable(t, target)
		for _, fx := range fixtures {
			t.Run(target.String()+"/"+fx.Name, func(t *testing.T) {
				if fx.Masked {
					tbl.Masks().SetAll(fx.masks())
					defer tbl.Masks().Reset()
				}
				dst := fx.dst()
				if err := tbl.Unpack(fx.format(t), fx.Unsigned, fx.Masked, dst, fx.source(t)); err != nil {
					t.Fatal(err)
				}
				if diff := cmp.Diff(fx.Want, dst); diff != "" {
					t.Errorf("unexpected result (-want +got):\n%s", diff)
				}
			})
		}
	}
}

func TestHandlerCall(t *testing.T) {
	for _, target := range nativeTargets() {
		tbl := newTable(t, target)
		src := []uint16{0x001F, 0x8000}
		var dst Vec
		tbl.Resolve(V4x5, true, false, 2).Call(&dst, unsafe.Pointer(&src[0]))
		if want := (Vec{0xF8, 0, 0, 0}); dst != want {
			t.Errorf("%s: got %x, want %x", target, dst, want)
		}

		words := [4]uint32{5, 6, 7, 8}
		tbl.Resolve(V4x32, false, false, 0).Call(&dst, unsafe.Pointer(&words))
		if dst != Vec(words) {
			t.Errorf("%s: V4-32 got %v", target, dst)
		}
	}
}

func TestHandlerCallNull(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("calling a null handler did not panic")
		}
	}()
	var dst Vec
	Handler(0).Call(&dst, nil)
}

func TestUnpackErrors(t *testing.T) {
	for _, target := range nativeTargets() {
		lg := logtest.New()
		tbl := newTable(t, target, WithLogger(lg))

		err := tbl.Unpack(V4x32, false, false, make([]Vec, 2), make([]byte, 31))
		if !errors.Is(err, ErrShortSource) {
			t.Errorf("%s: got %v, want ErrShortSource", target, err)
		}

		dst := []Vec{{1, 2, 3, 4}}
		if err := tbl.Unpack(7, false, false, dst, make([]byte, 16)); err != nil {
			t.Errorf("%s: reserved format returned %v", target, err)
		}
		if dst[0] != (Vec{1, 2, 3, 4}) {
			t.Errorf("%s: reserved format wrote %v", target, dst[0])
		}
		if n := lg.Count(logging.Warn); n != 1 {
			t.Errorf("%s: got %d warnings, want 1", target, n)
		}
		if err := tbl.Unpack(V4x32, false, false, nil, nil); err != nil {
			t.Errorf("%s: empty unpack: %v", target, err)
		}
	}
}

type registration struct {
	start uintptr
	size  int
	label string
}

type recordingSink struct {
	mu     sync.Mutex
	regs   []registration
	builds int
}

func (s *recordingSink) Register(start uintptr, size int, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs = append(s.regs, registration{start, size, label})
	return nil
}

func (s *recordingSink) ObserveBuild(target string, handlers int, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builds++
}

func TestTableRegistersCode(t *testing.T) {
	for _, target := range nativeTargets() {
		sink := &recordingSink{}
		tbl := newTable(t, target, WithSink(sink), WithHandlerSymbols())
		if len(sink.regs) != 1+tbl.Count() {
			t.Fatalf("%s: got %d registrations, want %d", target, len(sink.regs), 1+tbl.Count())
		}
		whole := sink.regs[0]
		if whole.label != RegionName || whole.size != len(tbl.Bytes()) {
			t.Errorf("%s: whole range registered as %+v", target, whole)
		}
		if whole.start != uintptr(unsafe.Pointer(&tbl.Bytes()[0])) {
			t.Errorf("%s: range starts at %#x, code at %p", target, whole.start, &tbl.Bytes()[0])
		}
		h := tbl.Resolve(S16, true, true, 1)
		want := RegionName + " " + Key{Format: S16, Unsigned: true, Masked: true, Phase: 1}.String()
		found := false
		for _, reg := range sink.regs[1:] {
			if reg.label == want {
				found = reg.start == uintptr(h)
			}
		}
		if !found {
			t.Errorf("%s: no registration %q at %#x", target, want, uintptr(h))
		}
		if sink.builds != 1 {
			t.Errorf("%s: ObserveBuild called %d times", target, sink.builds)
		}
	}
}

func TestDefault(t *testing.T) {
	if CurrentTarget() == emit.TargetNone {
		t.Skip("no target for this host")
	}
	tbl, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	if tbl != MustDefault() {
		t.Error("Default built a second table")
	}
	if !tbl.Executable() || tbl.Target() != CurrentTarget() {
		t.Errorf("default table: executable=%v target=%s", tbl.Executable(), tbl.Target())
	}
	dst := make([]Vec, 2)
	if err := tbl.Unpack(S8, false, false, dst, []byte{0x80, 0x7F, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if want := []Vec{{0xFFFFFF80, 0xFFFFFF80, 0xFFFFFF80, 0xFFFFFF80}, {0x7F, 0x7F, 0x7F, 0x7F}}; !cmp.Equal(want, dst) {
		t.Errorf("got %x", dst)
	}
}

func TestClosedTableIsEmpty(t *testing.T) {
	for _, target := range nativeTargets() {
		tbl, err := NewTable(WithTarget(target))
		if err != nil {
			t.Fatal(err)
		}
		if err := tbl.Close(); err != nil {
			t.Fatalf("%s: Close: %v", target, err)
		}

		if tbl.Executable() {
			t.Errorf("%s: closed table reports Executable", target)
		}
		if tbl.Masks() != nil {
			t.Errorf("%s: closed table still exposes its mask table", target)
		}
		if n := len(tbl.Bytes()); n != 0 {
			t.Errorf("%s: closed table has %d code bytes", target, n)
		}
		if tbl.Count() != 0 {
			t.Errorf("%s: closed table counts %d handlers", target, tbl.Count())
		}
		for i := 0; i < NumKeys; i++ {
			k := KeyAt(i)
			if _, _, ok := tbl.Entry(k); ok {
				t.Fatalf("%s %v: entry survives Close", target, k)
			}
			if tbl.Code(k) != nil {
				t.Fatalf("%s %v: code survives Close", target, k)
			}
			if h := tbl.Resolve(k.Format, k.Unsigned, k.Masked, k.Phase); h != 0 {
				t.Fatalf("%s %v: Resolve returned %#x after Close", target, k, uintptr(h))
			}
		}
		err = tbl.Unpack(V4x32, false, false, make([]Vec, 1), make([]byte, 16))
		if !errors.Is(err, ErrNotExecutable) {
			t.Errorf("%s: Unpack after Close: got %v, want ErrNotExecutable", target, err)
		}
		if err := tbl.Close(); err != nil {
			t.Errorf("%s: second Close: %v", target, err)
		}
	}
}

func TestNewTableRequiresCPUFeatures(t *testing.T) {
	saved := hasFeatures
	t.Cleanup(func() { hasFeatures = saved })
	hasFeatures = func(emit.Target) bool { return false }

	for _, target := range nativeTargets() {
		if CanExecute(target) {
			t.Errorf("%s: executable without its CPU features", target)
		}
		tbl, err := NewTable(WithTarget(target))
		if !errors.Is(err, ErrNotExecutable) {
			t.Errorf("%s: got %v, want ErrNotExecutable", target, err)
		}
		if tbl != nil {
			tbl.Close()
		}
	}
}
