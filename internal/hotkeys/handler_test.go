package hotkeys

import (
	"testing"

	"github.com/BurntSushi/xgb/xproto"
)

func TestKeysClassify(t *testing.T) {
	keys := Keys{
		Modifier: xproto.ModMask1,
		Cycle:    []xproto.Keycode{23},
		Cancel:   []xproto.Keycode{9},
	}
	tests := []struct {
		name       string
		press      bool
		code       xproto.Keycode
		state      uint16
		isModifier bool
		want       Action
	}{
		{"tab", true, 23, xproto.ModMask1, false, ActionForward},
		{"shift tab", true, 23, xproto.ModMask1 | xproto.ModMaskShift, false, ActionBackward},
		{"escape", true, 9, xproto.ModMask1, false, ActionCancel},
		{"other key", true, 38, xproto.ModMask1, false, ActionNone},
		{"alt released", false, 64, xproto.ModMask1, true, ActionComplete},
		{"tab released", false, 23, xproto.ModMask1, false, ActionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := keys.Classify(tt.press, tt.code, tt.state, tt.isModifier); got != tt.want {
				t.Fatalf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

type fakeSwitcher struct {
	switching bool
	calls     []string
}

func (f *fakeSwitcher) Switching() bool { return f.switching }
func (f *fakeSwitcher) Start() bool     { f.switching = true; f.calls = append(f.calls, "start"); return true }
func (f *fakeSwitcher) CycleForward()   { f.calls = append(f.calls, "forward") }
func (f *fakeSwitcher) CycleBackward()  { f.calls = append(f.calls, "backward") }
func (f *fakeSwitcher) Complete()       { f.switching = false; f.calls = append(f.calls, "complete") }
func (f *fakeSwitcher) Cancel()         { f.switching = false; f.calls = append(f.calls, "cancel") }

func TestHandlerApply(t *testing.T) {
	sw := &fakeSwitcher{switching: true}
	h := &Handler{sw: sw}

	for _, a := range []Action{ActionForward, ActionBackward, ActionNone, ActionComplete} {
		h.Apply(a)
	}
	want := []string{"forward", "backward", "complete"}
	if len(sw.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", sw.calls, want)
	}
	for i := range want {
		if sw.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", sw.calls, want)
		}
	}

	sw.calls = nil
	h.Abort()
	if len(sw.calls) != 0 {
		t.Fatalf("Abort on an idle switcher called %v", sw.calls)
	}
}

func TestCancelKeyEndsPointerSession(t *testing.T) {
	sw := &fakeSwitcher{}
	h := &Handler{sw: sw, keys: Keys{Modifier: xproto.ModMask1, Cycle: []xproto.Keycode{23}, Cancel: []xproto.Keycode{9}}}
	cancelled := 0
	// Held without an X grab; ungrabKeyboard is a no-op when not grabbed.
	h.onCancel = func() { cancelled++ }

	tests := []struct {
		name string
		code xproto.Keycode
		want int
	}{
		{"other key", 38, 0},
		{"cycle key", 23, 0},
		{"escape", 9, 1},
	}
	for _, tt := range tests {
		h.keyPressed(tt.code, 0)
		if cancelled != tt.want {
			t.Fatalf("%s: cancelled = %d, want %d", tt.name, cancelled, tt.want)
		}
	}
	if h.Holding() {
		t.Fatal("cancel key did not release the hold")
	}
	if len(sw.calls) != 0 {
		t.Fatalf("pointer session keys reached the switcher: %v", sw.calls)
	}
}

func TestHoldCancelSkippedWhileSwitching(t *testing.T) {
	sw := &fakeSwitcher{switching: true}
	h := &Handler{sw: sw, keys: Keys{Cancel: []xproto.Keycode{9}}}
	if err := h.HoldCancel(func() {}); err != nil {
		t.Fatalf("HoldCancel() error = %v", err)
	}
	if h.Holding() {
		t.Fatal("pointer session took the keyboard from the switcher")
	}

	sw.switching = false
	h.keys.Cancel = nil
	if err := h.HoldCancel(func() {}); err != nil || h.Holding() {
		t.Fatalf("HoldCancel() without a cancel key = %v, holding %v", err, h.Holding())
	}
}
