package hotkey

import "testing"

func TestParseKey(t *testing.T) {
	tests := []struct {
		in   string
		want Key
	}{
		{"z", Key{Name: "z", Code: 44}},
		{"Z", Key{Name: "z", Code: 44}},
		{"a", Key{Name: "a", Code: 30}},
		{"0", Key{Name: "0", Code: 11}},
		{"1", Key{Name: "1", Code: 2}},
		{"9", Key{Name: "9", Code: 10}},
		{"f1", Key{Name: "f1", Code: 59}},
		{"f12", Key{Name: "f12", Code: 88}},
		{"f13", Key{Name: "f13", Code: 183}},
		{"rightalt", Key{Name: "rightalt", Code: 100}},
		{"ctrl+shift+space", Key{Name: "space", Mods: ModCtrl | ModShift, Code: 57}},
		{" Control + F5 ", Key{Name: "f5", Mods: ModCtrl, Code: 63}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKey(tt.in)
			if err != nil {
				t.Fatalf("ParseKey(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseKey(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseKeyErrors(t *testing.T) {
	for _, in := range []string{"", "ctrl+", "hyper+z", "f25", "f0", "enterprise", "z+ctrl"} {
		if _, err := ParseKey(in); err == nil {
			t.Errorf("ParseKey(%q) should fail", in)
		}
	}
}

func TestKeyString(t *testing.T) {
	k, err := ParseKey("shift+ctrl+space")
	if err != nil {
		t.Fatal(err)
	}
	if got := k.String(); got != "ctrl+shift+space" {
		t.Errorf("String() = %q", got)
	}
}

func TestFakeHotkeyPreservesOrder(t *testing.T) {
	hk := NewFake()
	hk.SimKeydown()
	hk.SimKeyup()
	hk.SimKeydown()
	for i, want := range []Event{Down, Up, Down} {
		if got := <-hk.Events(); got != want {
			t.Fatalf("event %d = %v, want %v", i, got, want)
		}
	}
}
