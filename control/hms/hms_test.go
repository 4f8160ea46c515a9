package hms

import "testing"

func TestAddMinutes(t *testing.T) {
	testData := []struct {
		in    Time
		delta int
		want  Time
	}{
		{Time{23, 59, 0}, 1, Time{0, 0, 0}},
		{Time{0, 0, 0}, -1, Time{23, 59, 0}},
		{Time{10, 59, 30}, 1, Time{11, 0, 30}},
		{Time{11, 0, 0}, -1, Time{10, 59, 0}},
		{Time{23, 58, 0}, 5, Time{0, 3, 0}},
		{Time{0, 2, 0}, -5, Time{23, 57, 0}},
		{Time{12, 0, 0}, 0, Time{12, 0, 0}},
		{Time{0, 0, 0}, -24 * 60, Time{0, 0, 0}},
	}
	for _, test := range testData {
		t.Run(test.in.String(), func(t *testing.T) {
			got := test.in.AddMinutes(test.delta)
			if want := test.want; got != want {
				t.Errorf("%v + %d minutes:\n  got: %v\n want: %v", test.in, test.delta, got, want)
			}
			if !got.Valid() {
				t.Errorf("result %v is out of range", got)
			}
		})
	}
}

func TestAddSecond(t *testing.T) {
	if got, want := (Time{23, 59, 59}).AddSecond(), (Time{0, 0, 0}); got != want {
		t.Errorf("rollover:\n  got: %v\n want: %v", got, want)
	}
	if got, want := (Time{1, 2, 3}).AddSecond(), (Time{1, 2, 4}); got != want {
		t.Errorf("increment:\n  got: %v\n want: %v", got, want)
	}
}

func TestHours12(t *testing.T) {
	for h := uint8(0); h < 24; h++ {
		got := Time{Hours: h}.Hours12()
		if got < 1 || got > 12 {
			t.Fatalf("hour %d: got %d, outside 1-12", h, got)
		}
		if got%12 != h%12 {
			t.Errorf("hour %d: got %d, not congruent mod 12", h, got)
		}
	}
}

func TestValid(t *testing.T) {
	if (Time{24, 0, 0}).Valid() || (Time{0, 60, 0}).Valid() || (Time{0, 0, 60}).Valid() {
		t.Error("out of range time reported valid")
	}
	if !Fallback.Valid() || !Sentinel.Valid() {
		t.Error("built-in times should be valid")
	}
}
