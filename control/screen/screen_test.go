package screen

import (
	"bytes"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrockway/vfd-clock/control/display"
)

type fixedSource struct {
	d    display.Digits
	duty uint8
}

func (f fixedSource) Digits() display.Digits { return f.d }
func (f fixedSource) Duty() uint8            { return f.duty }

func segmentColor(t *testing.T, d display.Digits, duty uint8, digit, segment int) color.NRGBA {
	t.Helper()
	img := Render(d, duty)
	r := segmentRects[segment].Add(origin(digit))
	return img.NRGBAAt(r.Min.X+1, r.Min.Y+1)
}

func TestRender(t *testing.T) {
	one := display.Digits{D: [4]uint8{1, 1, 1, 1}}
	testData := []struct {
		name    string
		segment int
		duty    uint8
		want    color.NRGBA
	}{
		{"lit segment at full duty", 1, 255, phosphor},
		{"unlit segment at full duty", 0, 255, unlit},
		{"lit segment with the display off", 1, 0, unlit},
	}
	for _, test := range testData {
		t.Run(test.name, func(t *testing.T) {
			if got, want := segmentColor(t, one, test.duty, 2, test.segment), test.want; got != want {
				t.Errorf("segment color:\n  got: %v\n want: %v", got, want)
			}
		})
	}

	dim := segmentColor(t, one, 26, 2, 1)
	if dim == unlit || dim == phosphor {
		t.Errorf("dim segment should be between unlit and fully lit, got %v", dim)
	}
}

func TestServeHTTP(t *testing.T) {
	s := New(fixedSource{d: display.Digits{D: [4]uint8{1, 2, 3, 4}, Separator: true}, duty: 128})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/display.png", nil))
	if got, want := rec.Code, http.StatusOK; got != want {
		t.Errorf("status:\n  got: %d\n want: %d", got, want)
	}
	if got, want := rec.Header().Get("content-type"), "image/png"; got != want {
		t.Errorf("content-type:\n  got: %s\n want: %s", got, want)
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if got, want := img.Bounds().Dx(), width; got != want {
		t.Errorf("width:\n  got: %d\n want: %d", got, want)
	}
}
