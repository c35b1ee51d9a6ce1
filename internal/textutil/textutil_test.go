package textutil

import (
	"math"
	"reflect"
	"testing"
)

func TestSimilarityNil(t *testing.T) {
	tests := []struct {
		name string
		a    *Fingerprint
		b    *Fingerprint
	}{
		{"both nil", nil, nil},
		{"a nil", nil, NewFingerprint("hello world")},
		{"b nil", NewFingerprint("hello world"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Similarity(tt.b); got != 0 {
				t.Errorf("Similarity() = %v, want 0", got)
			}
		})
	}
}

func TestSimilarityRange(t *testing.T) {
	same := NewFingerprint("The quick brown fox jumps over the lazy dog")
	if got := same.Similarity(NewFingerprint("the QUICK brown fox jumps over the lazy dog")); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical text similarity = %v, want 1", got)
	}
	if got := NewFingerprint("apple banana cherry").Similarity(NewFingerprint("dog elephant frog")); got != 0 {
		t.Errorf("disjoint similarity = %v, want 0", got)
	}
	partial := NewFingerprint("the quick brown fox").Similarity(NewFingerprint("the slow brown cat"))
	if partial <= 0 || partial >= 1 {
		t.Errorf("partial similarity = %v, want between 0 and 1", partial)
	}
}

func TestTokenizeFoldsAccents(t *testing.T) {
	got := Tokenize("Crème brûlée at a café, OK?")
	want := []string{"creme", "brulee", "cafe"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize() = %q, want %q", got, want)
	}
}

func TestRank(t *testing.T) {
	candidates := []string{
		"https://www.pexels.com/video/city-traffic-at-night-123/",
		"https://www.pexels.com/video/woman-opening-a-gift-box-456/",
		"https://www.pexels.com/video/ocean-waves-789/",
	}
	order := Rank("person opening a box", candidates)
	if order[0] != 1 {
		t.Fatalf("expected box clip first, got order %v", order)
	}
	if !reflect.DeepEqual(Rank("", candidates), []int{0, 1, 2}) {
		t.Fatal("empty query should keep the original order")
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"Test Video", 0, "test-video"},
		{"  Crème Brûlée: 5 tips!  ", 0, "creme-brulee-5-tips"},
		{"a very long title indeed", 11, "a-very-long"},
		{"!!!", 0, "untitled"},
	}
	for _, tt := range tests {
		if got := Slug(tt.in, tt.max, "untitled"); got != tt.want {
			t.Errorf("Slug(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestWrap(t *testing.T) {
	got := Wrap("one two three four five six seven", 10)
	want := []string{"one two", "three four", "five six", "seven"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Wrap() = %q, want %q", got, want)
	}
	if got := Wrap("supercalifragilistic ok", 5); !reflect.DeepEqual(got, []string{"supercalifragilistic", "ok"}) {
		t.Fatalf("long word wrap = %q", got)
	}
	if Wrap("   ", 10) != nil {
		t.Fatal("blank text should produce no lines")
	}
	if WordCount(" a  b c ") != 3 {
		t.Fatal("unexpected word count")
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		512:             "512 B",
		2048:            "2.00 KiB",
		5 * 1024 * 1024: "5.00 MiB",
		3 << 30:         "3.00 GiB",
	}
	for in, want := range cases {
		if got := FormatBytes(in); got != want {
			t.Fatalf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
