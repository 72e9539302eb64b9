package repository

import (
	"context"
	"errors"
	"testing"
)

func TestParseFacilities(t *testing.T) {
	fs, err := ParseFacilities(" 1|10|Court A|padel|Africa/Algiers ; 2|10|Pitch 5|football5|Europe/Paris;")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(fs) != 2 {
		t.Fatalf("want 2 facilities, got %d", len(fs))
	}
	if fs[0].ID != 1 || fs[0].ClubID != 10 || fs[0].Name != "Court A" || fs[0].Timezone != "Africa/Algiers" {
		t.Fatalf("unexpected first facility %+v", fs[0])
	}
	if fs[1].Sport != "football5" {
		t.Fatalf("unexpected second facility %+v", fs[1])
	}
}

func TestParseFacilitiesErrors(t *testing.T) {
	for _, in := range []string{"1|10|A|padel", "x|10|A|padel|UTC", "1|y|A|padel|UTC"} {
		if _, err := ParseFacilities(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
	if fs, err := ParseFacilities(""); err != nil || len(fs) != 0 {
		t.Fatalf("empty seed: %v %v", fs, err)
	}
}

func TestMemoryFacilities(t *testing.T) {
	fs, _ := ParseFacilities("3|1|Court C|tennis|UTC")
	dir := NewMemoryFacilities(fs...)
	f, err := dir.GetFacility(context.Background(), 3)
	if err != nil || f.Name != "Court C" {
		t.Fatalf("get: %v %+v", err, f)
	}
	if _, err := dir.GetFacility(context.Background(), 4); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
