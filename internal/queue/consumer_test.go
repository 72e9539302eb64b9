package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestFormatLine(t *testing.T) {
	booker := uint64(42)
	cases := []struct {
		name string
		key  string
		body any
		want []string
	}{
		{
			name: "slot created",
			key:  RKSlotCreated,
			body: SlotEvent{SlotID: "s1", FacilityID: 3, Start: "2025-06-02T18:00:00+01:00", End: "2025-06-02T19:00:00+01:00", Price: "40", OccurredAt: "t"},
			want: []string{"Slot created", "slot_id=s1", "facility_id=3", "price=40"},
		},
		{
			name: "slot cancelled",
			key:  RKSlotCancelled,
			body: SlotEvent{SlotID: "s1", Reason: "rain"},
			want: []string{"Slot cancelled by facility", `reason="rain"`},
		},
		{
			name: "account reservation",
			key:  RKReservationCreated,
			body: ReservationEvent{ReservationID: "r1", SlotID: "s1", BookerID: &booker},
			want: []string{"Reservation created", "reservation_id=r1", "booker=account:42"},
		},
		{
			name: "walk-in cancelled by facility",
			key:  RKReservationCancelled,
			body: ReservationEvent{ReservationID: "r2", ManualBookerName: "Karim", CancelledBy: CancelledByFacility, Reason: "maintenance"},
			want: []string{"Reservation cancelled", `booker=walk-in:"Karim"`, "by=facility", `reason="maintenance"`},
		},
		{
			name: "no-show",
			key:  RKReservationNoShow,
			body: ReservationEvent{ReservationID: "r3", BookerID: &booker},
			want: []string{"Reservation no-show"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			line, err := FormatLine(tc.key, mustJSON(t, tc.body))
			if err != nil {
				t.Fatalf("format: %v", err)
			}
			if !strings.HasSuffix(line, "\n") || strings.Count(line, "\n") != 1 {
				t.Fatalf("want a single line, got %q", line)
			}
			for _, w := range tc.want {
				if !strings.Contains(line, w) {
					t.Fatalf("line %q missing %q", line, w)
				}
			}
		})
	}
}

func TestFormatLineUnknownAndMalformed(t *testing.T) {
	if line, err := FormatLine("court.updated", []byte(`{}`)); err != nil || line != "" {
		t.Fatalf("unknown key: %q %v", line, err)
	}
	if _, err := FormatLine(RKSlotCreated, []byte(`{`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestHandleMessageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "notifications.log")
	out := NewNotificationLog(path)
	body := mustJSON(t, SlotEvent{SlotID: "s1"})
	for i := 0; i < 2; i++ {
		if err := HandleMessage(RKSlotCreated, body, out); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if err := HandleMessage("unknown.key", body, out); err != nil {
		t.Fatalf("unknown key should be skipped: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(b), "\n"); n != 2 {
		t.Fatalf("want 2 lines, got %d: %s", n, b)
	}
}
