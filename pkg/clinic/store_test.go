package clinic

import "testing"

func TestSortSlotKeys(t *testing.T) {
	keys := []SlotKey{
		RoomSlot(2, "2025-08-30 09:00:00"),
		DoctorSlot(1, "2025-08-30 09:00:00"),
		DoctorSlot(1, "2025-08-30 09:00:00"),
		DoctorSlot(1, "2025-08-30 08:00:00"),
	}
	got := SortSlotKeys(keys)
	want := []SlotKey{
		DoctorSlot(1, "2025-08-30 08:00:00"),
		DoctorSlot(1, "2025-08-30 09:00:00"),
		RoomSlot(2, "2025-08-30 09:00:00"),
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d keys after dedupe, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("key %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSlotKeyHash(t *testing.T) {
	doctor := DoctorSlot(1, "2025-08-30 09:00:00")
	if doctor.Hash() != doctor.Hash() {
		t.Error("hash must be deterministic")
	}
	room := RoomSlot(1, "2025-08-30 09:00:00")
	if doctor.Hash() == room.Hash() {
		t.Error("doctor and room slots with the same id and time must not share a lock")
	}
}
