package player

import "testing"

func TestSnapshotDesired(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want DesiredState
	}{
		{
			name: "inactive zeroes everything",
			snap: Snapshot{DocumentID: "doc", Position: 3, Playing: true, Audio: []byte{1}},
			want: DesiredState{},
		},
		{
			name: "bytes missing",
			snap: Snapshot{Active: true, DocumentID: "doc", Position: 1, Playing: true},
			want: DesiredState{Active: true, DocumentID: "doc", Position: 1, Playing: true},
		},
		{
			name: "bytes present",
			snap: Snapshot{Active: true, DocumentID: "doc", Audio: []byte{}},
			want: DesiredState{Active: true, DocumentID: "doc", HasAudio: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.snap.Desired()
			if !ShallowEqual(got, tt.want) {
				t.Errorf("Desired() = %+v, want %+v", got, tt.want)
			}
			if got.SegmentID() != tt.snap.SegmentID() {
				t.Errorf("SegmentID mismatch: %q vs %q", got.SegmentID(), tt.snap.SegmentID())
			}
		})
	}
}

func TestShallowEqual(t *testing.T) {
	base := DesiredState{Active: true, DocumentID: "doc", Position: 2, Playing: true, HasAudio: true}

	tests := []struct {
		name   string
		modify func(*DesiredState)
		equal  bool
	}{
		{"identical", func(d *DesiredState) {}, true},
		{"document", func(d *DesiredState) { d.DocumentID = "other" }, false},
		{"position", func(d *DesiredState) { d.Position = 3 }, false},
		{"playing", func(d *DesiredState) { d.Playing = false }, false},
		{"audio", func(d *DesiredState) { d.HasAudio = false }, false},
		{"active", func(d *DesiredState) { d.Active = false }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base
			tt.modify(&other)
			if got := ShallowEqual(base, other); got != tt.equal {
				t.Errorf("ShallowEqual() = %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestSnapshotSegmentIDInactive(t *testing.T) {
	if id := (Snapshot{DocumentID: "doc"}).SegmentID(); id != "" {
		t.Errorf("inactive SegmentID() = %q, want empty", id)
	}
}
