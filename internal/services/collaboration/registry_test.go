package collaboration

import (
	"slices"
	"testing"
)

func TestPresenceRegistryJoinIsIdempotent(t *testing.T) {
	r := NewPresenceRegistry()

	r.Join("d1", "alice")
	r.Join("d1", "bob")
	got := r.Join("d1", "alice")

	if want := []string{"alice", "bob"}; !slices.Equal(got, want) {
		t.Fatalf("Join() = %v, want %v", got, want)
	}
}

func TestPresenceRegistryLeave(t *testing.T) {
	tests := []struct {
		name    string
		joined  []string
		leave   string
		want    []string
		wantDoc bool
	}{
		{name: "remove one of two", joined: []string{"alice", "bob"}, leave: "alice", want: []string{"bob"}, wantDoc: true},
		{name: "last member drops entry", joined: []string{"alice"}, leave: "alice", want: []string{}, wantDoc: false},
		{name: "absent identity is a no-op", joined: []string{"alice"}, leave: "carol", want: []string{"alice"}, wantDoc: true},
		{name: "unknown document", joined: nil, leave: "alice", want: []string{}, wantDoc: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewPresenceRegistry()
			for _, id := range tt.joined {
				r.Join("d1", id)
			}

			got := r.Leave("d1", tt.leave)
			if got == nil {
				t.Fatal("Leave() returned nil, want empty slice")
			}
			if !slices.Equal(got, tt.want) {
				t.Fatalf("Leave() = %v, want %v", got, tt.want)
			}
			if hasDoc := slices.Contains(r.Documents(), "d1"); hasDoc != tt.wantDoc {
				t.Fatalf("Documents() contains d1 = %v, want %v", hasDoc, tt.wantDoc)
			}
		})
	}
}

func TestPresenceRegistrySnapshotsAreCopies(t *testing.T) {
	r := NewPresenceRegistry()
	members := r.Join("d1", "alice")
	members[0] = "mallory"

	if got := r.Members("d1"); got[0] != "alice" {
		t.Fatalf("Members() = %v, registry was mutated through a snapshot", got)
	}
}

func TestPresenceRegistryDocumentsSorted(t *testing.T) {
	r := NewPresenceRegistry()
	r.Join("zeta", "a")
	r.Join("alpha", "b")
	r.Join("mid", "c")

	if got, want := r.Documents(), []string{"alpha", "mid", "zeta"}; !slices.Equal(got, want) {
		t.Fatalf("Documents() = %v, want %v", got, want)
	}
}
