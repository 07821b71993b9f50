package digest

import (
	"testing"
)

func TestChecksum(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Checksum([]byte("abc")); got != want {
		t.Errorf("Checksum(abc) = %q, want %q", got, want)
	}
}

func TestArtHash(t *testing.T) {
	if got := ArtHash(); got != "" {
		t.Errorf("ArtHash() = %q, want empty", got)
	}
	a := ArtHash("p1", "p2")
	if len(a) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(a))
	}
	if a == ArtHash("p2", "p1") {
		t.Error("expected order to change the hash")
	}
	if a != ArtHash("p1", "p2") {
		t.Error("expected deterministic hash")
	}
}

func TestShard_SingleBucket(t *testing.T) {
	for _, n := range []int{-1, 0, 1} {
		if got := Shard("item", n); got != 0 {
			t.Errorf("Shard(item, %d) = %d, want 0", n, got)
		}
	}
}

func TestShard_Distribution(t *testing.T) {
	counts := make(map[int]int)
	for i := 0; i < 1000; i++ {
		s := Shard(CardID("u", "T", string(rune('a'+i%26)), string(rune('a'+i/26))), 8)
		if s < 0 || s >= 8 {
			t.Fatalf("shard %d out of range", s)
		}
		counts[s]++
	}
	if len(counts) < 8 {
		t.Errorf("expected all 8 shards used, got %d", len(counts))
	}
}

func TestCardID(t *testing.T) {
	tests := []struct {
		user, typ string
		subject   []string
		want      string
	}{
		{"u1", "CHAT_ACTIVITY", nil, "u1:CHAT_ACTIVITY"},
		{"u1", "COMMENT_ACTIVITY", []string{"p9"}, "u1:COMMENT_ACTIVITY:p9"},
	}
	for _, tt := range tests {
		if got := CardID(tt.user, tt.typ, tt.subject...); got != tt.want {
			t.Errorf("CardID = %q, want %q", got, tt.want)
		}
	}
}

func TestEventID(t *testing.T) {
	a := EventID("post/1", "-", "", "3")
	if a != EventID("post/1", "-", "", "3") {
		t.Error("expected deterministic id")
	}
	if a == EventID("post/1", "-", "3", "4") {
		t.Error("expected different images to give different ids")
	}
}
