package ring

import (
	"testing"
)

func testRoster() []ClusterNode {
	return []ClusterNode{
		{ID: "A", Host: "127.0.0.1", Port: 7000, GossipPort: 8000},
		{ID: "B", Host: "127.0.0.1", Port: 7001, GossipPort: 8001},
		{ID: "C", Host: "127.0.0.1", Port: 7002, GossipPort: 8002},
	}
}

func TestDeterminism(t *testing.T) {
	roster := testRoster()
	r1 := Build(roster, 8)
	r2 := Build(roster, 8)

	for _, key := range []string{"x", "y", "hello", "another-key", ""} {
		n1, err1 := r1.Primary(key)
		n2, err2 := r2.Primary(key)
		if err1 != nil || err2 != nil {
			t.Fatalf("Primary(%q) errors: %v, %v", key, err1, err2)
		}
		if n1.ID != n2.ID {
			t.Fatalf("Primary(%q) = %s vs %s, want same node", key, n1.ID, n2.ID)
		}
	}
}

func TestTotality(t *testing.T) {
	r := Build(testRoster(), 4)
	for i := 0; i < 200; i++ {
		key := string(rune('a' + i%26))
		node, err := r.Primary(key)
		if err != nil {
			t.Fatalf("Primary(%q) returned error: %v", key, err)
		}
		if node.ID == "" {
			t.Fatalf("Primary(%q) returned empty node", key)
		}
	}
}

func TestEmptyRosterIsFatal(t *testing.T) {
	r := Build(nil, 4)
	if _, err := r.Primary("any"); err != ErrNoOwner {
		t.Fatalf("Primary on empty ring = %v, want %v", err, ErrNoOwner)
	}
}

func TestSingleNodeOwnsEverything(t *testing.T) {
	roster := []ClusterNode{{ID: "solo", Host: "127.0.0.1", Port: 7000, GossipPort: 8000}}
	r := Build(roster, 16)

	for _, key := range []string{"a", "b", "zzz", ""} {
		node, err := r.Primary(key)
		if err != nil {
			t.Fatalf("Primary(%q) error: %v", key, err)
		}
		if node.ID != "solo" {
			t.Fatalf("Primary(%q) = %s, want solo", key, node.ID)
		}
	}
}

func TestMinimumOneVnode(t *testing.T) {
	r := Build(testRoster(), 0)
	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 (V clamped to 1)", r.Len())
	}
}

func TestVnodeCount(t *testing.T) {
	r := Build(testRoster(), 10)
	if r.Len() != 30 {
		t.Fatalf("Len() = %d, want 30", r.Len())
	}
}

func TestDistributionIsNotDegenerate(t *testing.T) {
	r := Build(testRoster(), 32)
	owners := map[string]int{}
	for i := 0; i < 2000; i++ {
		key := hashableKey(i)
		node, _ := r.Primary(key)
		owners[node.ID]++
	}
	if len(owners) != 3 {
		t.Fatalf("keys landed on %d distinct owners, want 3: %v", len(owners), owners)
	}
	for id, count := range owners {
		if count == 0 {
			t.Fatalf("node %s owns no keys", id)
		}
	}
}

func hashableKey(i int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 0, 8)
	for i > 0 || len(b) == 0 {
		b = append(b, alphabet[i%len(alphabet)])
		i /= len(alphabet)
	}
	return string(b)
}
