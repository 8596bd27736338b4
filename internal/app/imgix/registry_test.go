package imgix

import "testing"

func TestRegistryKeepsCursor(t *testing.T) {
	r := NewRegistry(nil)
	src := Source{Name: "avatars", Domains: []string{"a.imgix.net", "b.imgix.net"}, ShardStrategy: ShardCycle}

	var got []string
	for i := 0; i < 4; i++ {
		b, err := r.Get(src)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		got = append(got, b.SelectDomain("/x.png"))
	}
	want := []string{"a.imgix.net", "b.imgix.net", "a.imgix.net", "b.imgix.net"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("selection %d: got %v, want %v", i, got, want)
		}
	}
	if r.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", r.Len())
	}
}

func TestRegistryRebuildsOnChange(t *testing.T) {
	r := NewRegistry(nil)
	src := Source{Name: "avatars", Domains: []string{"a.imgix.net", "b.imgix.net"}, ShardStrategy: ShardCycle}

	first, err := r.Get(src)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	first.SelectDomain("/x.png")

	// Fields that do not affect URLs keep the builder.
	src.URLCount = 99
	same, err := r.Get(src)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if same != first {
		t.Fatal("builder replaced for a non-URL change")
	}

	src.SignKey = "new-key"
	second, err := r.Get(src)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if second == first {
		t.Fatal("builder not replaced after sign key change")
	}
	if d := second.SelectDomain("/x.png"); d != "a.imgix.net" {
		t.Fatalf("new builder should start at the first domain, got %s", d)
	}
}

func TestRegistryDomainsNotAliased(t *testing.T) {
	r := NewRegistry(nil)
	domains := []string{"a.imgix.net"}
	src := Source{Name: "avatars", Domains: domains}
	first, err := r.Get(src)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	domains[0] = "z.imgix.net"
	second, err := r.Get(Source{Name: "avatars", Domains: []string{"z.imgix.net"}})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first == second {
		t.Fatal("registry compared against the caller's mutated slice")
	}
}

func TestRegistryForget(t *testing.T) {
	r := NewRegistry(nil)
	src := Source{Name: "avatars", Domains: []string{"a.imgix.net"}}
	if _, err := r.Get(src); err != nil {
		t.Fatalf("Get: %v", err)
	}
	r.Forget("avatars")
	if r.Len() != 0 {
		t.Fatalf("Len after Forget: got %d", r.Len())
	}
}

func TestRegistryEmptyDomains(t *testing.T) {
	r := NewRegistry(nil)
	if _, err := r.Get(Source{Name: "empty"}); err != ErrNoDomains {
		t.Fatalf("got %v, want %v", err, ErrNoDomains)
	}
}
