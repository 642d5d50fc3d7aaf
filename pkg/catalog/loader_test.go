package catalog

import "testing"

func TestEntriesLoads(t *testing.T) {
	entries, err := New().Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("embedded catalog is empty")
	}
	for _, entry := range entries {
		if entry.Vendor == "" {
			t.Error("catalog entry with empty vendor")
		}
		if len(entry.ModelPrefixes) == 0 {
			t.Errorf("vendor %q has no model prefixes", entry.Vendor)
		}
	}
}

func TestLookup(t *testing.T) {
	c := New()

	entry, ok := c.Lookup("DS-K1T341AM")
	if !ok {
		t.Fatal("Lookup(DS-K1T341AM) = not found")
	}
	if entry.Vendor != "Hikvision" {
		t.Errorf("Vendor = %q, want %q", entry.Vendor, "Hikvision")
	}

	if _, ok := c.Lookup("ds-k1t341am"); !ok {
		t.Error("Lookup must be case-insensitive")
	}
	if _, ok := c.Lookup("TotallyUnknown-9000"); ok {
		t.Error("Lookup(unknown) = found, want not found")
	}
	if _, ok := c.Lookup(""); ok {
		t.Error("Lookup(\"\") = found, want not found")
	}
}
