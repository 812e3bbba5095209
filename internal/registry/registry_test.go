package registry

import (
	"errors"
	"testing"
)

func testSources() []SourceDescriptor {
	return []SourceDescriptor{
		{ID: "connectx7", URL: "https://docs.nvidia.com/networking/display/ConnectX7VPI", Title: "ConnectX-7 User Manual", Category: CategoryPrimary},
		{ID: "doca", URL: "https://docs.nvidia.com/doca/sdk", Title: "DOCA SDK", Category: CategoryPrimary},
		{ID: "mlx5-kernel", URL: "https://www.kernel.org/doc/html/latest/networking/device_drivers/ethernet/mellanox/mlx5/index.html", Title: "mlx5 Kernel Driver", Category: CategoryDriver},
	}
}

func TestNewValidSources(t *testing.T) {
	r, err := New(testSources())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if r.Len() != 3 {
		t.Errorf("Len mismatch: got %d, want 3", r.Len())
	}
}

func TestNewRejectsEmptyTable(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("Expected error for empty source table")
	}
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	sources := testSources()
	sources = append(sources, sources[0])
	if _, err := New(sources); err == nil {
		t.Fatal("Expected error for duplicate source id")
	}
}

func TestNewRejectsInvalidURL(t *testing.T) {
	sources := testSources()
	sources[0].URL = "ftp://example.com/docs"
	if _, err := New(sources); err == nil {
		t.Fatal("Expected error for non-HTTP URL")
	}
}

func TestNewRejectsInvalidCategory(t *testing.T) {
	sources := testSources()
	sources[1].Category = "misc"
	if _, err := New(sources); err == nil {
		t.Fatal("Expected error for unknown category")
	}
}

func TestResolveKnownSource(t *testing.T) {
	r, _ := New(testSources())

	desc, err := r.Resolve("doca")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if desc.Title != "DOCA SDK" {
		t.Errorf("Title mismatch: got %s, want DOCA SDK", desc.Title)
	}
}

func TestResolveUnknownSource(t *testing.T) {
	r, _ := New(testSources())

	_, err := r.Resolve("unknown-id")
	if err == nil {
		t.Fatal("Expected error for unknown source")
	}

	var unknownErr *UnknownSourceError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("Expected UnknownSourceError, got %T", err)
	}
	if unknownErr.ID != "unknown-id" {
		t.Errorf("ID mismatch: got %s, want unknown-id", unknownErr.ID)
	}
	if len(unknownErr.Available) != 3 {
		t.Errorf("Available mismatch: got %d ids, want 3", len(unknownErr.Available))
	}
}

func TestListPreservesRegistrationOrder(t *testing.T) {
	r, _ := New(testSources())

	list := r.List()
	want := []string{"connectx7", "doca", "mlx5-kernel"}
	if len(list) != len(want) {
		t.Fatalf("List length mismatch: got %d, want %d", len(list), len(want))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("List[%d] mismatch: got %s, want %s", i, list[i].ID, id)
		}
	}
}

func TestGroupedByCategory(t *testing.T) {
	r, _ := New(testSources())

	groups := r.GroupedByCategory()
	if len(groups) != 2 {
		t.Fatalf("Group count mismatch: got %d, want 2", len(groups))
	}

	if groups[0].Category != CategoryPrimary {
		t.Errorf("First group mismatch: got %s, want %s", groups[0].Category, CategoryPrimary)
	}
	if len(groups[0].Sources) != 2 {
		t.Errorf("Primary group size mismatch: got %d, want 2", len(groups[0].Sources))
	}
	if groups[1].Category != CategoryDriver {
		t.Errorf("Second group mismatch: got %s, want %s", groups[1].Category, CategoryDriver)
	}
	if groups[1].Sources[0].ID != "mlx5-kernel" {
		t.Errorf("Driver group content mismatch: got %s, want mlx5-kernel", groups[1].Sources[0].ID)
	}
}

func TestGroupedByCategorySkipsEmptyCategories(t *testing.T) {
	r, _ := New(testSources())

	for _, group := range r.GroupedByCategory() {
		if len(group.Sources) == 0 {
			t.Errorf("Group %s is empty", group.Category)
		}
	}
}
