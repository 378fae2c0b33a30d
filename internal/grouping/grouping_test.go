package grouping

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pl-listing/lister/internal/models"
)

func TestExtractID(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		expected models.ProductID
	}{
		{"management number with suffix", "1212260021698_front.jpg", "1212260021698"},
		{"management number only", "1503050030649.jpg", "1503050030649"},
		{"management number after prefix", "IMG-A_1212260021698-2.png", "1212260021698"},
		{"thirteen digits preferred over earlier run", "2024_1212260021698.jpg", "1212260021698"},
		{"first of several thirteen digit runs", "1111111111111_2222222222222.jpg", "1111111111111"},
		{"fourteen digits is not a management number", "12345678901234.jpg", "12345678901234"},
		{"first digit run fallback", "item42_7.jpg", "42"},
		{"no digits", "photo.png", "photo"},
		{"no extension", "noext", "noext"},
		{"dotfile keeps name", ".jpg", ".jpg"},
		{"multiple dots", "shirt.back.webp", "shirt.back"},
		{"digits in extension ignored", "front.jp2", "front"},
		{"full width digits are not digits", "商品１２３.jpg", "商品１２３"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractID(tt.filename); got != tt.expected {
				t.Errorf("ExtractID(%q) = %q, want %q", tt.filename, got, tt.expected)
			}
		})
	}
}

func TestExtractIDIsStable(t *testing.T) {
	name := "x_9999999999999_back.jpeg"
	first := ExtractID(name)
	for i := 0; i < 100; i++ {
		if got := ExtractID(name); got != first {
			t.Fatalf("ExtractID not stable: %q then %q", first, got)
		}
	}
}

func TestIsImageFile(t *testing.T) {
	tests := map[string]bool{
		"a.jpg":       true,
		"a.JPG":       true,
		"a.jpeg":      true,
		"a.png":       true,
		"a.WebP":      true,
		"badfile.txt": false,
		"noext":       false,
		"a.":          false,
		"a.gif":       false,
	}
	for name, want := range tests {
		if got := IsImageFile(name); got != want {
			t.Errorf("IsImageFile(%q) = %v, want %v", name, got, want)
		}
	}
}

func rawFiles(names ...string) []models.RawFile {
	files := make([]models.RawFile, len(names))
	for i, n := range names {
		files[i] = models.RawFile{Name: n, Data: []byte(n)}
	}
	return files
}

func groupNames(g models.ImageGroup) []string {
	names := make([]string, len(g.Images))
	for i, img := range g.Images {
		names[i] = img.Name
	}
	return names
}

func TestGroupScenario(t *testing.T) {
	files := rawFiles("1212260021698_1.jpg", "1212260021698_2.jpg", "9999999999999_1.jpg", "badfile.txt", "noext")

	res, err := NewGrouper(0).Group(files)
	if err != nil {
		t.Fatalf("Group returned error: %v", err)
	}

	if len(res.Groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(res.Groups))
	}
	if res.Groups[0].ProductID != "1212260021698" || res.Groups[1].ProductID != "9999999999999" {
		t.Errorf("Unexpected group order: %q, %q", res.Groups[0].ProductID, res.Groups[1].ProductID)
	}
	if got := groupNames(res.Groups[0]); !reflect.DeepEqual(got, []string{"1212260021698_1.jpg", "1212260021698_2.jpg"}) {
		t.Errorf("Unexpected images in first group: %v", got)
	}
	if len(res.Groups[1].Images) != 1 {
		t.Errorf("Expected 1 image in second group, got %d", len(res.Groups[1].Images))
	}
	if res.NotImages != 2 {
		t.Errorf("Expected 2 non-image files, got %d", res.NotImages)
	}
	if res.Accepted != 3 {
		t.Errorf("Expected 3 accepted files, got %d", res.Accepted)
	}
}

func TestGroupPreservesInsertionOrder(t *testing.T) {
	files := rawFiles("b_2.jpg", "a_1.jpg", "2222222222222_z.png", "1111111111111_b.png", "2222222222222_a.png", "1111111111111_a.png")

	res, err := NewGrouper(0).Group(files)
	if err != nil {
		t.Fatalf("Group returned error: %v", err)
	}

	var ids []models.ProductID
	for _, g := range res.Groups {
		ids = append(ids, g.ProductID)
	}
	want := []models.ProductID{"2", "1", "2222222222222", "1111111111111"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("Expected group order %v, got %v", want, ids)
	}

	g, ok := res.Group("1111111111111")
	if !ok {
		t.Fatal("Expected lookup of 1111111111111 to succeed")
	}
	if got := groupNames(g); !reflect.DeepEqual(got, []string{"1111111111111_b.png", "1111111111111_a.png"}) {
		t.Errorf("Images were reordered: %v", got)
	}
}

func TestGroupEveryImageInExactlyOneGroup(t *testing.T) {
	files := rawFiles("1.jpg", "1_2.jpg", "x.png", "x.webp", "3333333333333.jpeg", "y.txt")

	first, err := NewGrouper(0).Group(files)
	if err != nil {
		t.Fatalf("Group returned error: %v", err)
	}
	second, err := NewGrouper(0).Group(files)
	if err != nil {
		t.Fatalf("Group returned error: %v", err)
	}
	if !reflect.DeepEqual(first.Groups, second.Groups) {
		t.Error("Grouping the same input twice gave different groups")
	}

	seen := map[string]int{}
	for _, g := range first.Groups {
		for _, img := range g.Images {
			seen[img.Name]++
			if ExtractID(img.Name) != g.ProductID {
				t.Errorf("%s placed in group %s", img.Name, g.ProductID)
			}
		}
	}
	for _, f := range files {
		if !IsImageFile(f.Name) {
			continue
		}
		if seen[f.Name] != 1 {
			t.Errorf("%s appears in %d groups", f.Name, seen[f.Name])
		}
	}
}

func TestGroupCeiling(t *testing.T) {
	files := rawFiles("1.jpg", "2.jpg", "notes.txt", "3.jpg", "1_b.jpg")

	res, err := NewGrouper(2).Group(files)
	if err != nil {
		t.Fatalf("Group returned error: %v", err)
	}
	if res.Accepted != 2 {
		t.Errorf("Expected 2 accepted files, got %d", res.Accepted)
	}
	if res.Dropped() != 2 {
		t.Errorf("Expected 2 dropped files, got %d", res.Dropped())
	}
	if len(res.Groups) != 2 {
		t.Errorf("Expected 2 groups, got %d", len(res.Groups))
	}
}

func TestGroupNoImages(t *testing.T) {
	res, err := NewGrouper(0).Group(rawFiles("readme.txt", "noext"))
	if !errors.Is(err, ErrNoImages) {
		t.Fatalf("Expected ErrNoImages, got %v", err)
	}
	if len(res.Groups) != 0 {
		t.Errorf("Expected no groups, got %d", len(res.Groups))
	}
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{
		filepath.Join(dir, "b_1.jpg"),
		filepath.Join(dir, "a_1.png"),
		filepath.Join(dir, "notes.txt"),
		filepath.Join(sub, "c_1.webp"),
	} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := ScanDir(dir)
	if err != nil {
		t.Fatalf("ScanDir returned error: %v", err)
	}

	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	want := []string{"a_1.png", "b_1.jpg", "c_1.webp"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Expected %v, got %v", want, names)
	}
}

func TestScanDirMissing(t *testing.T) {
	if _, err := ScanDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Expected error for missing directory")
	}
}
