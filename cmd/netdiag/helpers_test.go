package main

import (
	"reflect"
	"testing"

	"github.com/hakim/netdiag/internal/models"
)

func TestSplitCSV(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"purity", []string{"purity"}},
		{" purity , ,privacy ", []string{"purity", "privacy"}},
		{"10.0.0.0/8,192.168.0.0/16", []string{"10.0.0.0/8", "192.168.0.0/16"}},
	}
	for _, tt := range tests {
		got := splitCSV(tt.in)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitCSV(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseCategories(t *testing.T) {
	got, err := parseCategories([]string{"Privacy", "dns-leak"})
	if err != nil {
		t.Fatalf("parseCategories: %v", err)
	}
	want := []models.Category{models.CategoryPrivacy, models.CategoryDNSLeak}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	all, err := parseCategories([]string{"purity", "all"})
	if err != nil {
		t.Fatalf("parseCategories(all): %v", err)
	}
	if !reflect.DeepEqual(all, models.Categories) {
		t.Errorf("all = %v, want %v", all, models.Categories)
	}

	if _, err := parseCategories([]string{"anycast"}); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID(abc) = %q", got)
	}
	if got := shortID("0123456789abcdef"); got != "01234567..." {
		t.Errorf("shortID = %q", got)
	}
}
