package mbean

import (
	"reflect"
	"testing"

	"github.com/vpbank/beanpoller/models"
)

func TestResolveOIDsDefaultsToPatternDotZero(t *testing.T) {
	got := resolveOIDs(models.Query{Pattern: "1.3.6.1.2.1.1.1"})
	want := []string{"1.3.6.1.2.1.1.1.0"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("resolveOIDs() = %v, want %v", got, want)
	}
}

func TestResolveOIDsAppendsAttributesToPattern(t *testing.T) {
	got := resolveOIDs(models.Query{Pattern: "1.3.6.1.2.1.2.2.1", Attributes: []string{"10", "16"}})
	want := []string{"1.3.6.1.2.1.2.2.1.10.0", "1.3.6.1.2.1.2.2.1.16.0"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("resolveOIDs() = %v, want %v", got, want)
	}
}

func TestResolveOIDsAbsoluteAttributeOverridesPattern(t *testing.T) {
	got := resolveOIDs(models.Query{Pattern: "1.3.6.1.2.1.2", Attributes: []string{".1.3.6.1.2.1.99.1"}})
	want := []string{".1.3.6.1.2.1.99.1.0"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("resolveOIDs() = %v, want %v", got, want)
	}
}

func TestResolveOIDsEmptyPatternNoAttributes(t *testing.T) {
	if got := resolveOIDs(models.Query{}); got != nil {
		t.Fatalf("resolveOIDs() = %v, want nil", got)
	}
}
