package publisher

import (
	"testing"

	"github.com/labframe/api/notify"
)

func TestGlobFilter_EmptyMatchesAll(t *testing.T) {
	f, err := NewGlobFilter(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !f.Match("anything", notify.KindCreated) {
		t.Error("empty filter should match everything")
	}
}

func TestGlobFilter_ScopePatterns(t *testing.T) {
	f, err := NewGlobFilter([]string{"lab-*"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !f.Match("lab-alpha", notify.KindUpdated) {
		t.Error("expected lab-alpha to match lab-*")
	}
	if f.Match("prod", notify.KindUpdated) {
		t.Error("expected prod not to match lab-*")
	}
}

func TestGlobFilter_KindPatterns(t *testing.T) {
	f, err := NewGlobFilter(nil, []string{"created", "deleted"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !f.Match("alpha", notify.KindCreated) {
		t.Error("expected created to match")
	}
	if f.Match("alpha", notify.KindUpdated) {
		t.Error("expected updated not to match")
	}
}

func TestGlobFilter_InvalidPattern(t *testing.T) {
	if _, err := NewGlobFilter([]string{"[unclosed"}, nil); err == nil {
		t.Error("expected error for invalid scope pattern")
	}
	if _, err := NewGlobFilter(nil, []string{"[unclosed"}); err == nil {
		t.Error("expected error for invalid kind pattern")
	}
}
