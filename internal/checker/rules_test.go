package checker

import (
	"context"
	"reflect"
	"testing"
)

func TestRulesCheck_SuspiciousWords(t *testing.T) {
	c := &RulesChecker{}
	res := c.Check(context.Background(), "https://secure-update.example.com/verify/account")

	if !res.HasSuspiciousWords {
		t.Fatal("expected suspicious words")
	}
	want := []string{"account", "secure", "update", "verify"}
	if !reflect.DeepEqual(res.MatchedSuspicious, want) {
		t.Errorf("matched = %v, want %v", res.MatchedSuspicious, want)
	}
}

func TestRulesCheck_BrandInHostOnly(t *testing.T) {
	c := &RulesChecker{}

	// Brand in hostname counts
	res := c.Check(context.Background(), "https://paypal-support.example.com")
	if !res.HasBrandWordsInHost {
		t.Error("expected brand match in host")
	}
	if len(res.MatchedBrands) != 1 || res.MatchedBrands[0] != "paypal" {
		t.Errorf("brands = %v", res.MatchedBrands)
	}

	// Brand only in the path does not count
	res = c.Check(context.Background(), "https://example.com/paypal")
	if res.HasBrandWordsInHost {
		t.Error("brand in path must not count as host match")
	}
}

func TestRulesCheck_PathDepth(t *testing.T) {
	c := &RulesChecker{}

	res := c.Check(context.Background(), "https://example.com/a/b/c")
	if res.PathDepth != 3 {
		t.Errorf("path depth = %d, want 3", res.PathDepth)
	}

	res = c.Check(context.Background(), "example.com")
	if res.PathDepth != 0 {
		t.Errorf("path depth = %d, want 0", res.PathDepth)
	}
}

func TestRulesCheck_CleanURL(t *testing.T) {
	c := &RulesChecker{}
	res := c.Check(context.Background(), "https://example.com/about")

	if res.HasSuspiciousWords || res.HasBrandWordsInHost {
		t.Errorf("unexpected matches: %+v", res)
	}
}
