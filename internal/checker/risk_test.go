package checker

import (
	"reflect"
	"testing"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

func TestComputeRisk_AllSignalsClamp(t *testing.T) {
	ssl := &SSLResult{HTTPSOK: false, Expired: boolPtr(true)}
	whoisRecord := &WhoisResult{AgeDays: intPtr(5)}
	idn := &IDNResult{IsIDN: true, MixedConfusableScripts: true}
	rules := &RulesResult{HasSuspiciousWords: true, HasBrandWordsInHost: true}

	// 30+30+30+10+25+15+20 = 160, must clamp to 100
	v := ComputeRisk(ssl, whoisRecord, idn, rules)
	if v.Score != 100 {
		t.Errorf("score = %d, want 100", v.Score)
	}
	if v.Label != "High Risk" {
		t.Errorf("label = %q, want High Risk", v.Label)
	}

	want := []string{"no_https", "expired_cert", "very_new_domain", "idn_domain", "mixed_scripts", "phishy_words", "brand_in_host"}
	if !reflect.DeepEqual(v.Reasons, want) {
		t.Errorf("reasons = %v, want %v", v.Reasons, want)
	}
}

func TestComputeRisk_LabelStepFunction(t *testing.T) {
	// Drive the score directly through signal combinations.
	tests := []struct {
		ssl   *SSLResult
		whois *WhoisResult
		idn   *IDNResult
		rules *RulesResult
		score int
		label string
	}{
		// 30+30+10 = 70 -> High
		{&SSLResult{HTTPSOK: false, Expired: boolPtr(true)}, nil, &IDNResult{IsIDN: true}, nil, 70, "High Risk"},
		// 30+25+10 = 65 -> Medium
		{&SSLResult{HTTPSOK: false}, nil, &IDNResult{IsIDN: true, MixedConfusableScripts: true}, nil, 65, "Medium Risk"},
		// 30+10 = 40 -> Medium (threshold boundary)
		{&SSLResult{HTTPSOK: false}, nil, &IDNResult{IsIDN: true}, nil, 40, "Medium Risk"},
		// 15+20 = 35 -> Low
		{&SSLResult{HTTPSOK: true}, nil, nil, &RulesResult{HasSuspiciousWords: true, HasBrandWordsInHost: true}, 35, "Low Risk"},
		// nothing fires -> 0 Low
		{&SSLResult{HTTPSOK: true}, nil, nil, nil, 0, "Low Risk"},
	}
	for i, tc := range tests {
		v := ComputeRisk(tc.ssl, tc.whois, tc.idn, tc.rules)
		if v.Score != tc.score {
			t.Errorf("case %d: score = %d, want %d", i, v.Score, tc.score)
		}
		if v.Label != tc.label {
			t.Errorf("case %d: label = %q, want %q", i, v.Label, tc.label)
		}
	}
}

func TestComputeRisk_AgeBuckets(t *testing.T) {
	ssl := &SSLResult{HTTPSOK: true}

	v := ComputeRisk(ssl, &WhoisResult{AgeDays: intPtr(20)}, nil, nil)
	if v.Score != 30 || v.Reasons[0] != "very_new_domain" {
		t.Errorf("age 20: %+v", v)
	}

	v = ComputeRisk(ssl, &WhoisResult{AgeDays: intPtr(120)}, nil, nil)
	if v.Score != 15 || v.Reasons[0] != "new_domain" {
		t.Errorf("age 120: %+v", v)
	}

	v = ComputeRisk(ssl, &WhoisResult{AgeDays: intPtr(400)}, nil, nil)
	if v.Score != 0 || len(v.Reasons) != 0 {
		t.Errorf("age 400: %+v", v)
	}

	// Absent age skips the signal entirely
	v = ComputeRisk(ssl, &WhoisResult{}, nil, nil)
	if v.Score != 0 || len(v.Reasons) != 0 {
		t.Errorf("absent age: %+v", v)
	}
}

func TestComputeRisk_Idempotent(t *testing.T) {
	ssl := &SSLResult{HTTPSOK: false}
	idn := &IDNResult{MixedConfusableScripts: true}

	first := ComputeRisk(ssl, nil, idn, nil)
	second := ComputeRisk(ssl, nil, idn, nil)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("aggregation is not idempotent: %+v vs %+v", first, second)
	}
}

func TestComputeRisk_NilCheckersSkip(t *testing.T) {
	v := ComputeRisk(nil, nil, nil, nil)
	if v.Score != 0 {
		t.Errorf("score = %d, want 0", v.Score)
	}
	if v.Label != "Low Risk" {
		t.Errorf("label = %q", v.Label)
	}
	if len(v.Reasons) != 0 {
		t.Errorf("reasons = %v", v.Reasons)
	}
}
