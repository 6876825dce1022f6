package heuristic

import (
	"net"
	"strings"
	"testing"

	"github.com/hakim/netdiag/internal/models"
)

func TestPrivateRangesAreLowRisk(t *testing.T) {
	a := New(nil)
	for _, ip := range []string{
		"10.0.0.1", "10.255.255.254",
		"172.16.0.1", "172.31.255.254",
		"192.168.0.1", "192.168.255.255",
		"127.0.0.1", "127.255.255.255",
		"169.254.10.10", "224.0.0.251", "239.255.255.250", "240.0.0.1", "255.255.255.255",
		"::1", "fe80::1", "fd00::1",
	} {
		t.Run(ip, func(t *testing.T) {
			v := a.Analyze(ip)
			if !v.Reserved {
				t.Fatalf("%s should be reserved", ip)
			}
			if v.ThreatLevel != models.ThreatLow || v.RiskScore != 0 || v.PrivacyScore != 100 {
				t.Errorf("got level=%s risk=%d privacy=%d", v.ThreatLevel, v.RiskScore, v.PrivacyScore)
			}
			if v.Explanation != ExplanationReserved {
				t.Errorf("Explanation = %q", v.Explanation)
			}
			if len(v.Threats) != 0 {
				t.Errorf("reserved verdict should carry no threats: %+v", v.Threats)
			}
		})
	}
}

func TestLoopbackLocation(t *testing.T) {
	v := New(nil).Analyze("127.0.0.1")
	if v.Location != models.PrivateLocation {
		t.Errorf("Location = %q, want %q", v.Location, models.PrivateLocation)
	}
}

func TestReservedOverridesPatterns(t *testing.T) {
	// all-equal octets and trailing 255 would otherwise score
	v := New(nil).Analyze("255.255.255.255")
	if v.RiskScore != 0 {
		t.Errorf("RiskScore = %d, want 0", v.RiskScore)
	}
}

func TestPublicUnflaggedAddress(t *testing.T) {
	v := New(nil).Analyze("203.0.113.5")
	if v.Reserved || v.Tor || v.Malicious {
		t.Fatalf("unexpected flags: %+v", v)
	}
	if v.RiskScore != 0 || v.ThreatLevel != models.ThreatLow {
		t.Errorf("risk=%d level=%s", v.RiskScore, v.ThreatLevel)
	}
	if v.Explanation != "No local risk indicators found" {
		t.Errorf("Explanation = %q", v.Explanation)
	}
}

func TestRuleDeltas(t *testing.T) {
	tests := []struct {
		ip        string
		wantScore int
		wantType  string
	}{
		{"185.220.101.4", DeltaTor, "Tor Exit Node"},
		{"45.155.205.17", DeltaMalicious, "Malicious Activity"},
		{"159.89.1.2", DeltaDatacenter, "Datacenter/VPN"},
		{"73.12.34.56", DeltaDynamic, "Dynamic Range"},
		{"100.64.3.9", DeltaDynamic, "Dynamic Range"},
		{"9.9.9.9", DeltaAllEqualOctets, "Suspicious Pattern"},
		{"81.7.81.7", DeltaRepeatingPairs, "Suspicious Pattern"},
		{"81.2.3.0", DeltaTrailingZero, "Suspicious Pattern"},
		{"81.2.3.255", DeltaTrailing255, "Suspicious Pattern"},
	}

	a := New(nil)
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			v := a.Analyze(tt.ip)
			if v.RiskScore != tt.wantScore {
				t.Errorf("RiskScore = %d, want %d", v.RiskScore, tt.wantScore)
			}
			if len(v.Threats) == 0 || v.Threats[0].Type != tt.wantType {
				t.Errorf("Threats = %+v, want first type %q", v.Threats, tt.wantType)
			}
			if v.ThreatLevel != models.LevelFor(v.RiskScore) {
				t.Errorf("ThreatLevel %s inconsistent with score %d", v.ThreatLevel, v.RiskScore)
			}
		})
	}
}

func TestTorExitIsHighWhenCombined(t *testing.T) {
	// Tor range + trailing .0
	v := New(nil).Analyze("185.220.100.0")
	if v.RiskScore != DeltaTor+DeltaTrailingZero {
		t.Errorf("RiskScore = %d", v.RiskScore)
	}
	if v.ThreatLevel != models.ThreatHigh {
		t.Errorf("ThreatLevel = %s, want high", v.ThreatLevel)
	}
	if !strings.Contains(v.Explanation, "Tor") {
		t.Errorf("Explanation = %q", v.Explanation)
	}
}

func TestScoreIsClamped(t *testing.T) {
	a := New(fakeGeo{info: GeoInfo{ASNOrg: "Bad Hosting Ltd"}})
	// Tor + malicious cannot overlap in the tables, so stack datacenter,
	// trailing .255 and the hosting ASN on a Tor address instead.
	v := a.Analyze("185.220.102.255")
	if v.RiskScore > 100 || v.RiskScore < 0 {
		t.Fatalf("RiskScore %d out of bounds", v.RiskScore)
	}
	if v.PrivacyScore != 100-v.RiskScore {
		t.Errorf("PrivacyScore = %d, want %d", v.PrivacyScore, 100-v.RiskScore)
	}
}

func TestDeterministic(t *testing.T) {
	a := New(nil)
	first := a.Analyze("89.248.165.12")
	for i := 0; i < 5; i++ {
		again := a.Analyze("89.248.165.12")
		if again.RiskScore != first.RiskScore || len(again.Threats) != len(first.Threats) {
			t.Fatal("Analyze is not deterministic")
		}
	}
}

func TestInvalidAddress(t *testing.T) {
	v := New(nil).Analyze("not-an-ip")
	if v.Explanation != "invalid address" || v.ThreatLevel != models.ThreatLow {
		t.Errorf("unexpected verdict %+v", v)
	}
}

func TestZeroValueAnalyzer(t *testing.T) {
	var a *Analyzer
	if v := a.Analyze("8.8.4.4"); v.ThreatLevel == "" {
		t.Error("nil analyzer should still produce a verdict")
	}
}

type fakeGeo struct {
	info GeoInfo
}

func (f fakeGeo) Lookup(ip net.IP) (GeoInfo, bool) {
	return f.info, true
}

func TestGeoEnrichment(t *testing.T) {
	a := New(fakeGeo{info: GeoInfo{
		City: "Frankfurt", Country: "Germany", CountryCode: "DE",
		Timezone: "Europe/Berlin", ASNOrg: "Example Cloud GmbH",
	}})

	v := a.Analyze("203.0.113.5")
	if v.Location != "Frankfurt, Germany" || v.CountryCode != "DE" || v.ISP != "Example Cloud GmbH" {
		t.Errorf("enrichment not applied: %+v", v)
	}
	if !v.Datacenter || v.RiskScore != DeltaHostingASN {
		t.Errorf("hosting ASN should add %d, got %d", DeltaHostingASN, v.RiskScore)
	}
}

func TestGeoEnrichmentDoesNotDoubleCountDatacenter(t *testing.T) {
	a := New(fakeGeo{info: GeoInfo{ASNOrg: "DigitalOcean, LLC"}})
	v := a.Analyze("159.89.1.2")
	if v.RiskScore != DeltaDatacenter {
		t.Errorf("RiskScore = %d, want %d", v.RiskScore, DeltaDatacenter)
	}
}

func TestIsHostingName(t *testing.T) {
	if !IsHostingName("Amazon.com, Inc.") {
		t.Error("amazon should match")
	}
	if IsHostingName("Deutsche Telekom AG") {
		t.Error("consumer ISP should not match")
	}
}
