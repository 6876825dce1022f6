package heuristic

import (
	"strings"
	"testing"
)

func TestLeakCheckWithTrustedList(t *testing.T) {
	leaking, suspect := LeakCheck(
		[]string{"10.8.0.1", "1.1.1.1", "8.8.8.8"},
		[]string{"1.1.1.0/24"},
	)
	if !leaking {
		t.Fatal("8.8.8.8 is outside the trusted set")
	}
	if strings.Join(suspect, ",") != "8.8.8.8" {
		t.Errorf("suspect = %v", suspect)
	}
}

func TestLeakCheckAllTrusted(t *testing.T) {
	leaking, suspect := LeakCheck([]string{"9.9.9.9"}, []string{"9.9.9.9"})
	if leaking || len(suspect) != 0 {
		t.Errorf("leaking=%v suspect=%v", leaking, suspect)
	}
}

func TestLeakCheckWithoutTrustedList(t *testing.T) {
	if leaking, _ := LeakCheck([]string{"172.253.1.10", "172.253.1.11"}, nil); leaking {
		t.Error("resolvers in one /24 should not be a leak")
	}
	leaking, suspect := LeakCheck([]string{"172.253.1.10", "74.125.18.5"}, nil)
	if !leaking || len(suspect) != 2 {
		t.Errorf("two networks should leak: leaking=%v suspect=%v", leaking, suspect)
	}
}

func TestLeakCheckIgnoresPrivate(t *testing.T) {
	if leaking, _ := LeakCheck([]string{"127.0.0.53", "192.168.1.1"}, []string{"9.9.9.9"}); leaking {
		t.Error("local resolvers must not count as leaks")
	}
}

func TestParseResolvConf(t *testing.T) {
	conf := `# generated
nameserver 127.0.0.53
; comment
nameserver 2606:4700:4700::1111
nameserver bogus
options edns0
search example.com
`
	got := ParseResolvConf(strings.NewReader(conf))
	if strings.Join(got, ",") != "127.0.0.53,2606:4700:4700::1111" {
		t.Errorf("ParseResolvConf = %v", got)
	}
}

func TestAnalyzeResolversExplanations(t *testing.T) {
	if v := AnalyzeResolvers(nil, nil); !strings.Contains(v.Explanation, "unknown") {
		t.Errorf("empty: %q", v.Explanation)
	}
	if v := AnalyzeResolvers([]string{"127.0.0.53"}, nil); v.Leaking || !strings.Contains(v.Explanation, "stub") {
		t.Errorf("stub: %+v", v)
	}
	if v := AnalyzeResolvers([]string{"8.8.8.8", "1.1.1.1"}, nil); !v.Leaking {
		t.Errorf("split resolvers should leak: %+v", v)
	}
}
