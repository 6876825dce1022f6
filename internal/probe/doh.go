package probe

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/hakim/netdiag/internal/models"
)

// dohResponse is the JSON wire format shared by Google, Cloudflare, Quad9,
// AliDNS and DNSPod resolvers
type dohResponse struct {
	Status int `json:"Status"`
	Answer []struct {
		Name string `json:"name"`
		Type int    `json:"type"`
		TTL  int    `json:"TTL"`
		Data string `json:"data"`
	} `json:"Answer"`
}

// dohAdapter queries name=subject&type=A on a JSON DNS-over-HTTPS endpoint
// and reports every address record in the answer as a server.
func dohAdapter(provider string) Adapter {
	return Adapter{
		Provider: provider,
		Kind:     models.KindDoH,
		URL: func(base, subject, _ string) (string, error) {
			if subject == "" {
				return "", errors.New("query name required")
			}
			q := url.Values{}
			q.Set("name", subject)
			q.Set("type", "A")
			return base + "?" + q.Encode(), nil
		},
		Header: func(h http.Header, _ string) {
			h.Set("Accept", "application/dns-json")
		},
		Decode: decodeDoH,
	}
}

func decodeDoH(body []byte, _ string, out *models.SourceResult) error {
	var raw dohResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return err
	}
	if raw.Status != 0 {
		return fmt.Errorf("resolver returned rcode %d", raw.Status)
	}

	seen := make(map[string]bool)
	for _, a := range raw.Answer {
		if net.ParseIP(a.Data) == nil || seen[a.Data] {
			continue
		}
		seen[a.Data] = true
		out.Servers = append(out.Servers, a.Data)
	}
	if len(out.Servers) == 0 {
		return errors.New("no address records in answer")
	}
	return nil
}
