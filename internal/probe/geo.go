package probe

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hakim/netdiag/internal/models"
)

// ── ipapi.co ──────────────────────────────────────────────────────────────────

type ipapiCoResponse struct {
	IP          string  `json:"ip"`
	City        string  `json:"city"`
	Region      string  `json:"region"`
	CountryName string  `json:"country_name"`
	CountryCode string  `json:"country_code"`
	Timezone    string  `json:"timezone"`
	Org         string  `json:"org"`
	ASN         string  `json:"asn"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Error       bool    `json:"error"`
	Reason      string  `json:"reason"`
}

func ipapiCoAdapter() Adapter {
	return Adapter{
		Provider: "ipapi",
		Kind:     models.KindGeo,
		URL: func(base, subject, _ string) (string, error) {
			return joinPath(base, subject, "json") + "/", nil
		},
		Decode: func(body []byte, _ string, out *models.SourceResult) error {
			var raw ipapiCoResponse
			if err := json.Unmarshal(body, &raw); err != nil {
				return err
			}
			if raw.Error {
				return fmt.Errorf("ipapi.co: %s", raw.Reason)
			}
			if raw.IP == "" {
				return errors.New("missing ip field")
			}
			out.IP = raw.IP
			out.City = raw.City
			out.Region = raw.Region
			out.Country = raw.CountryName
			out.CountryCode = raw.CountryCode
			out.Timezone = raw.Timezone
			out.Org = raw.Org
			out.ISP = raw.Org
			out.ASN = raw.ASN
			out.Latitude = raw.Latitude
			out.Longitude = raw.Longitude
			return nil
		},
	}
}

// ── ip-api.com ────────────────────────────────────────────────────────────────

const ipAPIFields = "status,message,country,countryCode,regionName,city,lat,lon,timezone,isp,org,as,proxy,hosting,query"

type ipAPIComResponse struct {
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	Query       string  `json:"query"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	RegionName  string  `json:"regionName"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Timezone    string  `json:"timezone"`
	ISP         string  `json:"isp"`
	Org         string  `json:"org"`
	AS          string  `json:"as"`
	Proxy       bool    `json:"proxy"`
	Hosting     bool    `json:"hosting"`
}

// ip-api.com reports a combined proxy/VPN/Tor flag plus a hosting flag, so it
// serves as a proxy-detection source as well as a geolocation one.
func ipAPIComAdapter() Adapter {
	return Adapter{
		Provider: "ip-api",
		Kind:     models.KindProxy,
		URL: func(base, subject, _ string) (string, error) {
			return joinPath(base, subject) + "?fields=" + url.QueryEscape(ipAPIFields), nil
		},
		Decode: func(body []byte, _ string, out *models.SourceResult) error {
			var raw ipAPIComResponse
			if err := json.Unmarshal(body, &raw); err != nil {
				return err
			}
			if raw.Status != "success" {
				return fmt.Errorf("ip-api: %s", raw.Message)
			}
			out.IP = raw.Query
			out.Country = raw.Country
			out.CountryCode = raw.CountryCode
			out.Region = raw.RegionName
			out.City = raw.City
			out.Latitude = raw.Lat
			out.Longitude = raw.Lon
			out.Timezone = raw.Timezone
			out.ISP = raw.ISP
			out.Org = raw.Org
			out.ASN = raw.AS
			out.Proxy = raw.Proxy
			out.Hosting = raw.Hosting
			if raw.Proxy {
				out.ProxyType = "proxy"
			}
			return nil
		},
	}
}

// ── ipinfo.io ─────────────────────────────────────────────────────────────────

type ipinfoResponse struct {
	IP       string `json:"ip"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Loc      string `json:"loc"`
	Org      string `json:"org"`
	Timezone string `json:"timezone"`
	Bogon    bool   `json:"bogon"`
}

func ipinfoAdapter() Adapter {
	return Adapter{
		Provider: "ipinfo",
		Kind:     models.KindGeo,
		URL: func(base, subject, key string) (string, error) {
			u := joinPath(base, subject, "json")
			if key != "" {
				u += "?token=" + url.QueryEscape(key)
			}
			return u, nil
		},
		Decode: func(body []byte, _ string, out *models.SourceResult) error {
			var raw ipinfoResponse
			if err := json.Unmarshal(body, &raw); err != nil {
				return err
			}
			if raw.IP == "" {
				return errors.New("missing ip field")
			}
			out.IP = raw.IP
			out.City = raw.City
			out.Region = raw.Region
			out.CountryCode = raw.Country
			out.Country = raw.Country
			out.Timezone = raw.Timezone
			out.Org = raw.Org
			// org is "AS15169 Google LLC"
			if asn, name, ok := strings.Cut(raw.Org, " "); ok && strings.HasPrefix(asn, "AS") {
				out.ASN = asn
				out.ISP = name
			} else {
				out.ISP = raw.Org
			}
			if lat, lon, ok := strings.Cut(raw.Loc, ","); ok {
				out.Latitude, _ = strconv.ParseFloat(lat, 64)
				out.Longitude, _ = strconv.ParseFloat(lon, 64)
			}
			return nil
		},
	}
}

// ── ipwho.is ──────────────────────────────────────────────────────────────────

type ipwhoisResponse struct {
	Success     bool    `json:"success"`
	Message     string  `json:"message"`
	IP          string  `json:"ip"`
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code"`
	Region      string  `json:"region"`
	City        string  `json:"city"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Connection  struct {
		ASN int    `json:"asn"`
		Org string `json:"org"`
		ISP string `json:"isp"`
	} `json:"connection"`
	Timezone struct {
		ID string `json:"id"`
	} `json:"timezone"`
	Security *struct {
		Proxy   bool `json:"proxy"`
		VPN     bool `json:"vpn"`
		Tor     bool `json:"tor"`
		Hosting bool `json:"hosting"`
	} `json:"security"`
}

func ipwhoisAdapter() Adapter {
	return Adapter{
		Provider: "ipwhois",
		Kind:     models.KindGeo,
		URL: func(base, subject, _ string) (string, error) {
			return joinPath(base, subject), nil
		},
		Decode: func(body []byte, _ string, out *models.SourceResult) error {
			var raw ipwhoisResponse
			if err := json.Unmarshal(body, &raw); err != nil {
				return err
			}
			if !raw.Success {
				return fmt.Errorf("ipwho.is: %s", raw.Message)
			}
			out.IP = raw.IP
			out.Country = raw.Country
			out.CountryCode = raw.CountryCode
			out.Region = raw.Region
			out.City = raw.City
			out.Latitude = raw.Latitude
			out.Longitude = raw.Longitude
			out.ISP = raw.Connection.ISP
			out.Org = raw.Connection.Org
			if raw.Connection.ASN > 0 {
				out.ASN = fmt.Sprintf("AS%d", raw.Connection.ASN)
			}
			out.Timezone = raw.Timezone.ID
			if raw.Security != nil {
				out.Proxy = raw.Security.Proxy
				out.VPN = raw.Security.VPN
				out.Tor = raw.Security.Tor
				out.Hosting = raw.Security.Hosting
			}
			return nil
		},
	}
}

// ── ip2location.io ────────────────────────────────────────────────────────────

type ip2locationResponse struct {
	IP          string  `json:"ip"`
	CountryCode string  `json:"country_code"`
	CountryName string  `json:"country_name"`
	RegionName  string  `json:"region_name"`
	CityName    string  `json:"city_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	TimeZone    string  `json:"time_zone"`
	ASN         string  `json:"asn"`
	AS          string  `json:"as"`
	IsProxy     bool    `json:"is_proxy"`
	Proxy       *struct {
		IsVPN             bool   `json:"is_vpn"`
		IsTor             bool   `json:"is_tor"`
		IsDataCenter      bool   `json:"is_data_center"`
		IsPublicProxy     bool   `json:"is_public_proxy"`
		IsResidential     bool   `json:"is_residential_proxy"`
		IsWebProxy        bool   `json:"is_web_proxy"`
		IsConsumerPrivacy bool   `json:"is_consumer_privacy_network"`
		ProxyType         string `json:"proxy_type"`
		Provider          string `json:"provider"`
	} `json:"proxy"`
	Error *struct {
		Code    int    `json:"error_code"`
		Message string `json:"error_message"`
	} `json:"error"`
}

// The keyless tier only returns is_proxy; the proxy block needs a plan.
func ip2locationAdapter() Adapter {
	return Adapter{
		Provider: "ip2location",
		Kind:     models.KindProxy,
		URL: func(base, subject, key string) (string, error) {
			q := url.Values{}
			if subject != "" {
				q.Set("ip", subject)
			}
			if key != "" {
				q.Set("key", key)
			}
			return base + "/?" + q.Encode(), nil
		},
		Decode: func(body []byte, _ string, out *models.SourceResult) error {
			var raw ip2locationResponse
			if err := json.Unmarshal(body, &raw); err != nil {
				return err
			}
			if raw.Error != nil {
				return fmt.Errorf("ip2location: %s", raw.Error.Message)
			}
			if raw.IP == "" {
				return errors.New("missing ip field")
			}
			out.IP = raw.IP
			out.CountryCode = raw.CountryCode
			out.Country = raw.CountryName
			out.Region = raw.RegionName
			out.City = raw.CityName
			out.Latitude = raw.Latitude
			out.Longitude = raw.Longitude
			out.Timezone = raw.TimeZone
			out.ISP = raw.AS
			if raw.ASN != "" {
				out.ASN = "AS" + raw.ASN
			}
			out.Proxy = raw.IsProxy
			if p := raw.Proxy; p != nil {
				out.VPN = p.IsVPN || p.IsConsumerPrivacy
				out.Tor = p.IsTor
				out.Hosting = p.IsDataCenter
				out.Proxy = out.Proxy || p.IsPublicProxy || p.IsWebProxy || p.IsResidential
				out.ProxyType = p.ProxyType
				if out.VPN {
					out.VPNProvider = p.Provider
				}
			}
			return nil
		},
	}
}
