// Package geodb reads offline MaxMind GeoLite2/GeoIP2 databases.
package geodb

import (
	"errors"
	"fmt"
	"net"

	"github.com/hakim/netdiag/internal/heuristic"
	"github.com/oschwald/geoip2-golang"
)

// DB wraps optional City and ASN readers. Either may be nil.
type DB struct {
	city *geoip2.Reader
	asn  *geoip2.Reader
}

// Open opens the configured databases. Empty paths are skipped; when both are
// empty Open returns (nil, nil) so callers can pass the result straight to the
// heuristic analyzer.
func Open(cityPath, asnPath string) (*DB, error) {
	if cityPath == "" && asnPath == "" {
		return nil, nil
	}

	db := &DB{}
	if cityPath != "" {
		r, err := geoip2.Open(cityPath)
		if err != nil {
			return nil, fmt.Errorf("opening city database %s: %w", cityPath, err)
		}
		db.city = r
	}
	if asnPath != "" {
		r, err := geoip2.Open(asnPath)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("opening asn database %s: %w", asnPath, err)
		}
		db.asn = r
	}
	return db, nil
}

// Close releases both readers
func (d *DB) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	if d.city != nil {
		errs = append(errs, d.city.Close())
	}
	if d.asn != nil {
		errs = append(errs, d.asn.Close())
	}
	return errors.Join(errs...)
}

// Lookup implements heuristic.GeoLookup
func (d *DB) Lookup(ip net.IP) (heuristic.GeoInfo, bool) {
	var info heuristic.GeoInfo
	if d == nil {
		return info, false
	}

	found := false
	if d.city != nil {
		if rec, err := d.city.City(ip); err == nil && rec.Country.IsoCode != "" {
			found = true
			info.Country = rec.Country.Names["en"]
			info.CountryCode = rec.Country.IsoCode
			info.City = rec.City.Names["en"]
			info.Timezone = rec.Location.TimeZone
			if len(rec.Subdivisions) > 0 {
				info.Region = rec.Subdivisions[0].Names["en"]
			}
		}
	}
	if d.asn != nil {
		if rec, err := d.asn.ASN(ip); err == nil && rec.AutonomousSystemNumber != 0 {
			found = true
			info.ASN = fmt.Sprintf("AS%d", rec.AutonomousSystemNumber)
			info.ASNOrg = rec.AutonomousSystemOrganization
		}
	}
	return info, found
}
