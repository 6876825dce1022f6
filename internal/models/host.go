package models

import "time"

// PingResult summarises a sequence of timed HTTP HEAD probes against a host
type PingResult struct {
	Host           string    `json:"host"`
	Packets        int       `json:"packets"`
	Received       int       `json:"received"`
	Lost           int       `json:"lost"`
	LossPercentage float64   `json:"loss_percentage"`
	MinTime        float64   `json:"min_time_ms"`
	MaxTime        float64   `json:"max_time_ms"`
	AvgTime        float64   `json:"avg_time_ms"`
	Times          []float64 `json:"times_ms"`
	Timestamp      time.Time `json:"timestamp"`
}

// PortResult represents the approximated state of a single host:port
type PortResult struct {
	Host           string     `json:"host"`
	Port           int        `json:"port"`
	Status         PortStatus `json:"status"`
	ResponseTimeMs float64    `json:"response_time_ms,omitempty"`
	Error          string     `json:"error,omitempty"`
	ServiceName    string     `json:"service_name"`
	Timestamp      time.Time  `json:"timestamp"`
}

// IPInfo is the caller's public address with its geolocation
type IPInfo struct {
	IP          string `json:"ip"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
	Region      string `json:"region"`
	City        string `json:"city"`
	ISP         string `json:"isp"`
	Timezone    string `json:"timezone"`
	Source      string `json:"source"`
}
