package types

import (
	"fmt"
	"time"
)

// ReadBatch is the payload a reader posts when it has seen one or more tags.
type ReadBatch struct {
	MACAddress string    `json:"mac_address"`
	TagReads   []TagRead `json:"tag_reads"`
}

type TagRead struct {
	EPC         string  `json:"epc"`
	AntennaPort int     `json:"antennaPort"`
	PeakRSSI    float64 `json:"peakRssi"`
}

// IngestResult is the acknowledgement returned to the reader.
type IngestResult struct {
	BatchID     string   `json:"-"`
	SavedEPCs   []string `json:"saved_epcs"`
	IgnoredEPCs []string `json:"ignored_epcs"`
}

const (
	StatusActive  = "active"
	StatusIdle    = "idle"
	StatusMissing = "missing"
)

type DashboardTag struct {
	ID         string       `json:"id"`
	EPC        string       `json:"epc"`
	ObjectName string       `json:"objectName"`
	Reader     string       `json:"reader"`
	Antenna    *int         `json:"antenna"`
	RSSI       *float64     `json:"rssi"`
	MAC        string       `json:"mac"`
	LastSeen   string       `json:"lastSeen"`
	Status     string       `json:"status"`
	Activity   []TrailEntry `json:"activityLog"`
}

type TrailEntry struct {
	Timestamp string   `json:"timestamp"`
	Reader    string   `json:"reader"`
	Antenna   *int     `json:"antenna"`
	RSSI      *float64 `json:"rssi"`
}

type ItemDetails struct {
	EPC               string          `json:"epc"`
	ObjectName        string          `json:"objectName"`
	ResponsiblePerson string          `json:"responsiblePerson"`
	CurrentLocation   string          `json:"currentLocation"`
	Status            string          `json:"status"`
	Timeline          []TimelineEntry `json:"timeline"`
}

type TimelineEntry struct {
	Timestamp string `json:"timestamp"`
	Location  string `json:"location"`
	Reader    string `json:"reader"`
	Antenna   *int   `json:"antenna"`
}

type ReaderStatus struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Model             string          `json:"model"`
	Location          string          `json:"location"`
	Status            string          `json:"status"`
	IPAddress         string          `json:"ipAddress"`
	TotalTagsDetected int64           `json:"totalTagsDetected"`
	Uptime            string          `json:"uptime"`
	Antennas          []AntennaStatus `json:"antennas"`
}

type AntennaStatus struct {
	Number       int    `json:"number"`
	Status       string `json:"status"`
	TagsDetected int64  `json:"tagsDetected"`
	Power        int    `json:"power"`
}

const (
	EventAdded    = "added"
	EventMoved    = "moved"
	EventDetected = "detected"
)

type ActivityEntry struct {
	ID         uint     `json:"id"`
	Timestamp  string   `json:"timestamp"`
	EPC        string   `json:"epc"`
	ObjectName string   `json:"objectName"`
	Reader     string   `json:"reader"`
	Antenna    *int     `json:"antenna"`
	RSSI       *float64 `json:"rssi"`
	Event      string   `json:"event"`
}

// DetectionSummary is one recent detection in the live summary view.
type DetectionSummary struct {
	EPC       string    `json:"epc"`
	Reader    string    `json:"reader"`
	Antenna   *int      `json:"antenna"`
	RSSI      *float64  `json:"rssi"`
	MAC       string    `json:"mac"`
	LocalTime time.Time `json:"localTimestamp"`
}

func (s DetectionSummary) String() string {
	antenna := "-"
	if s.Antenna != nil {
		antenna = fmt.Sprintf("%d", *s.Antenna)
	}
	rssi := "-"
	if s.RSSI != nil {
		rssi = fmt.Sprintf("%.2f", *s.RSSI)
	}
	return fmt.Sprintf(
		"Received EPC: %s | Reader: %s | Antenna: %s | RSSI: %s | MAC: %s | Local Time (Finland): %s",
		s.EPC, s.Reader, antenna, rssi, s.MAC, s.LocalTime.Format("2006-01-02 15:04:05"),
	)
}
