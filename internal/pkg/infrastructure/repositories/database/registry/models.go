package registry

import (
	"time"

	"gorm.io/gorm"
)

// Reader is a physical RFID interrogator. Reference data, provisioned
// out of band and never mutated by the tracking service.
type Reader struct {
	gorm.Model `json:"-"`

	ReaderModel      string     `json:"model"`
	SerialNumber     string     `gorm:"uniqueIndex" json:"serialNumber"`
	MACAddress       string     `gorm:"uniqueIndex" json:"macAddress"`
	IPAddress        string     `json:"ipAddress"`
	InstallationDate *time.Time `json:"installationDate,omitempty"`
	Location         string     `json:"location"`
	Notes            string     `json:"notes,omitempty"`

	Antennas []Antenna `json:"antennas"`
}

// Antenna is a numbered port on a reader. (reader, port) is unique.
type Antenna struct {
	gorm.Model `json:"-"`

	ReaderID    uint   `gorm:"uniqueIndex:idx_reader_port" json:"-"`
	PortNumber  int    `gorm:"uniqueIndex:idx_reader_port" json:"portNumber"`
	Orientation string `json:"orientation,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// TrackedItem is a catalog entry for an EPC the system records
// detections for. Reads for EPCs without a TrackedItem are dropped.
type TrackedItem struct {
	gorm.Model `json:"-"`

	EPC               string     `gorm:"uniqueIndex" json:"epc"`
	Barcode           string     `json:"barcode,omitempty"`
	Name              string     `json:"name"`
	ProjectName       string     `json:"projectName,omitempty"`
	ResponsiblePerson string     `json:"responsiblePerson,omitempty"`
	Organization      string     `json:"organization,omitempty"`
	StorageLocation   string     `json:"storageLocation,omitempty"`
	CheckByDate       *time.Time `json:"checkByDate,omitempty"`
}
