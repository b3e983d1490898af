package detections

import (
	"time"

	"gorm.io/gorm"
)

// Detection is one immutable sighting of a tag. Rows are only ever
// appended, or deleted in bulk by the admin reset.
type Detection struct {
	gorm.Model `json:"-"`

	EPC        string    `gorm:"index" json:"epc"`
	ReaderID   uint      `gorm:"index" json:"-"`
	AntennaID  *uint     `json:"-"`
	RSSI       *float64  `json:"rssi,omitempty"`
	DetectedAt time.Time `gorm:"index" json:"detectedAt"`
	Project    string    `json:"project,omitempty"`
}
