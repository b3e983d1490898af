package types

import (
	"encoding/json"
	"time"
)

type DetectionRecorded struct {
	BatchID     string    `json:"batchID,omitempty"`
	EPC         string    `json:"epc"`
	Reader      string    `json:"reader"`
	AntennaPort *int      `json:"antennaPort,omitempty"`
	RSSI        *float64  `json:"rssi,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func (d *DetectionRecorded) ContentType() string {
	return "application/json"
}
func (d *DetectionRecorded) TopicName() string {
	return "rfid.detectionRecorded"
}
func (d *DetectionRecorded) Body() []byte {
	b, _ := json.Marshal(d)
	return b
}

type DetectionsCleared struct {
	Timestamp time.Time `json:"timestamp"`
}

func (d *DetectionsCleared) ContentType() string {
	return "application/json"
}
func (d *DetectionsCleared) TopicName() string {
	return "rfid.detectionsCleared"
}
func (d *DetectionsCleared) Body() []byte {
	b, _ := json.Marshal(d)
	return b
}
