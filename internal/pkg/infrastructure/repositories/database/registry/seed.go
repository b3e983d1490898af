package registry

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"log/slog"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

// SeedItems loads the tracked item catalog from a semicolon separated
// csv export of the inventory system.
//
// epc;barcode;name;project;responsible;organization;storageLocation;checkByDate
func SeedItems(ctx context.Context, r Repository, items io.Reader) error {
	log := logging.GetFromContext(ctx)

	reader := csv.NewReader(items)
	reader.Comma = ';'

	rows, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read csv data: %w", err)
	}

	records, err := getItemRecordsFromRows(rows)
	if err != nil {
		return err
	}

	log.Info("loaded tracked items from file", slog.Int("rows", len(rows)), slog.Int("records", len(records)))

	for _, record := range records {
		item := record.trackedItem()
		err := r.AddItem(ctx, &item)
		if err != nil {
			return err
		}
	}

	return nil
}

// SeedReaders loads readers and their antenna ports.
//
// mac;serial;model;ip;location;installationDate;antennaPorts
func SeedReaders(ctx context.Context, r Repository, readers io.Reader) error {
	log := logging.GetFromContext(ctx)

	reader := csv.NewReader(readers)
	reader.Comma = ';'

	rows, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read csv data: %w", err)
	}

	count := 0

	for i, row := range rows {
		if i == 0 {
			continue
		}

		rec, err := newReaderRecord(row)
		if err != nil {
			return fmt.Errorf("invalid reader on line %d: %w", i+1, err)
		}

		rdr := rec.reader()
		err = r.AddReader(ctx, &rdr)
		if err != nil {
			return err
		}

		count++
	}

	log.Info("loaded readers from file", slog.Int("count", count))

	return nil
}

type itemRecord struct {
	epc               string
	barcode           string
	name              string
	projectName       string
	responsiblePerson string
	organization      string
	storageLocation   string
	checkByDate       *time.Time
}

func (ir itemRecord) trackedItem() TrackedItem {
	return TrackedItem{
		EPC:               ir.epc,
		Barcode:           ir.barcode,
		Name:              ir.name,
		ProjectName:       ir.projectName,
		ResponsiblePerson: ir.responsiblePerson,
		Organization:      ir.organization,
		StorageLocation:   ir.storageLocation,
		CheckByDate:       ir.checkByDate,
	}
}

func newItemRecord(row []string) (itemRecord, error) {
	if len(row) < 7 {
		return itemRecord{}, fmt.Errorf("expected at least 7 columns, got %d", len(row))
	}

	ir := itemRecord{
		epc:               strings.TrimSpace(row[0]),
		barcode:           strings.TrimSpace(row[1]),
		name:              strings.TrimSpace(row[2]),
		projectName:       strings.TrimSpace(row[3]),
		responsiblePerson: strings.TrimSpace(row[4]),
		organization:      strings.TrimSpace(row[5]),
		storageLocation:   strings.TrimSpace(row[6]),
	}

	if ir.epc == "" {
		return itemRecord{}, fmt.Errorf("item %s has no epc", ir.name)
	}

	if len(row) > 7 && strings.TrimSpace(row[7]) != "" {
		d, err := time.Parse("2006-01-02", strings.TrimSpace(row[7]))
		if err != nil {
			return itemRecord{}, fmt.Errorf("invalid check-by date for %s: %w", ir.epc, err)
		}
		ir.checkByDate = &d
	}

	return ir, nil
}

func getItemRecordsFromRows(rows [][]string) ([]itemRecord, error) {
	records := []itemRecord{}

	for i, row := range rows {
		if i == 0 {
			continue
		}
		rec, err := newItemRecord(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

type readerRecord struct {
	mac              string
	serial           string
	model            string
	ip               string
	location         string
	installationDate *time.Time
	antennaPorts     []int
}

func (rr readerRecord) reader() Reader {
	antennas := make([]Antenna, 0, len(rr.antennaPorts))
	for _, port := range rr.antennaPorts {
		antennas = append(antennas, Antenna{PortNumber: port})
	}

	return Reader{
		MACAddress:       rr.mac,
		SerialNumber:     rr.serial,
		ReaderModel:      rr.model,
		IPAddress:        rr.ip,
		Location:         rr.location,
		InstallationDate: rr.installationDate,
		Antennas:         antennas,
	}
}

func newReaderRecord(row []string) (readerRecord, error) {
	if len(row) < 7 {
		return readerRecord{}, fmt.Errorf("expected 7 columns, got %d", len(row))
	}

	rr := readerRecord{
		mac:      strings.ToLower(strings.TrimSpace(row[0])),
		serial:   strings.TrimSpace(row[1]),
		model:    strings.TrimSpace(row[2]),
		ip:       strings.TrimSpace(row[3]),
		location: strings.TrimSpace(row[4]),
	}

	if rr.mac == "" {
		return readerRecord{}, fmt.Errorf("reader %s has no mac address", rr.serial)
	}

	if d := strings.TrimSpace(row[5]); d != "" {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			return readerRecord{}, fmt.Errorf("invalid installation date for %s: %w", rr.mac, err)
		}
		rr.installationDate = &t
	}

	for _, p := range strings.Split(row[6], ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		var port int
		_, err := fmt.Sscanf(p, "%d", &port)
		if err != nil {
			return readerRecord{}, fmt.Errorf("invalid antenna port %q for %s", p, rr.mac)
		}
		rr.antennaPorts = append(rr.antennaPorts, port)
	}

	return rr, nil
}
