package registry

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/varasto-io/rfid-tracking/internal/pkg/infrastructure/repositories/database"

	"github.com/matryer/is"
)

func TestGetReaderByMAC(t *testing.T) {
	is, ctx, r := testSetupRegistryRepository(t)

	err := r.AddReader(ctx, &Reader{
		MACAddress:   "AA:BB:CC:DD:EE:01",
		SerialNumber: "serial-1",
		ReaderModel:  "FX9600",
		Location:     "Main storage",
		Antennas:     []Antenna{{PortNumber: 1}, {PortNumber: 2}},
	})
	is.NoErr(err)

	reader, err := r.GetReaderByMAC(ctx, "aa:bb:cc:dd:ee:01")
	is.NoErr(err)
	is.Equal("FX9600", reader.ReaderModel)
	is.Equal(2, len(reader.Antennas))

	// lookup is case insensitive
	reader, err = r.GetReaderByMAC(ctx, "AA:BB:CC:DD:EE:01")
	is.NoErr(err)
	is.Equal("serial-1", reader.SerialNumber)

	_, err = r.GetReaderByMAC(ctx, "00:00:00:00:00:00")
	is.True(errors.Is(err, ErrReaderNotFound))
}

func TestGetAntenna(t *testing.T) {
	is, ctx, r := testSetupRegistryRepository(t)

	err := r.AddReader(ctx, &Reader{
		MACAddress:   "aa:bb:cc:dd:ee:02",
		SerialNumber: "serial-2",
		Antennas:     []Antenna{{PortNumber: 1}, {PortNumber: 3}},
	})
	is.NoErr(err)

	reader, err := r.GetReaderByMAC(ctx, "aa:bb:cc:dd:ee:02")
	is.NoErr(err)

	antenna, err := r.GetAntenna(ctx, reader.ID, 3)
	is.NoErr(err)
	is.Equal(3, antenna.PortNumber)

	_, err = r.GetAntenna(ctx, reader.ID, 2)
	is.True(errors.Is(err, ErrAntennaNotFound))
}

func TestGetReadersOrdersAntennasByPort(t *testing.T) {
	is, ctx, r := testSetupRegistryRepository(t)

	err := r.AddReader(ctx, &Reader{
		MACAddress:   "aa:bb:cc:dd:ee:03",
		SerialNumber: "serial-3",
		Antennas:     []Antenna{{PortNumber: 4}, {PortNumber: 1}, {PortNumber: 2}},
	})
	is.NoErr(err)

	readers, err := r.GetReaders(ctx)
	is.NoErr(err)
	is.Equal(1, len(readers))
	is.Equal(1, readers[0].Antennas[0].PortNumber)
	is.Equal(2, readers[0].Antennas[1].PortNumber)
	is.Equal(4, readers[0].Antennas[2].PortNumber)
}

func TestFindItem(t *testing.T) {
	is, ctx, r := testSetupRegistryRepository(t)

	err := r.AddItem(ctx, &TrackedItem{EPC: "E28011700000020F", Name: "Oscilloscope", Barcode: "BC-1001"})
	is.NoErr(err)
	err = r.AddItem(ctx, &TrackedItem{EPC: "E28011700000021A", Name: "Signal generator", Barcode: "BC-1002"})
	is.NoErr(err)

	// exact epc match, case insensitive
	item, err := r.FindItem(ctx, "e28011700000020f")
	is.NoErr(err)
	is.Equal("Oscilloscope", item.Name)

	// barcode match
	item, err = r.FindItem(ctx, "bc-1002")
	is.NoErr(err)
	is.Equal("Signal generator", item.Name)

	// substring match on name
	item, err = r.FindItem(ctx, "oscillo")
	is.NoErr(err)
	is.Equal("E28011700000020F", item.EPC)

	_, err = r.FindItem(ctx, "does-not-exist")
	is.True(errors.Is(err, ErrItemNotFound))
}

func TestGetTrackedEPCs(t *testing.T) {
	is, ctx, r := testSetupRegistryRepository(t)

	err := r.AddItem(ctx, &TrackedItem{EPC: "EPC-1", Name: "Pump"})
	is.NoErr(err)
	err = r.AddItem(ctx, &TrackedItem{EPC: "EPC-2", Name: "Valve"})
	is.NoErr(err)

	epcs, err := r.GetTrackedEPCs(ctx)
	is.NoErr(err)
	is.Equal(2, len(epcs))

	_, ok := epcs["EPC-1"]
	is.True(ok)
	_, ok = epcs["EPC-3"]
	is.True(!ok)
}

func TestSeedItems(t *testing.T) {
	is, ctx, r := testSetupRegistryRepository(t)

	err := SeedItems(ctx, r, bytes.NewBufferString(itemsCsvMock))
	is.NoErr(err)

	item, err := r.GetItemByEPC(ctx, "E28011700000020F")
	is.NoErr(err)
	is.Equal("Oscilloscope", item.Name)
	is.Equal("Jane Doe", item.ResponsiblePerson)
	is.True(item.CheckByDate != nil)

	items, err := r.GetItems(ctx)
	is.NoErr(err)
	is.Equal(2, len(items))
}

func TestSeedReaders(t *testing.T) {
	is, ctx, r := testSetupRegistryRepository(t)

	err := SeedReaders(ctx, r, bytes.NewBufferString(readersCsvMock))
	is.NoErr(err)

	reader, err := r.GetReaderByMAC(ctx, "84:24:8d:ee:50:01")
	is.NoErr(err)
	is.Equal("FX9600", reader.ReaderModel)
	is.Equal("Main storage", reader.Location)
	is.Equal(4, len(reader.Antennas))
	is.True(reader.InstallationDate != nil)

	reader, err = r.GetReaderByMAC(ctx, "84:24:8d:ee:50:02")
	is.NoErr(err)
	is.Equal(2, len(reader.Antennas))
	is.True(reader.InstallationDate == nil)
}

func TestSeedRejectsItemWithoutEPC(t *testing.T) {
	is, ctx, r := testSetupRegistryRepository(t)

	csv := "epc;barcode;name;project;responsible;organization;storageLocation;checkByDate\n;;Nameless;;;;;\n"

	err := SeedItems(ctx, r, bytes.NewBufferString(csv))
	is.True(err != nil)
}

func testSetupRegistryRepository(t *testing.T) (*is.I, context.Context, Repository) {
	is := is.New(t)
	ctx := context.Background()

	r, err := NewRepository(database.NewSQLiteConnector(ctx))
	is.NoErr(err)

	return is, ctx, r
}

const itemsCsvMock string = `epc;barcode;name;project;responsible;organization;storageLocation;checkByDate
E28011700000020F;BC-1001;Oscilloscope;lab-renewal;Jane Doe;Varasto Oy;Shelf A3;2026-03-01
E28011700000021A;BC-1002;Signal generator;lab-renewal;Jane Doe;Varasto Oy;Shelf A4;
`

const readersCsvMock string = `mac;serial;model;ip;location;installationDate;antennaPorts
84:24:8D:EE:50:01;FX9600-01;FX9600;10.0.0.21;Main storage;2025-01-15;1,2,3,4
84:24:8D:EE:50:02;FX7500-01;FX7500;10.0.0.22;Loading dock;;1,2
`
