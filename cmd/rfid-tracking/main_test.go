package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/varasto-io/rfid-tracking/internal/pkg/infrastructure/repositories/database"
	"github.com/varasto-io/rfid-tracking/internal/pkg/infrastructure/repositories/database/registry"

	"github.com/matryer/is"
)

func TestSeedLoadsReadersAndItems(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	repo, err := registry.NewRepository(database.NewSQLiteConnector(ctx))
	is.NoErr(err)

	flags := defaultFlags()
	flags[itemsFile] = writeTempFile(t, "items.csv", itemsCsv)
	flags[readersFile] = writeTempFile(t, "readers.csv", readersCsv)

	seed(ctx, slog.New(slog.NewTextHandler(io.Discard, nil)), flags, repo)

	reader, err := repo.GetReaderByMAC(ctx, "84:24:8d:ee:50:01")
	is.NoErr(err)
	is.Equal("FX9600", reader.ReaderModel)

	items, err := repo.GetItems(ctx)
	is.NoErr(err)
	is.Equal(1, len(items))
}

func TestEnvironmentOverridesDefaultPort(t *testing.T) {
	is := is.New(t)

	os.Setenv("SERVICE_PORT", "9090")
	defer os.Unsetenv("SERVICE_PORT")

	_, flags := parseExternalConfig(context.Background(), defaultFlags())
	is.Equal("9090", flags[servicePort])
}

func writeTempFile(t *testing.T, name, contents string) string {
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

const itemsCsv string = `epc;barcode;name;project;responsible;organization;storageLocation;checkByDate
E28011700000020F;BC-1001;Oscilloscope;lab-renewal;Jane Doe;Varasto Oy;Shelf A3;
`

const readersCsv string = `mac;serial;model;ip;location;installationDate;antennaPorts
84:24:8D:EE:50:01;FX9600-01;FX9600;10.0.0.21;Main storage;2025-01-15;1,2,3,4
`
