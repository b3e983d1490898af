package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/varasto-io/rfid-tracking/internal/pkg/infrastructure/repositories/database"
	"gorm.io/gorm"
)

var ErrReaderNotFound = fmt.Errorf("reader not found")
var ErrAntennaNotFound = fmt.Errorf("antenna not found")
var ErrItemNotFound = fmt.Errorf("tracked item not found")
var ErrRepositoryError = fmt.Errorf("could not fetch data from repository")

type Repository interface {
	GetReaderByMAC(ctx context.Context, mac string) (Reader, error)
	GetAntenna(ctx context.Context, readerID uint, portNumber int) (Antenna, error)
	GetReaders(ctx context.Context) ([]Reader, error)

	GetItemByEPC(ctx context.Context, epc string) (TrackedItem, error)
	FindItem(ctx context.Context, query string) (TrackedItem, error)
	GetItems(ctx context.Context) ([]TrackedItem, error)
	GetTrackedEPCs(ctx context.Context) (map[string]struct{}, error)

	AddReader(ctx context.Context, reader *Reader) error
	AddItem(ctx context.Context, item *TrackedItem) error
}

func NewRepository(connect database.ConnectorFunc) (Repository, error) {
	impl, err := connect()
	if err != nil {
		return nil, err
	}

	err = impl.AutoMigrate(&Reader{}, &Antenna{}, &TrackedItem{})
	if err != nil {
		return nil, err
	}

	return &registryRepository{db: impl}, nil
}

type registryRepository struct {
	db *gorm.DB
}

func (r *registryRepository) GetReaderByMAC(ctx context.Context, mac string) (Reader, error) {
	var reader Reader

	result := r.db.Preload("Antennas").
		Where("mac_address = ?", strings.ToLower(mac)).
		First(&reader)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Reader{}, ErrReaderNotFound
		}

		logging.GetFromContext(ctx).Error("gorm error", "err", result.Error.Error())

		return Reader{}, ErrRepositoryError
	}

	return reader, nil
}

func (r *registryRepository) GetAntenna(ctx context.Context, readerID uint, portNumber int) (Antenna, error) {
	var antenna Antenna

	result := r.db.
		Where(&Antenna{ReaderID: readerID, PortNumber: portNumber}).
		First(&antenna)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Antenna{}, ErrAntennaNotFound
		}

		logging.GetFromContext(ctx).Error("gorm error", "err", result.Error.Error())

		return Antenna{}, ErrRepositoryError
	}

	return antenna, nil
}

func (r *registryRepository) GetReaders(ctx context.Context) ([]Reader, error) {
	var readers []Reader

	result := r.db.
		Preload("Antennas", func(db *gorm.DB) *gorm.DB {
			return db.Order("antennas.port_number ASC")
		}).
		Order("readers.id ASC").
		Find(&readers)

	return readers, result.Error
}

func (r *registryRepository) GetItemByEPC(ctx context.Context, epc string) (TrackedItem, error) {
	var item TrackedItem

	result := r.db.Where("epc = ?", epc).First(&item)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return TrackedItem{}, ErrItemNotFound
		}
		return TrackedItem{}, ErrRepositoryError
	}

	return item, nil
}

// FindItem resolves a free text query to a single item. Exact EPC and
// barcode matches take precedence over a substring match on the name.
func (r *registryRepository) FindItem(ctx context.Context, query string) (TrackedItem, error) {
	var item TrackedItem

	result := r.db.Where("LOWER(epc) = ?", strings.ToLower(query)).First(&item)
	if result.Error == nil {
		return item, nil
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return TrackedItem{}, ErrRepositoryError
	}

	result = r.db.Where("barcode <> '' AND LOWER(barcode) = ?", strings.ToLower(query)).First(&item)
	if result.Error == nil {
		return item, nil
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return TrackedItem{}, ErrRepositoryError
	}

	result = r.db.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(query)+"%").
		Order("id ASC").
		First(&item)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return TrackedItem{}, ErrItemNotFound
		}
		return TrackedItem{}, ErrRepositoryError
	}

	return item, nil
}

func (r *registryRepository) GetItems(ctx context.Context) ([]TrackedItem, error) {
	var items []TrackedItem

	result := r.db.Where("epc <> ''").Find(&items)

	return items, result.Error
}

func (r *registryRepository) GetTrackedEPCs(ctx context.Context) (map[string]struct{}, error) {
	var epcs []string

	result := r.db.Model(&TrackedItem{}).
		Where("epc <> ''").
		Pluck("epc", &epcs)
	if result.Error != nil {
		return nil, result.Error
	}

	set := make(map[string]struct{}, len(epcs))
	for _, epc := range epcs {
		set[epc] = struct{}{}
	}

	return set, nil
}

func (r *registryRepository) AddReader(ctx context.Context, reader *Reader) error {
	reader.MACAddress = strings.ToLower(reader.MACAddress)
	return r.db.Save(reader).Error
}

func (r *registryRepository) AddItem(ctx context.Context, item *TrackedItem) error {
	return r.db.Save(item).Error
}
