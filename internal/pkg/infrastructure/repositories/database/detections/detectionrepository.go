package detections

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/varasto-io/rfid-tracking/internal/pkg/infrastructure/repositories/database"
	"gorm.io/gorm"
)

var ErrDuplicateDetection = fmt.Errorf("detection already recorded within dedup window")
var ErrDetectionNotFound = fmt.Errorf("detection not found")
var ErrRepositoryError = fmt.Errorf("could not fetch data from repository")

type Repository interface {
	Add(ctx context.Context, detection *Detection) error

	GetByEPC(ctx context.Context, epc string, limit int) ([]Detection, error)
	GetSince(ctx context.Context, cutoff time.Time) ([]Detection, error)

	GetLatestByReader(ctx context.Context, readerID uint) (Detection, error)
	CountByReaderSince(ctx context.Context, readerID uint, cutoff time.Time) (int64, error)
	CountByAntennaSince(ctx context.Context, readerID, antennaID uint, cutoff time.Time) (int64, error)

	GetAllChronological(ctx context.Context) ([]Detection, error)

	DeleteAll(ctx context.Context) error
}

func NewRepository(connect database.ConnectorFunc, dedupWindow time.Duration) (Repository, error) {
	impl, err := connect()
	if err != nil {
		return nil, err
	}

	err = impl.AutoMigrate(&Detection{})
	if err != nil {
		return nil, err
	}

	return &detectionRepository{db: impl, dedupWindow: dedupWindow}, nil
}

type detectionRepository struct {
	db          *gorm.DB
	dedupWindow time.Duration
}

// Add persists a detection unless one for the same EPC already exists
// within the dedup window before detection.DetectedAt. The existence
// check and the insert run inside one transaction, serialized per EPC,
// so concurrent submissions for the same tag cannot both pass the check.
func (d *detectionRepository) Add(ctx context.Context, detection *Detection) error {
	err := d.db.Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			// scope the lock to the EPC so unrelated tags stay parallel
			r := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", detection.EPC)
			if r.Error != nil {
				return r.Error
			}
		}

		var count int64
		r := tx.Model(&Detection{}).
			Where("epc = ? AND detected_at > ?", detection.EPC, detection.DetectedAt.Add(-d.dedupWindow)).
			Count(&count)
		if r.Error != nil {
			return r.Error
		}

		if count > 0 {
			return ErrDuplicateDetection
		}

		return tx.Create(detection).Error
	})

	if err != nil && !errors.Is(err, ErrDuplicateDetection) {
		logging.GetFromContext(ctx).Error("failed to add detection", "epc", detection.EPC, "err", err.Error())
	}

	return err
}

func (d *detectionRepository) GetByEPC(ctx context.Context, epc string, limit int) ([]Detection, error) {
	var result []Detection

	query := d.db.Where("epc = ?", epc).
		Order("detected_at DESC, id DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	return result, query.Find(&result).Error
}

func (d *detectionRepository) GetSince(ctx context.Context, cutoff time.Time) ([]Detection, error) {
	var result []Detection

	err := d.db.Where("detected_at >= ?", cutoff).
		Order("detected_at DESC, id DESC").
		Find(&result).Error

	return result, err
}

func (d *detectionRepository) GetLatestByReader(ctx context.Context, readerID uint) (Detection, error) {
	var detection Detection

	result := d.db.Where("reader_id = ?", readerID).
		Order("detected_at DESC, id DESC").
		First(&detection)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Detection{}, ErrDetectionNotFound
		}
		return Detection{}, ErrRepositoryError
	}

	return detection, nil
}

func (d *detectionRepository) CountByReaderSince(ctx context.Context, readerID uint, cutoff time.Time) (int64, error) {
	var count int64

	err := d.db.Model(&Detection{}).
		Where("reader_id = ? AND detected_at >= ?", readerID, cutoff).
		Count(&count).Error

	return count, err
}

func (d *detectionRepository) CountByAntennaSince(ctx context.Context, readerID, antennaID uint, cutoff time.Time) (int64, error) {
	var count int64

	err := d.db.Model(&Detection{}).
		Where("reader_id = ? AND antenna_id = ? AND detected_at >= ?", readerID, antennaID, cutoff).
		Count(&count).Error

	return count, err
}

// GetAllChronological returns the entire log oldest first. The event
// classifier needs the full unfiltered history to resolve each
// detection's predecessor, so this path must not share the date
// filtering of the presentation queries.
func (d *detectionRepository) GetAllChronological(ctx context.Context) ([]Detection, error) {
	var result []Detection

	err := d.db.Order("detected_at ASC, id ASC").Find(&result).Error

	return result, err
}

func (d *detectionRepository) DeleteAll(ctx context.Context) error {
	return d.db.Session(&gorm.Session{AllowGlobalUpdate: true}).
		Unscoped().
		Delete(&Detection{}).Error
}
