package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/wifi-presence-api/internal/dto"
	"github.com/noah-isme/wifi-presence-api/internal/models"
	appErrors "github.com/noah-isme/wifi-presence-api/pkg/errors"
)

type deviceStore interface {
	List(ctx context.Context) ([]models.RegisteredDevice, error)
	Upsert(ctx context.Context, device *models.RegisteredDevice) error
}

// DeviceService manages the device registry used to resolve identities.
type DeviceService struct {
	repo      deviceStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDeviceService constructs a DeviceService.
func NewDeviceService(repo deviceStore, validate *validator.Validate, logger *zap.Logger) *DeviceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeviceService{repo: repo, validator: validate, logger: logger}
}

// List returns all registered devices.
func (s *DeviceService) List(ctx context.Context) ([]models.RegisteredDevice, error) {
	devices, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list devices")
	}
	if devices == nil {
		devices = []models.RegisteredDevice{}
	}
	return devices, nil
}

// Register creates or updates the identity linked to a device.
func (s *DeviceService) Register(ctx context.Context, req dto.RegisterDeviceRequest) (*models.RegisteredDevice, error) {
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid device payload")
	}
	device := &models.RegisteredDevice{
		DeviceID:     req.DeviceID,
		DeviceHash:   HashDeviceID(req.DeviceID),
		StudentName:  trimmed(req.StudentName),
		MatricNumber: trimmed(req.MatricNumber),
		ClassName:    trimmed(req.ClassName),
	}
	if err := s.repo.Upsert(ctx, device); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register device")
	}
	s.logger.Info("device registered", zap.String("device_hash", device.DeviceHash))
	return device, nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
