// Package settings stores process-wide runtime settings as JSON-valued
// rows, one per key. Reads fall back to compiled-in defaults when a key
// has never been written; writes replace the whole value for a key.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/snapforge/snapforge/pkg/store"
)

// Setting keys.
const (
	KeyGeneral = "general"
	KeyStorage = "storage"
	KeyImages  = "images"
	KeySMTP    = "smtp"
)

// ErrUnknownKey is returned for keys outside the fixed set.
var ErrUnknownKey = errors.New("unknown settings key")

// General holds account and quota defaults.
type General struct {
	RegistrationEnabled bool `json:"registration_enabled"`
	DefaultMaxGalleries int  `json:"default_max_galleries"`
}

// Storage mirrors the blob backend selection for runtime inspection.
type Storage struct {
	Type   string `json:"type"`
	Path   string `json:"path,omitempty"`
	Bucket string `json:"bucket,omitempty"`
	Region string `json:"region,omitempty"`
}

// Images holds processing defaults applied when a gallery sets no
// override.
type Images struct {
	ThumbSize     int   `json:"thumb_size"`
	ThumbQuality  int   `json:"thumb_quality"`
	MaxUploadSize int64 `json:"max_upload_size"`
}

// SMTP holds the mail relay configuration.
type SMTP struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username,omitempty"`
	From     string `json:"from,omitempty"`
	StartTLS bool   `json:"starttls"`
}

// Service reads and writes settings rows.
type Service struct {
	log   logrus.FieldLogger
	store store.Store
}

// NewService creates a settings service.
func NewService(log logrus.FieldLogger, s store.Store) *Service {
	return &Service{
		log:   log.WithField("component", "settings"),
		store: s,
	}
}

func defaultValue(key string) (any, bool) {
	switch key {
	case KeyGeneral:
		return General{RegistrationEnabled: true, DefaultMaxGalleries: 10}, true
	case KeyStorage:
		return Storage{Type: "local", Path: "./data/uploads"}, true
	case KeyImages:
		return Images{ThumbSize: 150, ThumbQuality: 60, MaxUploadSize: 50 << 20}, true
	case KeySMTP:
		return SMTP{}, true
	default:
		return nil, false
	}
}

// GetRaw returns the stored JSON for a key, or the compiled-in default
// when unset.
func (s *Service) GetRaw(ctx context.Context, key string) (json.RawMessage, error) {
	def, ok := defaultValue(key)
	if !ok {
		return nil, ErrUnknownKey
	}

	value, err := s.store.GetSetting(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return json.Marshal(def)
		}

		return nil, err
	}

	return json.RawMessage(value), nil
}

// SetRaw validates the JSON against the key's schema and stores it
// wholesale.
func (s *Service) SetRaw(ctx context.Context, key string, value json.RawMessage) error {
	if err := validate(key, value); err != nil {
		return err
	}

	if err := s.store.SetSetting(ctx, key, string(value)); err != nil {
		return err
	}

	s.log.WithField("key", key).Info("Settings updated")

	return nil
}

// Get unmarshals a key's value into out, falling back to the default.
func (s *Service) Get(ctx context.Context, key string, out any) error {
	raw, err := s.GetRaw(ctx, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %s settings: %w", key, err)
	}

	return nil
}

// General returns the general settings.
func (s *Service) General(ctx context.Context) (General, error) {
	var g General

	err := s.Get(ctx, KeyGeneral, &g)

	return g, err
}

// Images returns the image processing defaults.
func (s *Service) Images(ctx context.Context) (Images, error) {
	var i Images

	err := s.Get(ctx, KeyImages, &i)

	return i, err
}

// RegistrationEnabled reports whether new signups are accepted. The
// first account is always allowed regardless; that check lives with the
// caller, which knows the user count.
func (s *Service) RegistrationEnabled(ctx context.Context) (bool, error) {
	g, err := s.General(ctx)
	if err != nil {
		return false, err
	}

	return g.RegistrationEnabled, nil
}

func validate(key string, value json.RawMessage) error {
	var target any

	switch key {
	case KeyGeneral:
		target = &General{}
	case KeyStorage:
		target = &Storage{}
	case KeyImages:
		target = &Images{}
	case KeySMTP:
		target = &SMTP{}
	default:
		return ErrUnknownKey
	}

	dec := json.NewDecoder(bytes.NewReader(value))
	dec.DisallowUnknownFields()

	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("invalid %s settings: %w", key, err)
	}

	return nil
}
