package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/Veraticus/the-budget-must-balance/internal/archive"
	"github.com/Veraticus/the-budget-must-balance/internal/archive/s3"
	"github.com/Veraticus/the-budget-must-balance/internal/common"
)

// ArchiveConfig selects and parameterizes the backup archive.
type ArchiveConfig struct {
	Driver string
	Dir    string
	S3     s3.Config
}

// LoadArchiveConfig loads archive settings from Viper and environment variables.
// It follows this precedence:
// 1. Viper configuration (from config file or BUDGET_ env vars)
// 2. Standard AWS environment variables for S3 credentials and region
// 3. Default values
func LoadArchiveConfig() (*ArchiveConfig, error) {
	cfg := &ArchiveConfig{
		Driver: viper.GetString("archive.driver"),
		Dir:    ExpandPath(viper.GetString("archive.dir")),
		S3: s3.Config{
			Bucket:          viper.GetString("archive.s3.bucket"),
			Region:          viper.GetString("archive.s3.region"),
			Prefix:          viper.GetString("archive.s3.prefix"),
			Endpoint:        viper.GetString("archive.s3.endpoint"),
			AccessKeyID:     viper.GetString("archive.s3.access_key_id"),
			SecretAccessKey: viper.GetString("archive.s3.secret_access_key"),
			PathStyle:       viper.GetBool("archive.s3.path_style"),
		},
	}

	if cfg.Driver == "" {
		cfg.Driver = archive.DriverFilesystem
	}
	if cfg.Dir == "" {
		cfg.Dir = filepath.Join(DataDir(), "backups")
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = os.Getenv("AWS_REGION")
	}
	if cfg.S3.AccessKeyID == "" {
		cfg.S3.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
		cfg.S3.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
		cfg.S3.SessionToken = os.Getenv("AWS_SESSION_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected driver has what it needs.
func (c *ArchiveConfig) Validate() error {
	switch c.Driver {
	case archive.DriverFilesystem:
		if c.Dir == "" {
			return fmt.Errorf("%w: archive.dir is required for the %q driver", common.ErrMissingConfig, c.Driver)
		}
	case archive.DriverS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("%w: archive.s3.bucket is required for the %q driver", common.ErrMissingConfig, c.Driver)
		}
	default:
		return fmt.Errorf("%w: unknown archive driver %q", common.ErrInvalidConfig, c.Driver)
	}
	return nil
}
