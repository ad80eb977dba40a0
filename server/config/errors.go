package config

import "github.com/gear6io/dataagent/pkg/errors"

// Config-specific error codes
var (
	ErrConfigFileReadFailed    = errors.MustNewCode("config.file_read_failed")
	ErrConfigFileParseFailed   = errors.MustNewCode("config.file_parse_failed")
	ErrConfigValidationFailed  = errors.MustNewCode("config.validation_failed")
	ErrConfigFileMarshalFailed = errors.MustNewCode("config.file_marshal_failed")
	ErrConfigFileWriteFailed   = errors.MustNewCode("config.file_write_failed")
	ErrEnvFileLoadFailed       = errors.MustNewCode("config.env_file_load_failed")
	ErrLogValidationFailed     = errors.MustNewCode("config.log_validation_failed")
	ErrLogFormatInvalid        = errors.MustNewCode("config.log_format_invalid")
	ErrServerValidationFailed  = errors.MustNewCode("config.server_validation_failed")
	ErrInvalidPort             = errors.MustNewCode("config.invalid_port")
	ErrChartWorkersInvalid     = errors.MustNewCode("config.chart_workers_invalid")

	// Sources document
	ErrSourcesFileReadFailed  = errors.MustNewCode("config.sources_file_read_failed")
	ErrSourcesFileParseFailed = errors.MustNewCode("config.sources_file_parse_failed")
	ErrSourcesFileMalformed   = errors.MustNewCode("config.sources_file_malformed")

	// Logging-specific error codes
	ErrLogDirectoryCreationFailed = errors.MustNewCode("config.log_directory_creation_failed")
	ErrLogFileOpenFailed          = errors.MustNewCode("config.log_file_open_failed")
	ErrLogFilePathRequired        = errors.MustNewCode("config.log_file_path_required")
	ErrLogRotationCheckFailed     = errors.MustNewCode("config.log_rotation_check_failed")
	ErrLogFileStatFailed          = errors.MustNewCode("config.log_file_stat_failed")
	ErrLogRotationFailed          = errors.MustNewCode("config.log_rotation_failed")
	ErrLogBackupReadFailed        = errors.MustNewCode("config.log_backup_read_failed")
	ErrLogBackupRemoveFailed      = errors.MustNewCode("config.log_backup_remove_failed")
	ErrLogCleanupFailed           = errors.MustNewCode("config.log_cleanup_failed")
	ErrLogFileWriterSetupFailed   = errors.MustNewCode("config.log_file_writer_setup_failed")
)
