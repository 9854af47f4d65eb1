// Package config provides configuration management for duet-backup.
//
// It utilizes Viper for loading configuration from environment variables,
// an optional config file (duet-backup.yaml) and a .env file.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Backup: source, remote, branch, directories, ignore and protect lists, schedule
//   - GitHub: repository remote credentials
//   - Storage: S3/MinIO credentials and bucket settings
//   - Printer: controller address, password and retry settings
//   - Log: Logging level, format and file
//   - Server: status API port and key
//
// Every key can be overridden by an environment variable with dots replaced
// by underscores (GITHUB_TOKEN, BACKUP_DIRS=sd/sys,sd/macros).
//
// # Usage
//
//	cfg, err := config.LoadConfig(".", "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config
