package config

const (
	defaultArchiveDir          = "/home/pi/videos"
	defaultStateDir            = "~/.local/share/cardsync"
	defaultMountPrefix         = "/media/pi"
	defaultLsblkBinary         = "lsblk"
	defaultCameraDir           = "DCIM"
	defaultCopyMethod          = CopyMethodCP
	defaultCPBinary            = "cp"
	defaultGPIOChip            = "gpiochip0"
	defaultGPIOLine            = 17
	defaultDebounceMillis      = 50
	defaultCooldownSeconds     = 2
	defaultSettleSeconds       = 3
	defaultHistoryFile         = "history.db"
	defaultHistoryRetention    = 365
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogFile             = "logs/cardsync.log"
	defaultLogRetentionDays    = 30
	defaultLogMaxSizeMB        = 10
	defaultLogMaxBackups       = 5
	defaultSyncShutdownSeconds = 30
)

// Copy methods accepted by copy.method.
const (
	CopyMethodCP       = "cp"
	CopyMethodNative   = "native"
	CopyMethodVerified = "verified"
)

func defaultExtensions() []string {
	return []string{".mp4", ".MP4"}
}

func defaultNamePrefixes() []string {
	return []string{"sd"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ArchiveDir: defaultArchiveDir,
			StateDir:   defaultStateDir,
		},
		Device: Device{
			MountPrefix:  defaultMountPrefix,
			NamePrefixes: defaultNamePrefixes(),
			LsblkBinary:  defaultLsblkBinary,
		},
		Media: Media{
			CameraDir:  defaultCameraDir,
			Extensions: defaultExtensions(),
		},
		Copy: Copy{
			Method:   defaultCopyMethod,
			CPBinary: defaultCPBinary,
		},
		GPIO: GPIO{
			Chip:           defaultGPIOChip,
			Line:           defaultGPIOLine,
			DebounceMillis: defaultDebounceMillis,
			PullUp:         true,
		},
		Watch: Watch{
			Button:          true,
			CooldownSeconds: defaultCooldownSeconds,
			SettleSeconds:   defaultSettleSeconds,
			ShutdownSeconds: defaultSyncShutdownSeconds,
		},
		History: History{
			Enabled:       true,
			RetentionDays: defaultHistoryRetention,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
			MaxSizeMB:     defaultLogMaxSizeMB,
			MaxBackups:    defaultLogMaxBackups,
		},
	}
}
