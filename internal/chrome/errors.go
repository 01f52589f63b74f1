package chrome

import "github.com/pkg/errors"

var (
	ErrChromeNotFound   = errors.New("chrome executable not found, install Google Chrome or Chromium or set CHROME_PATH")
	ErrExitedEarly      = errors.New("chrome process exited immediately")
	ErrUnmanaged        = errors.New("chrome is running but was not started by groucho")
	ErrDefaultProfile   = errors.New("the default profile cannot be created or deleted, use reset instead")
	ErrInvalidProfile   = errors.New("invalid profile name")
	ErrProfileExists    = errors.New("profile already exists")
	ErrProfileNotFound  = errors.New("profile not found")
	ErrPasswordRequired = errors.New("backup is encrypted, a password is required")
	ErrUnsafeArchive    = errors.New("archive entry escapes the profile directory")
	ErrNoCatalog        = errors.New("backup catalogue is not available")
)
