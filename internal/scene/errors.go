package scene

import "errors"

var (
	// ErrNoArchive is returned by Unpack when no archive path was passed and
	// none has been downloaded.
	ErrNoArchive = errors.New("no known archive for this scene; download first or pass an archive path")

	// ErrNoBinaries is returned by ConvertAll when no data directory was
	// passed and nothing has been unpacked.
	ErrNoBinaries = errors.New("no binary files or directory known; unpack first or pass a data directory")

	// ErrImageIndex is returned when a preview is requested for an image
	// that has not been converted.
	ErrImageIndex = errors.New("image index out of range")
)
