package fixedlist

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/lightningnetwork/lnd/clock"
	"howett.net/plist"
)

const (
	// DefaultTempFileName is the name of the staging file used to
	// atomically replace the fixed peer list.
	DefaultTempFileName = "temp-dont-use.plist"

	// archiveTimeFormat is the layout of the timestamp appended to the
	// name of an archived list.
	archiveTimeFormat = "2006-01-02-15-04-05.000"
)

var (
	// ErrNoListFile is returned if the file name of the list is not set.
	ErrNoListFile = errors.New("fixed peer list file name not set")

	// ErrMalformedList is returned when the property list does not hold
	// an array of 32-bit unsigned integers.
	ErrMalformedList = errors.New("malformed fixed peer list")
)

// File is the on-disk fixed peer list: a property list whose root is an
// array of big-endian IPv4 integers. Writes go through a temp file in the
// same directory followed by a rename, so readers never see a partially
// written list.
type File struct {
	// fileName is the path of the fixed peer list.
	fileName string

	// tempFileName is the staging file renamed over fileName.
	tempFileName string

	// archiveDir is where the previous list is copied before a swap. An
	// empty archiveDir disables archiving.
	archiveDir string

	// clock stamps the names of archived lists.
	clock clock.Clock
}

// NewFile creates a new File for the list stored at fileName. If archiveDir
// is set, every replaced list is copied there first, named after the time
// reported by clk.
func NewFile(fileName, archiveDir string, clk clock.Clock) *File {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}

	return &File{
		fileName: fileName,
		tempFileName: filepath.Join(
			filepath.Dir(fileName), DefaultTempFileName,
		),
		archiveDir: archiveDir,
		clock:      clk,
	}
}

// Path returns the location of the list.
func (f *File) Path() string {
	return f.fileName
}

// Read returns the addresses stored in the list, in order. A list that does
// not exist yet is treated as empty.
func (f *File) Read() ([]string, error) {
	if f.fileName == "" {
		return nil, ErrNoListFile
	}

	raw, err := os.ReadFile(f.fileName)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Warnf("Fixed peer list %v does not exist, starting from "+
			"an empty list", f.fileName)

		return nil, nil

	case err != nil:
		return nil, err
	}

	return Decode(raw)
}

// Decode parses a serialized list. XML, binary and OpenStep property lists
// are all accepted.
func Decode(raw []byte) ([]string, error) {
	var values []int64
	if _, err := plist.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedList, err)
	}

	addrs := make([]string, 0, len(values))
	for i, v := range values {
		if v < 0 || v > math.MaxUint32 {
			return nil, fmt.Errorf("%w: entry %d out of range: %d",
				ErrMalformedList, i, v)
		}

		addrs = append(addrs, DecodeIPv4(uint32(v)))
	}

	return addrs, nil
}

// Encode serializes the addresses as an XML property list.
func Encode(addrs []string) ([]byte, error) {
	values := make([]uint32, 0, len(addrs))
	for _, addr := range addrs {
		v, err := EncodeIPv4(addr)
		if err != nil {
			return nil, err
		}

		values = append(values, v)
	}

	return plist.MarshalIndent(values, plist.XMLFormat, "\t")
}

// UpdateAndSwap writes the new list to the temp file and then atomically
// swaps it into place with a rename. The previous list is archived first if
// an archive directory is set.
func (f *File) UpdateAndSwap(addrs []string) error {
	if f.fileName == "" {
		return ErrNoListFile
	}

	// Encode up front so a bad address never leaves a temp file behind.
	newList, err := Encode(addrs)
	if err != nil {
		return err
	}

	log.Infof("Updating fixed peer list at %v", f.fileName)

	// If an old temp file still exists, then we'll delete it before
	// proceeding.
	if _, err := os.Stat(f.tempFileName); err == nil {
		log.Infof("Found old temp list @ %v, removing before swap",
			f.tempFileName)

		err = os.Remove(f.tempFileName)
		if err != nil {
			return fmt.Errorf("unable to remove temp list file: %w",
				err)
		}
	}

	tempFile, err := os.Create(f.tempFileName)
	if err != nil {
		return fmt.Errorf("unable to create temp file: %w", err)
	}
	defer os.Remove(f.tempFileName)

	if _, err := tempFile.Write(newList); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("unable to write list to temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("unable to sync temp file: %w", err)
	}

	// Some OSes don't support renaming a file that's still open.
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("unable to close file: %w", err)
	}

	if err := f.createArchiveFile(); err != nil {
		return fmt.Errorf("unable to archive old fixed peer list: %w",
			err)
	}

	log.Debugf("Swapping %v into %v", f.tempFileName, f.fileName)

	return os.Rename(f.tempFileName, f.fileName)
}

// createArchiveFile copies the current list into a timestamped file in the
// archive directory.
func (f *File) createArchiveFile() error {
	if f.archiveDir == "" {
		log.Debug("No archive directory set, not archiving old " +
			"fixed peer list")
		return nil
	}

	oldFile, err := os.Open(f.fileName)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Debug("No old fixed peer list to archive")
		return nil

	case err != nil:
		return fmt.Errorf("unable to open old list: %w", err)
	}
	defer func() {
		if err := oldFile.Close(); err != nil {
			log.Errorf("Unable to close old list: %v", err)
		}
	}()

	const archiveDirPermissions = 0o700
	err = os.MkdirAll(f.archiveDir, archiveDirPermissions)
	if err != nil {
		return fmt.Errorf("unable to create archive directory: %w", err)
	}

	timestamp := f.clock.Now().Format(archiveTimeFormat)
	archiveFilePath := filepath.Join(
		f.archiveDir,
		fmt.Sprintf("%s-%s", filepath.Base(f.fileName), timestamp),
	)

	log.Infof("Archiving old fixed peer list to %v", archiveFilePath)

	archiveFile, err := os.Create(archiveFilePath)
	if err != nil {
		return fmt.Errorf("unable to create archive file: %w", err)
	}
	defer func() {
		if err := archiveFile.Close(); err != nil {
			log.Errorf("Unable to close archive file: %v", err)
		}
	}()

	if _, err := io.Copy(archiveFile, oldFile); err != nil {
		return fmt.Errorf("unable to copy to archive file: %w", err)
	}

	return archiveFile.Sync()
}
