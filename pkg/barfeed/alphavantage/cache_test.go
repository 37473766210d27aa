package alphavantage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/indalsig/barfeed/pkg/errors"
)

type StorageTestSuite struct {
	suite.Suite
	tempDir string
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageTestSuite))
}

func (suite *StorageTestSuite) SetupTest() {
	tempDir, err := os.MkdirTemp("", "storage-test-*")
	suite.Require().NoError(err)
	suite.tempDir = tempDir
}

func (suite *StorageTestSuite) TearDownTest() {
	os.RemoveAll(suite.tempDir)
}

func (suite *StorageTestSuite) TestPathNaming() {
	storage := Storage{Root: suite.tempDir}

	suite.Equal(filepath.Join(suite.tempDir, "ORCL-alphavantage.csv"), storage.Path("ORCL"))
	suite.Equal(filepath.Join(suite.tempDir, "IBM-alphavantage.csv"), storage.Path("IBM"))
}

func (suite *StorageTestSuite) TestEnsureRootIsIdempotent() {
	storage := Storage{Root: filepath.Join(suite.tempDir, "nested", "cache")}

	suite.NoError(storage.EnsureRoot())
	suite.NoError(storage.EnsureRoot())

	info, err := os.Stat(storage.Root)
	suite.NoError(err)
	suite.True(info.IsDir())
}

func (suite *StorageTestSuite) TestEnsureRootFailure() {
	blocker := filepath.Join(suite.tempDir, "blocker")
	suite.Require().NoError(os.WriteFile(blocker, []byte("x"), 0o644))

	storage := Storage{Root: filepath.Join(blocker, "cache")}

	err := storage.EnsureRoot()
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeFilesystem))
}

func (suite *StorageTestSuite) TestExists() {
	storage := Storage{Root: suite.tempDir}

	suite.False(storage.Exists("ORCL"))

	suite.Require().NoError(os.WriteFile(storage.Path("ORCL"), []byte("data"), 0o644))

	suite.True(storage.Exists("ORCL"))
}

func (suite *StorageTestSuite) TestShouldDownload() {
	path := filepath.Join(suite.tempDir, "ORCL-alphavantage.csv")

	suite.True(ShouldDownload(path, false))
	suite.True(ShouldDownload(path, true))

	suite.Require().NoError(os.WriteFile(path, []byte("data"), 0o644))

	suite.False(ShouldDownload(path, false))
	suite.True(ShouldDownload(path, true))
}

func (suite *StorageTestSuite) TestWriteFileAtomicReplacesContent() {
	path := filepath.Join(suite.tempDir, "ORCL-alphavantage.csv")

	suite.Require().NoError(writeFileAtomic(path, []byte("old")))
	suite.Require().NoError(writeFileAtomic(path, []byte("new")))

	content, err := os.ReadFile(path)
	suite.NoError(err)
	suite.Equal("new", string(content))

	// No temporary files left behind.
	entries, err := os.ReadDir(suite.tempDir)
	suite.NoError(err)
	suite.Len(entries, 1)
}
