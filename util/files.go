package util

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// DigestFiles hashes the contents of the named files in order
func DigestFiles(fileNames ...string) (string, error) {
	md5 := md5.New()
	for _, fileName := range fileNames {
		file, err := os.Open(fileName)
		if err != nil {
			return "", errors.Wrap(err, "digesting model files")
		}
		_, err = io.Copy(md5, file)
		file.Close()
		if err != nil {
			return "", errors.Wrapf(err, "digesting %s", fileName)
		}
	}
	return fmt.Sprintf("%x", md5.Sum(nil)), nil
}
