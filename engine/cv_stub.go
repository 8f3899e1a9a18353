//go:build !opencv

package engine

import "errors"

func newCVImages() (Images, error) {
	return nil, errors.New("opencv image backend requires building with -tags opencv")
}
