package repository

import (
	"errors"
	"fmt"

	"code4kids_backend/internal/docstore"
	"code4kids_backend/internal/util"
)

// storeErr tags gateway failures with util.ErrRemoteStore. The docstore
// sentinels callers branch on pass through untouched.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, docstore.ErrNotFound) ||
		errors.Is(err, docstore.ErrAlreadyExists) ||
		errors.Is(err, docstore.ErrVersionConflict) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, util.ErrRemoteStore, err)
}
