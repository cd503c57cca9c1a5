package repository

import (
	"errors"
	"fmt"

	"tutor_backend/internal/util"

	"gorm.io/gorm"
)

// maxCASAttempts 比较并交换的最大重试次数
const maxCASAttempts = 5

// translate 把 gorm 错误转换为领域错误
func translate(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return fmt.Errorf("%w: %v", util.ErrStoreFailure, err)
}

func storeErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", util.ErrStoreFailure, err)
}
