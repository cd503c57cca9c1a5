package service

import (
	"errors"
	"math/rand"
	"time"

	"tutor_backend/internal/util"

	"gorm.io/gorm"
)

func gormIncrement(column string, delta int) interface{} {
	return gorm.Expr(column+" + ?", delta)
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, util.ErrNotFound)
}

func strPtr(s string) *string {
	return &s
}

// casBackoff 版本冲突后的随机退避，上限随重试次数翻倍
func casBackoff(attempt int) {
	time.Sleep(time.Duration(rand.Intn(2<<attempt)+1) * time.Millisecond)
}
