package domain

import "errors"

// Sentinel errors shared across the engine. Repositories translate driver
// errors (gorm.ErrRecordNotFound) into these at the boundary so services can
// check with errors.Is without importing gorm.
var (
	ErrDepartmentNotFound = errors.New("department not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrUnknownPeriodType  = errors.New("unknown period type")
	ErrUnknownMetricType  = errors.New("unknown metric type")
)
